package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ambientKeeper/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store provides Postgres persistence for the run journal and wallet state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded schema files in lexical order. They are
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// PutRuns satisfies storage.Storage.
func (s *Store) PutRuns(ctx context.Context, runs []model.RunRecord) error {
	return s.UpsertRuns(ctx, runs)
}

// UpsertRuns inserts or updates run records keyed by run id.
func (s *Store) UpsertRuns(ctx context.Context, runs []model.RunRecord) error {
	if len(runs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range runs {
		txs := r.TxHashes
		if txs == nil {
			txs = []string{}
		}
		batch.Queue(`
			INSERT INTO rebalance_runs (
				run_id, wallet, pool, started_at, finished_at, final_state, failed_step,
				deposit_percent, withdrawn, attempts, committed_amount, tx_hashes, error
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::text::numeric,$9,$10,$11::text::numeric,$12,$13)
			ON CONFLICT (run_id)
			DO UPDATE SET
				finished_at = EXCLUDED.finished_at,
				final_state = EXCLUDED.final_state,
				failed_step = EXCLUDED.failed_step,
				deposit_percent = EXCLUDED.deposit_percent,
				withdrawn = EXCLUDED.withdrawn,
				attempts = EXCLUDED.attempts,
				committed_amount = EXCLUDED.committed_amount,
				tx_hashes = EXCLUDED.tx_hashes,
				error = EXCLUDED.error
		`,
			r.RunID,
			r.Wallet,
			r.Pool,
			r.StartedAt,
			r.FinishedAt,
			r.FinalState,
			r.FailedStep,
			nullableNumeric(r.DepositPercent),
			r.Withdrawn,
			r.Attempts,
			nullableNumeric(r.CommittedAmount),
			txs,
			r.Error,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range runs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert run: %w", err)
		}
	}
	return nil
}

// LoadLastSuccess returns the last successful run time for wallet.
func (s *Store) LoadLastSuccess(ctx context.Context, wallet string) (time.Time, bool, error) {
	if wallet == "" {
		return time.Time{}, false, fmt.Errorf("wallet required")
	}
	var ts time.Time
	row := s.pool.QueryRow(ctx, `SELECT last_success FROM wallet_state WHERE wallet=$1`, strings.ToLower(wallet))
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return ts, true, nil
}

// SaveLastSuccess upserts the last successful run time for wallet.
func (s *Store) SaveLastSuccess(ctx context.Context, wallet string, ts time.Time) error {
	if wallet == "" {
		return fmt.Errorf("wallet required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallet_state (wallet, last_success, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (wallet) DO UPDATE
		SET last_success = EXCLUDED.last_success, updated_at = now()
	`, strings.ToLower(wallet), ts)
	return err
}

// nullableNumeric passes "" as SQL NULL.
func nullableNumeric(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
