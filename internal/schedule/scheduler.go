package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ambientKeeper/internal/model"
	"ambientKeeper/internal/rebalance"
	"ambientKeeper/internal/storage"
)

// Runner executes one rebalance for a wallet. *rebalance.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, acct rebalance.Account) (rebalance.Result, error)
}

// Config bounds how wallets are scheduled.
type Config struct {
	// Concurrency is the number of wallets rebalanced at once.
	Concurrency int
	// Cooldown skips a wallet whose last success is younger than this.
	// Zero disables the check.
	Cooldown time.Duration
}

// Outcome is what happened to one wallet.
type Outcome struct {
	Wallet  string
	Skipped bool
	Result  rebalance.Result
	Err     error
}

// Scheduler fans rebalance runs out across wallets. Runs for different
// wallets are independent; a failure in one never cancels the others.
type Scheduler struct {
	runner  Runner
	pool    model.Pool
	state   StateStore
	journal storage.Storage
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Scheduler. state and journal may be nil.
func New(runner Runner, pool model.Pool, state StateStore, journal storage.Storage, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:  runner,
		pool:    pool,
		state:   state,
		journal: journal,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// RunAll rebalances every account and returns one Outcome per account in
// input order. The error is non-nil when at least one run failed.
func (s *Scheduler) RunAll(ctx context.Context, accounts []rebalance.Account) ([]Outcome, error) {
	outcomes := make([]Outcome, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			outcomes[i] = s.runOne(gctx, acct)
			// Only context cancellation stops the group.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("wallet %s: %w", o.Wallet, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}

func (s *Scheduler) runOne(ctx context.Context, acct rebalance.Account) Outcome {
	wallet := acct.Address()
	out := Outcome{Wallet: wallet.Hex()}
	log := s.logger.With(zap.String("wallet", out.Wallet))

	if s.cfg.Cooldown > 0 && s.state != nil {
		last, ok, err := s.state.LastSuccess(ctx, wallet)
		if err != nil {
			out.Err = fmt.Errorf("load state: %w", err)
			return out
		}
		if ok {
			if age := s.now().Sub(last); age < s.cfg.Cooldown {
				log.Info("wallet in cooldown, skipping",
					zap.Time("last_success", last),
					zap.Duration("remaining", s.cfg.Cooldown-age),
				)
				out.Skipped = true
				return out
			}
		}
	}

	res, err := s.runner.Run(ctx, acct)
	out.Result = res
	out.Err = err

	if s.journal != nil {
		rec := res.Record(s.pool, err)
		if jerr := s.journal.PutRuns(ctx, []model.RunRecord{rec}); jerr != nil {
			log.Warn("journal write failed", zap.String("run_id", rec.RunID), zap.Error(jerr))
		}
	}

	if err == nil && s.state != nil {
		finished := res.FinishedAt
		if finished.IsZero() {
			finished = s.now()
		}
		if serr := s.state.SaveSuccess(ctx, wallet, finished); serr != nil {
			log.Warn("save state failed", zap.Error(serr))
		}
	}
	return out
}
