package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ambientKeeper/internal/schedule"
	"ambientKeeper/internal/storage"
	"ambientKeeper/internal/storage/postgres"
)

func runRebalance(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		journal storage.Fanout
		state   schedule.StateStore
	)
	if cfg.Journal != "" {
		journal = append(journal, storage.NewJsonlStorage(cfg.Journal))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		journal = append(journal, store)
		state = &schedule.DBStateStore{Store: store}
	} else if cfg.StateFile != "" {
		state = &schedule.FileStateStore{Path: cfg.StateFile}
	}

	scheduler := schedule.New(a.engine, a.pool, state, journal, schedule.Config{
		Concurrency: cfg.Concurrency,
		Cooldown:    cfg.Cooldown,
	}, logger)

	logger.Info("rebalance start",
		zap.String("pool", a.pool.String()),
		zap.Int("wallets", len(a.wallets)),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.String("journal", cfg.Journal),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	outcomes, err := scheduler.RunAll(ctx, a.accounts())
	var done, skipped, failed int
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		default:
			done++
		}
	}
	logger.Info("rebalance finished",
		zap.Int("done", done),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return err
}
