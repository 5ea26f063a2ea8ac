package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ambientKeeper/internal/ambient"
	"ambientKeeper/internal/chain"
	"ambientKeeper/internal/config"
	"ambientKeeper/internal/indexer"
	"ambientKeeper/internal/model"
	"ambientKeeper/internal/planner"
	"ambientKeeper/internal/rebalance"
	"ambientKeeper/internal/reconcile"
	"ambientKeeper/internal/wallet"
)

// app holds the wired collaborators shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	pool    model.Pool
	query   *ambient.Query
	dex     *ambient.Dex
	recon   *reconcile.Reconciler
	planner *planner.Planner
	engine  *rebalance.Engine
	wallets []*wallet.Account
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	if len(cfg.PrivateKeys) == 0 {
		return config.Config{}, nil, fmt.Errorf("at least one private key is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	pool, err := cfg.Pool()
	if err != nil {
		return nil, err
	}
	a.pool = pool

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.chain = chainClient

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if chainID.Uint64() != cfg.ChainID {
		a.Close()
		return nil, fmt.Errorf("rpc chain id %s does not match configured %d", chainID, cfg.ChainID)
	}

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	queryAddr, err := cfg.QueryAddress()
	if err != nil {
		return err
	}
	a.query, err = ambient.NewQuery(a.chain, queryAddr, a.logger)
	if err != nil {
		return err
	}

	dexAddr, err := cfg.DexAddress()
	if err != nil {
		return err
	}
	bps, err := cfg.SlippageBps()
	if err != nil {
		return err
	}
	a.dex, err = ambient.NewDex(dexAddr, bps)
	if err != nil {
		return err
	}

	index, err := indexer.NewClient(cfg.IndexerURL, indexer.Options{
		ChainID:      cfg.ChainID,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}
	a.recon = reconcile.New(index, a.query, a.pool, reconcile.Config{Lookback: cfg.TxLookback, TxLimit: cfg.TxLimit}, a.logger)

	reserve, err := cfg.ReserveWei()
	if err != nil {
		return fmt.Errorf("reserve floor: %w", err)
	}
	dust, err := cfg.DustWei()
	if err != nil {
		return fmt.Errorf("dust: %w", err)
	}
	a.planner, err = planner.New(planner.Params{
		Reserve:    reserve,
		RangeWidth: cfg.RangeWidthFraction(),
		Dust:       dust,
	})
	if err != nil {
		return err
	}

	swapDust, err := cfg.SwapDustWei()
	if err != nil {
		return fmt.Errorf("swap dust: %w", err)
	}
	pool, dex, query, logger := a.pool, a.dex, a.query, a.logger
	a.engine, err = rebalance.NewEngine(rebalance.Deps{
		Pool:      a.pool,
		Query:     a.query,
		Positions: a.recon,
		Planner:   a.planner,
		Dex:       a.dex,
		Swapper: func(acct rebalance.Account) rebalance.Swapper {
			return ambient.NewSwapper(dex, query, acct, pool, logger)
		},
	}, rebalance.Config{
		MinDepositPercent:  cfg.MinDepositPercent,
		MaxDepositPercent:  cfg.MaxDepositPercent,
		MaxDepositAttempts: cfg.MaxDepositAttempts,
		MaxWithdrawPasses:  cfg.MaxWithdrawPasses,
		ShrinkPercent:      cfg.ShrinkPercent,
		SwapDust:           swapDust,
		IndexerLag:         cfg.IndexerLag,
	}, a.logger)
	if err != nil {
		return err
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	for i, raw := range cfg.PrivateKeys {
		key, err := wallet.ParsePrivateKey(raw)
		if err != nil {
			return fmt.Errorf("private key #%d: %w", i+1, err)
		}
		acct, err := wallet.New(a.chain, key, wallet.Options{
			ChainID:            chainID,
			GasLimitMultiplier: cfg.GasLimitMultiplier,
			ReceiptTimeout:     cfg.ReceiptTimeout,
			Logger:             a.logger,
		})
		if err != nil {
			return err
		}
		a.wallets = append(a.wallets, acct)
	}
	return nil
}

func (a *app) accounts() []rebalance.Account {
	out := make([]rebalance.Account, 0, len(a.wallets))
	for _, w := range a.wallets {
		out = append(out, w)
	}
	return out
}

func (a *app) Close() {
	if a.chain != nil {
		a.chain.Close()
	}
}
