package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "keeper",
		Short:        "Ambient ETH/wrsETH liquidity keeper",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	rebalanceCmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Withdraw, re-ratio and redeposit liquidity for every wallet",
		RunE:  runRebalance,
	}
	addPoolFlags(rebalanceCmd.Flags())
	addSizingFlags(rebalanceCmd.Flags())
	rebalanceCmd.Flags().Int("max-deposit-attempts", 15, "deposit attempts before giving up")
	rebalanceCmd.Flags().Int("max-withdraw-passes", 3, "withdraw passes before giving up")
	rebalanceCmd.Flags().Uint64("shrink-percent", 1, "percent the deposit shrinks after a revert")
	rebalanceCmd.Flags().String("slippage", "1", "price slippage tolerance (percent)")
	rebalanceCmd.Flags().Duration("indexer-lag", 30*time.Second, "wait for the indexer after a transaction")
	rebalanceCmd.Flags().Duration("receipt-timeout", 5*time.Minute, "receipt wait timeout")
	rebalanceCmd.Flags().String("gas-limit-multiplier", "1.3", "multiplier applied to gas estimates")
	rebalanceCmd.Flags().Int("concurrency", 1, "wallets rebalanced at once")
	rebalanceCmd.Flags().Duration("cooldown", 24*time.Hour, "skip wallets rebalanced more recently than this (0 disables)")
	rebalanceCmd.Flags().String("journal", "./data/runs.jsonl", "run journal JSONL path (empty disables)")
	rebalanceCmd.Flags().String("pg-dsn", "", "Postgres DSN for the run journal and wallet state")
	rebalanceCmd.Flags().String("state-file", "", "local wallet state file, used when pg-dsn is empty")
	root.AddCommand(rebalanceCmd)

	positionsCmd := &cobra.Command{
		Use:   "positions",
		Short: "List reconciled positions for every wallet",
		RunE:  runPositions,
	}
	addPoolFlags(positionsCmd.Flags())
	root.AddCommand(positionsCmd)

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Evaluate wallets and print the swap and deposit a rebalance would make",
		RunE:  runPlan,
	}
	addPoolFlags(planCmd.Flags())
	addSizingFlags(planCmd.Flags())
	root.AddCommand(planCmd)

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List rebalance runs from the journal",
		RunE:  runRuns,
	}
	runsCmd.Flags().String("journal", "./data/runs.jsonl", "run journal JSONL path")
	runsCmd.Flags().String("wallet", "", "only runs for this wallet")
	runsCmd.Flags().Bool("failed", false, "only failed runs")
	runsCmd.Flags().Int("limit", 0, "only the most recent N runs (0 means all)")
	root.AddCommand(runsCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode <calldata>",
		Short: "Decode dex userCmd calldata",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecode,
	}
	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "Scroll RPC URL")
	fs.String("indexer-url", "", "position indexer base URL")
	fs.Uint64("chain-id", 0, "chain id (default Scroll mainnet)")
	fs.String("dex", "", "CrocSwapDex address")
	fs.String("query", "", "CrocQuery address")
	fs.String("base", "", "base token address (zero for native ETH)")
	fs.String("quote", "", "quote token address")
	fs.Uint64("pool-idx", 0, "pool type index")
	fs.StringSlice("private-keys", nil, "wallet private keys (comma-separated)")
	fs.Duration("tx-lookback", 24*time.Hour, "window for discovering recent mints")
	fs.Int("tx-limit", 50, "recent transactions fetched when discovering mints")
	fs.Int("max-retries", -1, "indexer retry attempts for transient errors (-1 retries until cancelled)")
	fs.Duration("retry-backoff", 2*time.Second, "fixed indexer retry backoff")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addSizingFlags(fs *pflag.FlagSet) {
	fs.String("reserve-floor", "0.0045", "native balance kept in the wallet (ETH)")
	fs.String("range-width", "0.5", "range half-width around the price (percent)")
	fs.String("min-deposit-percent", "91", "lowest acceptable deposited share of wallet value")
	fs.String("max-deposit-percent", "100", "highest acceptable deposited share of wallet value")
	fs.String("dust", "0.00001", "smallest deposit worth submitting (ETH)")
	fs.String("swap-dust", "0.00001", "smallest swap worth submitting (ETH)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
