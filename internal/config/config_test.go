package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, DefaultIndexerURL, cfg.IndexerURL)
	require.Equal(t, uint64(DefaultChainID), cfg.ChainID)
	require.Equal(t, 15, cfg.MaxDepositAttempts)
	require.Equal(t, 3, cfg.MaxWithdrawPasses)
	require.Equal(t, 50, cfg.TxLimit)
	require.Equal(t, -1, cfg.MaxRetries)
	require.True(t, cfg.MinDepositPercent.Equal(decimal.NewFromInt(91)))

	pool, err := cfg.Pool()
	require.NoError(t, err)
	require.True(t, pool.NativeBase())
	require.Equal(t, uint64(420), pool.Index)

	reserve, err := cfg.ReserveWei()
	require.NoError(t, err)
	require.Equal(t, "4500000000000000", reserve.ToBig().String())

	bps, err := cfg.SlippageBps()
	require.NoError(t, err)
	require.Equal(t, uint32(100), bps)
	require.Equal(t, "0.005", cfg.RangeWidthFraction().String())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keeper.yaml")
	body := "rpc: https://rpc.example\nrange-width: 1\ncooldown: 2h\nprivate-keys:\n  - \"0x01\"\n  - \"0x02\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("KEEPER_MAX_DEPOSIT_ATTEMPTS", "7")
	t.Setenv("KEEPER_TX_LIMIT", "120")
	t.Setenv("KEEPER_MAX_RETRIES", "4")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("slippage", "1", "")
	require.NoError(t, flags.Parse([]string{"--slippage=0.25"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "https://rpc.example", cfg.RPCURL)
	require.True(t, cfg.RangeWidth.Equal(decimal.NewFromInt(1)))
	require.Equal(t, 2*time.Hour, cfg.Cooldown)
	require.Equal(t, []string{"0x01", "0x02"}, cfg.PrivateKeys)
	require.Equal(t, 7, cfg.MaxDepositAttempts)
	require.Equal(t, 120, cfg.TxLimit)
	require.Equal(t, 4, cfg.MaxRetries)

	bps, err := cfg.SlippageBps()
	require.NoError(t, err)
	require.Equal(t, uint32(25), bps)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base, err := Load("", nil)
	require.NoError(t, err)
	base.RPCURL = "http://localhost:8545"
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing rpc", func(c *Config) { c.RPCURL = "" }},
		{"zero width", func(c *Config) { c.RangeWidth = decimal.Zero }},
		{"inverted window", func(c *Config) { c.MinDepositPercent = decimal.NewFromInt(101) }},
		{"zero tx limit", func(c *Config) { c.TxLimit = 0 }},
		{"shrink 100", func(c *Config) { c.ShrinkPercent = 100 }},
		{"bad quote", func(c *Config) { c.Quote = "nope" }},
		{"zero dex", func(c *Config) { c.Dex = "0x0000000000000000000000000000000000000000" }},
		{"slippage too high", func(c *Config) { c.Slippage = decimal.NewFromInt(100) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestToWei(t *testing.T) {
	wei, err := ToWei(decimal.RequireFromString("0.0000000000000000015"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), wei.Uint64())

	_, err = ToWei(decimal.NewFromInt(-1))
	require.Error(t, err)

	require.Equal(t, "1.5", FromWei(uint256.NewInt(1500000000000000000)).String())
}
