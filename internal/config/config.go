package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ambientKeeper/internal/indexer"
	"ambientKeeper/internal/model"
)

// Scroll mainnet deployment of the ETH/wrsETH pool.
const (
	DefaultIndexerURL = indexer.DefaultURL
	DefaultChainID    = 534352
	DefaultDex        = "0xaaaaaaaacb71bf2c8cae522ea5fa455571a74106"
	DefaultQuery      = "0x62223e90605845Cf5CC6DAE6E0de4CDA130d6DDf"
	DefaultQuote      = "0xa25b25548b4c98b0c7d3d27dca5d5ca743d68b7f"
	DefaultPoolIdx    = 420
)

// Config holds configuration values loaded from flags, env, or config file.
// Human amounts are kept as decimals; use the accessor methods for wei.
type Config struct {
	RPCURL     string
	IndexerURL string
	ChainID    uint64
	Dex        string
	Query      string
	Base       string
	Quote      string
	PoolIdx    uint64

	PrivateKeys []string

	ReserveFloor       decimal.Decimal
	RangeWidth         decimal.Decimal
	MinDepositPercent  decimal.Decimal
	MaxDepositPercent  decimal.Decimal
	MaxDepositAttempts int
	MaxWithdrawPasses  int
	ShrinkPercent      uint64
	Dust               decimal.Decimal
	SwapDust           decimal.Decimal
	Slippage           decimal.Decimal

	IndexerLag         time.Duration
	TxLookback         time.Duration
	TxLimit            int
	MaxRetries         int
	RetryBackoff       time.Duration
	ReceiptTimeout     time.Duration
	GasLimitMultiplier decimal.Decimal

	Concurrency int
	Cooldown    time.Duration
	Journal     string
	PGDSN       string
	StateFile   string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("indexer-url", DefaultIndexerURL)
	v.SetDefault("chain-id", uint64(DefaultChainID))
	v.SetDefault("dex", DefaultDex)
	v.SetDefault("query", DefaultQuery)
	v.SetDefault("base", "0x0000000000000000000000000000000000000000")
	v.SetDefault("quote", DefaultQuote)
	v.SetDefault("pool-idx", uint64(DefaultPoolIdx))
	v.SetDefault("reserve-floor", "0.0045")
	v.SetDefault("range-width", "0.5")
	v.SetDefault("min-deposit-percent", "91")
	v.SetDefault("max-deposit-percent", "100")
	v.SetDefault("max-deposit-attempts", 15)
	v.SetDefault("max-withdraw-passes", 3)
	v.SetDefault("shrink-percent", uint64(1))
	v.SetDefault("dust", "0.00001")
	v.SetDefault("swap-dust", "0.00001")
	v.SetDefault("slippage", "1")
	v.SetDefault("indexer-lag", 30*time.Second)
	v.SetDefault("tx-lookback", 24*time.Hour)
	v.SetDefault("tx-limit", 50)
	// Transient indexer errors retry until the context ends.
	v.SetDefault("max-retries", -1)
	v.SetDefault("retry-backoff", 2*time.Second)
	v.SetDefault("receipt-timeout", 5*time.Minute)
	v.SetDefault("gas-limit-multiplier", "1.3")
	v.SetDefault("concurrency", 1)
	v.SetDefault("cooldown", 24*time.Hour)
	v.SetDefault("journal", "./data/runs.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		IndexerURL:         v.GetString("indexer-url"),
		ChainID:            v.GetUint64("chain-id"),
		Dex:                v.GetString("dex"),
		Query:              v.GetString("query"),
		Base:               v.GetString("base"),
		Quote:              v.GetString("quote"),
		PoolIdx:            v.GetUint64("pool-idx"),
		PrivateKeys:        getStringSlice(v, "private-keys"),
		MaxDepositAttempts: v.GetInt("max-deposit-attempts"),
		MaxWithdrawPasses:  v.GetInt("max-withdraw-passes"),
		ShrinkPercent:      v.GetUint64("shrink-percent"),
		IndexerLag:         v.GetDuration("indexer-lag"),
		TxLookback:         v.GetDuration("tx-lookback"),
		TxLimit:            v.GetInt("tx-limit"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		ReceiptTimeout:     v.GetDuration("receipt-timeout"),
		Concurrency:        v.GetInt("concurrency"),
		Cooldown:           v.GetDuration("cooldown"),
		Journal:            v.GetString("journal"),
		PGDSN:              v.GetString("pg-dsn"),
		StateFile:          v.GetString("state-file"),
		LogLevel:           v.GetString("log-level"),
	}

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"reserve-floor", &cfg.ReserveFloor},
		{"range-width", &cfg.RangeWidth},
		{"min-deposit-percent", &cfg.MinDepositPercent},
		{"max-deposit-percent", &cfg.MaxDepositPercent},
		{"dust", &cfg.Dust},
		{"swap-dust", &cfg.SwapDust},
		{"slippage", &cfg.Slippage},
		{"gas-limit-multiplier", &cfg.GasLimitMultiplier},
	}
	for _, d := range decimals {
		val, err := getDecimal(v, d.key)
		if err != nil {
			return Config{}, err
		}
		*d.dst = val
	}

	return cfg, nil
}

// Pool returns the configured pool identity.
func (c Config) Pool() (model.Pool, error) {
	base, err := parseAddress("base", c.Base, true)
	if err != nil {
		return model.Pool{}, err
	}
	quote, err := parseAddress("quote", c.Quote, false)
	if err != nil {
		return model.Pool{}, err
	}
	return model.Pool{Base: base, Quote: quote, Index: c.PoolIdx}, nil
}

func (c Config) DexAddress() (common.Address, error) {
	return parseAddress("dex", c.Dex, false)
}

func (c Config) QueryAddress() (common.Address, error) {
	return parseAddress("query", c.Query, false)
}

// ReserveWei is the reserve floor in wei.
func (c Config) ReserveWei() (*uint256.Int, error) {
	return ToWei(c.ReserveFloor)
}

func (c Config) DustWei() (*uint256.Int, error) {
	return ToWei(c.Dust)
}

func (c Config) SwapDustWei() (*uint256.Int, error) {
	return ToWei(c.SwapDust)
}

// RangeWidthFraction converts the percent range width into a fraction.
func (c Config) RangeWidthFraction() decimal.Decimal {
	return c.RangeWidth.Div(decimal.NewFromInt(100))
}

// SlippageBps converts the percent slippage into basis points.
func (c Config) SlippageBps() (uint32, error) {
	bps := c.Slippage.Mul(decimal.NewFromInt(100)).Round(0)
	if bps.IsNegative() || bps.GreaterThanOrEqual(decimal.NewFromInt(10000)) {
		return 0, fmt.Errorf("slippage out of range: %s%%", c.Slippage)
	}
	return uint32(bps.IntPart()), nil
}

// Validate checks the fields every subcommand needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if !c.RangeWidth.IsPositive() {
		return fmt.Errorf("range width must be positive")
	}
	if c.MinDepositPercent.GreaterThan(c.MaxDepositPercent) {
		return fmt.Errorf("min deposit percent %s exceeds max %s", c.MinDepositPercent, c.MaxDepositPercent)
	}
	if c.TxLimit <= 0 {
		return fmt.Errorf("tx limit must be positive, got %d", c.TxLimit)
	}
	if c.ShrinkPercent == 0 || c.ShrinkPercent >= 100 {
		return fmt.Errorf("shrink percent must be in [1, 99], got %d", c.ShrinkPercent)
	}
	if !c.GasLimitMultiplier.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("gas limit multiplier must be >= 1")
	}
	if _, err := c.Pool(); err != nil {
		return err
	}
	if _, err := c.DexAddress(); err != nil {
		return err
	}
	if _, err := c.QueryAddress(); err != nil {
		return err
	}
	if _, err := c.SlippageBps(); err != nil {
		return err
	}
	return nil
}

// ToWei converts an ether-denominated amount into wei, truncating below 1 wei.
func ToWei(amount decimal.Decimal) (*uint256.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	wei := amount.Shift(18).Truncate(0).BigInt()
	out, overflow := uint256.FromBig(wei)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows", amount)
	}
	return out, nil
}

// FromWei renders wei as an ether-denominated decimal.
func FromWei(wei *uint256.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei.ToBig(), -18)
}

func parseAddress(name, value string, allowZero bool) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, value)
	}
	addr := common.HexToAddress(value)
	if !allowZero && addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s address is zero", name)
	}
	return addr, nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	val, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return val, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
