package indexer

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// parseLiquidity reads a liquidity figure that the indexer may render as an
// integer or in float notation ("1.2e18").
func parseLiquidity(n json.Number) (*uint256.Int, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return new(uint256.Int), nil
	}

	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		f, _, err := big.ParseFloat(s, 10, 256, big.ToZero)
		if err != nil {
			return nil, fmt.Errorf("liquidity %q: %w", s, err)
		}
		if f.IsInf() {
			return nil, fmt.Errorf("liquidity %q: infinite", s)
		}
		value, _ = f.Int(nil)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("liquidity %q: negative", s)
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("liquidity %q: overflows uint256", s)
	}
	return out, nil
}
