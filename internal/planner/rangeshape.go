package planner

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"ambientKeeper/internal/clmath"
	"ambientKeeper/internal/model"
)

// Shape picks which side of the current price a new range covers.
type Shape int

const (
	// TwoSided straddles the current price and needs both tokens.
	TwoSided Shape = iota
	// BaseOnly sits entirely above the price and needs only base.
	BaseOnly
	// QuoteOnly sits entirely below the price and needs only quote.
	QuoteOnly
)

func (s Shape) String() string {
	switch s {
	case BaseOnly:
		return "base_only"
	case QuoteOnly:
		return "quote_only"
	default:
		return "two_sided"
	}
}

// BuildRange snaps price/(1+width) and price*(1+width) onto the tick grid.
// The upper bound is pushed out one extra grid step so rounding never
// collapses the range.
func BuildRange(sqrtPrice *uint256.Int, width decimal.Decimal, shape Shape) (model.Range, error) {
	if !width.IsPositive() {
		return model.Range{}, fmt.Errorf("range width must be positive, got %s", width)
	}

	price, err := clmath.SqrtQ64ToPrice(sqrtPrice)
	if err != nil {
		return model.Range{}, fmt.Errorf("range price: %w", err)
	}
	factor, _, err := big.ParseFloat(decimal.NewFromInt(1).Add(width).String(), 10, 256, big.ToNearestEven)
	if err != nil {
		return model.Range{}, fmt.Errorf("range width: %w", err)
	}

	lowTick, err := clmath.PriceToTick(new(big.Float).SetPrec(512).Quo(price, factor))
	if err != nil {
		return model.Range{}, fmt.Errorf("range low: %w", err)
	}
	highTick, err := clmath.PriceToTick(new(big.Float).SetPrec(512).Mul(price, factor))
	if err != nil {
		return model.Range{}, fmt.Errorf("range high: %w", err)
	}

	low := clmath.FloorToGrid(lowTick)
	high := clmath.CeilToGrid(highTick) + clmath.TickSpacing

	switch shape {
	case BaseOnly:
		current, err := clmath.SqrtQ64ToTick(sqrtPrice)
		if err != nil {
			return model.Range{}, fmt.Errorf("range current tick: %w", err)
		}
		low = clmath.FloorToGrid(current) + clmath.TickSpacing
		if high <= low {
			high = low + clmath.TickSpacing
		}
	case QuoteOnly:
		current, err := clmath.SqrtQ64ToTick(sqrtPrice)
		if err != nil {
			return model.Range{}, fmt.Errorf("range current tick: %w", err)
		}
		high = clmath.FloorToGrid(current)
		if low >= high {
			low = high - clmath.TickSpacing
		}
	}

	if low < clmath.MinTick || high > clmath.MaxTick {
		return model.Range{}, fmt.Errorf("%w: [%d,%d)", clmath.ErrTickOutOfRange, low, high)
	}
	return model.NewRange(low, high)
}

// rangeSqrtBounds returns the Q64.64 sqrt prices of rng's boundaries.
func rangeSqrtBounds(rng model.Range) (*uint256.Int, *uint256.Int, error) {
	lo, err := clmath.TickToSqrtQ64(rng.Low)
	if err != nil {
		return nil, nil, err
	}
	hi, err := clmath.TickToSqrtQ64(rng.High)
	if err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}
