package clmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const floatPrec = 256

var (
	ErrNonPositivePrice = errors.New("price must be positive")
	ErrNonPositiveSqrt  = errors.New("sqrt price must be positive")
	ErrTickOutOfRange   = errors.New("tick out of range")
	ErrSqrtOverflow     = errors.New("sqrt price overflows Q64.64")
)

var (
	tickBase    = mustParseFloat("1.0001")
	q64Float    = new(big.Float).SetPrec(floatPrec).SetInt(new(big.Int).Lsh(big.NewInt(1), 64))
	half        = new(big.Float).SetPrec(floatPrec).SetFloat64(0.5)
	maxQ64Q64   = new(big.Int).Lsh(big.NewInt(1), 128)
	logTickStep = math.Log(1.0001)
)

func mustParseFloat(s string) *big.Float {
	f, _, err := big.ParseFloat(s, 10, floatPrec, big.ToNearestEven)
	if err != nil {
		panic(err)
	}
	return f
}

func newFloat() *big.Float {
	return new(big.Float).SetPrec(floatPrec)
}

// TickToPrice returns 1.0001^tick.
func TickToPrice(tick int32) *big.Float {
	result := newFloat().SetInt64(1)
	base := newFloat().Set(tickBase)

	exp := int64(tick)
	if exp < 0 {
		exp = -exp
	}
	for e := uint64(exp); e > 0; e >>= 1 {
		if e&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
	}

	if tick < 0 {
		return newFloat().Quo(newFloat().SetInt64(1), result)
	}
	return result
}

// PriceToTick returns floor(log_1.0001(price)).
func PriceToTick(price *big.Float) (int32, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, ErrNonPositivePrice
	}

	approx, _ := price.Float64()
	if approx == 0 || math.IsInf(approx, 0) {
		return 0, fmt.Errorf("%w: price %s", ErrTickOutOfRange, price.Text('g', 10))
	}

	guess := math.Floor(math.Log(approx) / logTickStep)
	if guess < float64(MinTick)-1 || guess > float64(MaxTick)+1 {
		return 0, fmt.Errorf("%w: price %s", ErrTickOutOfRange, price.Text('g', 10))
	}
	tick := int32(guess)

	// float64 log is off by at most a tick or two; settle exactly.
	for TickToPrice(tick).Cmp(price) > 0 {
		tick--
	}
	for TickToPrice(tick+1).Cmp(price) <= 0 {
		tick++
	}

	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	return tick, nil
}

// PriceToSqrtQ64 returns round(sqrt(price) * 2^64).
func PriceToSqrtQ64(price *big.Float) (*uint256.Int, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, ErrNonPositivePrice
	}

	scaled := newFloat().Sqrt(price)
	scaled.Mul(scaled, q64Float)
	scaled.Add(scaled, half)

	rounded, _ := scaled.Int(nil)
	if rounded.Sign() <= 0 {
		return nil, ErrNonPositiveSqrt
	}
	if rounded.Cmp(maxQ64Q64) >= 0 {
		return nil, ErrSqrtOverflow
	}
	out, overflow := uint256.FromBig(rounded)
	if overflow {
		return nil, ErrSqrtOverflow
	}
	return out, nil
}

// SqrtQ64ToPrice returns (sqrtQ64 / 2^64)^2. The result is exact.
func SqrtQ64ToPrice(sqrtQ64 *uint256.Int) (*big.Float, error) {
	if sqrtQ64 == nil || sqrtQ64.IsZero() {
		return nil, ErrNonPositiveSqrt
	}

	root := new(big.Float).SetPrec(2 * floatPrec).SetInt(sqrtQ64.ToBig())
	root.Quo(root, q64Float)
	return new(big.Float).SetPrec(2*floatPrec).Mul(root, root), nil
}

// TickToSqrtQ64 returns the Q64.64 sqrt price at a tick boundary.
func TickToSqrtQ64(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	return PriceToSqrtQ64(TickToPrice(tick))
}

// SqrtQ64ToTick returns the largest tick whose sqrt price is <= sqrtQ64.
func SqrtQ64ToTick(sqrtQ64 *uint256.Int) (int32, error) {
	price, err := SqrtQ64ToPrice(sqrtQ64)
	if err != nil {
		return 0, err
	}
	tick, err := PriceToTick(price)
	if err != nil {
		return 0, err
	}

	// Settle in the integer domain so boundary sqrt prices map back to their own tick.
	for tick > MinTick {
		at, err := TickToSqrtQ64(tick)
		if err != nil {
			return 0, err
		}
		if at.Cmp(sqrtQ64) <= 0 {
			break
		}
		tick--
	}
	for tick < MaxTick {
		next, err := TickToSqrtQ64(tick + 1)
		if err != nil {
			return 0, err
		}
		if next.Cmp(sqrtQ64) > 0 {
			break
		}
		tick++
	}
	return tick, nil
}
