package clmath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Q64 is 2^64, the unit of a Q64.64 sqrt price.
var Q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

var maxUint256 = new(uint256.Int).SetAllOne()

// ratio computes prod(num) / prod(den) over arbitrary precision and
// saturates at 2^256-1. A zero denominator yields zero.
func ratio(num, den []*uint256.Int, roundUp bool) *uint256.Int {
	n := big.NewInt(1)
	for _, v := range num {
		n.Mul(n, v.ToBig())
	}
	d := big.NewInt(1)
	for _, v := range den {
		d.Mul(d, v.ToBig())
	}
	if d.Sign() == 0 {
		return new(uint256.Int)
	}

	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	out, overflow := uint256.FromBig(q)
	if overflow {
		return new(uint256.Int).Set(maxUint256)
	}
	return out
}

func sortBounds(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func degenerate(lo, hi *uint256.Int) bool {
	return lo.IsZero() || lo.Eq(hi)
}

// LiquidityFromBase returns the liquidity a base amount supports when the
// whole range sits above the current price: x * sa * sb / (Q64 * (sb - sa)).
func LiquidityFromBase(amount, sqrtA, sqrtB *uint256.Int) *uint256.Int {
	lo, hi := sortBounds(sqrtA, sqrtB)
	if degenerate(lo, hi) {
		return new(uint256.Int)
	}
	width := new(uint256.Int).Sub(hi, lo)
	return ratio([]*uint256.Int{amount, lo, hi}, []*uint256.Int{Q64, width}, false)
}

// LiquidityFromQuote returns the liquidity a quote amount supports when the
// whole range sits below the current price: y * Q64 / (sb - sa).
func LiquidityFromQuote(amount, sqrtA, sqrtB *uint256.Int) *uint256.Int {
	lo, hi := sortBounds(sqrtA, sqrtB)
	if degenerate(lo, hi) {
		return new(uint256.Int)
	}
	width := new(uint256.Int).Sub(hi, lo)
	return ratio([]*uint256.Int{amount, Q64}, []*uint256.Int{width}, false)
}

func amountBase(liquidity, lo, hi *uint256.Int, roundUp bool) *uint256.Int {
	if degenerate(lo, hi) {
		return new(uint256.Int)
	}
	width := new(uint256.Int).Sub(hi, lo)
	return ratio([]*uint256.Int{liquidity, Q64, width}, []*uint256.Int{lo, hi}, roundUp)
}

func amountQuote(liquidity, lo, hi *uint256.Int, roundUp bool) *uint256.Int {
	if degenerate(lo, hi) {
		return new(uint256.Int)
	}
	width := new(uint256.Int).Sub(hi, lo)
	return ratio([]*uint256.Int{liquidity, width}, []*uint256.Int{Q64}, roundUp)
}

// AmountBaseFromLiquidity is the inverse of LiquidityFromBase, rounded down.
func AmountBaseFromLiquidity(liquidity, sqrtA, sqrtB *uint256.Int) *uint256.Int {
	lo, hi := sortBounds(sqrtA, sqrtB)
	return amountBase(liquidity, lo, hi, false)
}

// AmountQuoteFromLiquidity is the inverse of LiquidityFromQuote, rounded down.
func AmountQuoteFromLiquidity(liquidity, sqrtA, sqrtB *uint256.Int) *uint256.Int {
	lo, hi := sortBounds(sqrtA, sqrtB)
	return amountQuote(liquidity, lo, hi, false)
}

// LiquidityForAmounts returns the largest liquidity both amounts can fund
// for the range [sqrtA, sqrtB] at sqrtPrice.
func LiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, base, quote *uint256.Int) *uint256.Int {
	lo, hi := sortBounds(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(lo) <= 0:
		return LiquidityFromBase(base, lo, hi)
	case sqrtPrice.Cmp(hi) >= 0:
		return LiquidityFromQuote(quote, lo, hi)
	}

	fromBase := LiquidityFromBase(base, sqrtPrice, hi)
	fromQuote := LiquidityFromQuote(quote, lo, sqrtPrice)
	if fromBase.Cmp(fromQuote) < 0 {
		return fromBase
	}
	return fromQuote
}

// AmountsForLiquidity returns the base and quote amounts backing liquidity
// in [sqrtA, sqrtB] at sqrtPrice. roundUp is used when sizing a deposit so
// the pool never asks for more than the caller holds.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (base, quote *uint256.Int) {
	lo, hi := sortBounds(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(lo) <= 0:
		return amountBase(liquidity, lo, hi, roundUp), new(uint256.Int)
	case sqrtPrice.Cmp(hi) >= 0:
		return new(uint256.Int), amountQuote(liquidity, lo, hi, roundUp)
	}
	return amountBase(liquidity, sqrtPrice, hi, roundUp), amountQuote(liquidity, lo, sqrtPrice, roundUp)
}
