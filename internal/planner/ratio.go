package planner

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"ambientKeeper/internal/clmath"
	"ambientKeeper/internal/model"
)

var (
	q128       = new(big.Int).Lsh(big.NewInt(1), 128)
	hundred    = decimal.NewFromInt(100)
	unitLiquid = uint256.NewInt(1_000_000_000_000_000_000)
)

// BaseValue prices base and quote amounts in base units at sqrtPrice.
func BaseValue(sqrtPrice, base, quote *uint256.Int) *big.Int {
	out := new(big.Int)
	if base != nil {
		out.Add(out, base.ToBig())
	}
	if quote != nil && sqrtPrice != nil && !sqrtPrice.IsZero() {
		out.Add(out, quoteToBase(sqrtPrice, quote.ToBig()))
	}
	return out
}

func quoteToBase(sqrtPrice *uint256.Int, quote *big.Int) *big.Int {
	sp := sqrtPrice.ToBig()
	price := new(big.Int).Mul(sp, sp)
	out := new(big.Int).Mul(quote, q128)
	return out.Quo(out, price)
}

func baseToQuote(sqrtPrice *uint256.Int, base *big.Int) *big.Int {
	sp := sqrtPrice.ToBig()
	out := new(big.Int).Mul(base, sp)
	out.Mul(out, sp)
	return out.Quo(out, q128)
}

// DepositPercent is the share, in percent, of the committable wallet value
// currently held in positions. The reserve floor is never committable, so it
// is taken out of the total; a wallet with nothing idle above the reserve
// reads 100.
func DepositPercent(sqrtPrice *uint256.Int, positions []model.Position, balances model.BalanceSnapshot, reserve *uint256.Int) decimal.Decimal {
	deposited := new(big.Int)
	for _, pos := range positions {
		deposited.Add(deposited, BaseValue(sqrtPrice, pos.BaseQty, pos.QuoteQty))
	}
	total := new(big.Int).Add(deposited, BaseValue(sqrtPrice, balances.Base, balances.Quote))
	if reserve != nil {
		total.Sub(total, reserve.ToBig())
	}
	if deposited.Sign() == 0 {
		return decimal.Zero
	}
	if total.Cmp(deposited) <= 0 {
		return hundred
	}
	return decimal.NewFromBigInt(deposited, 0).Mul(hundred).DivRound(decimal.NewFromBigInt(total, 0), 4)
}

// TargetBaseShare is the fraction of value a position over rng holds in base
// at sqrtPrice.
func TargetBaseShare(sqrtPrice *uint256.Int, rng model.Range) (decimal.Decimal, error) {
	sa, sb, err := rangeSqrtBounds(rng)
	if err != nil {
		return decimal.Zero, err
	}
	base, quote := clmath.AmountsForLiquidity(sqrtPrice, sa, sb, unitLiquid, false)
	total := BaseValue(sqrtPrice, base, quote)
	if total.Sign() == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(base.ToBig(), 0).DivRound(decimal.NewFromBigInt(total, 0), 18), nil
}

// RatioSwap returns the swap that moves the committable balances toward
// share of value in base. ok is false when the correction is below swapDust
// (measured in base units).
func RatioSwap(sqrtPrice *uint256.Int, availBase, availQuote *uint256.Int, share decimal.Decimal, swapDust *uint256.Int) (plan model.SwapPlan, ok bool) {
	total := BaseValue(sqrtPrice, availBase, availQuote)
	target := decimal.NewFromBigInt(total, 0).Mul(share).BigInt()

	delta := new(big.Int).Sub(availBase.ToBig(), target)
	excess := new(big.Int).Abs(delta)
	if swapDust != nil && excess.Cmp(swapDust.ToBig()) < 0 {
		return model.SwapPlan{}, false
	}
	if excess.Sign() == 0 {
		return model.SwapPlan{}, false
	}

	if delta.Sign() > 0 {
		amount, overflow := uint256.FromBig(excess)
		if overflow {
			return model.SwapPlan{}, false
		}
		return model.SwapPlan{From: model.TokenBase, To: model.TokenQuote, Amount: amount}, true
	}

	quoteAmt := baseToQuote(sqrtPrice, excess)
	if quoteAmt.Cmp(availQuote.ToBig()) > 0 {
		quoteAmt = availQuote.ToBig()
	}
	amount, overflow := uint256.FromBig(quoteAmt)
	if overflow || amount.IsZero() {
		return model.SwapPlan{}, false
	}
	return model.SwapPlan{From: model.TokenQuote, To: model.TokenBase, Amount: amount}, true
}
