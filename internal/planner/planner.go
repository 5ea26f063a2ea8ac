package planner

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"ambientKeeper/internal/clmath"
	"ambientKeeper/internal/model"
)

const maxAdjustments = 8

// Params are the fixed sizing rules for one pool.
type Params struct {
	// Reserve is the base (native) amount that must stay in the wallet.
	Reserve *uint256.Int
	// RangeWidth is the fractional distance of each bound from the price.
	RangeWidth decimal.Decimal
	// Dust is the amount below which a deposit is not worth submitting.
	Dust *uint256.Int
}

// Request is one sizing decision against fresh balances.
type Request struct {
	SqrtPrice *uint256.Int
	Balances  model.BalanceSnapshot
	// DrivingCap, when set, caps the amount of DrivingToken committed.
	// Retries after a revert shrink it.
	DrivingCap   *uint256.Int
	DrivingToken model.Token
}

// Planner sizes deposits. It holds no state between calls.
type Planner struct {
	params Params
}

func New(params Params) (*Planner, error) {
	if !params.RangeWidth.IsPositive() {
		return nil, fmt.Errorf("range width must be positive, got %s", params.RangeWidth)
	}
	if params.Reserve == nil {
		params.Reserve = new(uint256.Int)
	}
	if params.Dust == nil {
		params.Dust = new(uint256.Int)
	}
	return &Planner{params: params}, nil
}

// Params returns the planner's sizing rules.
func (p *Planner) Params() Params {
	return p.params
}

// Available returns what may be committed: base above the reserve and the
// full quote balance.
func (p *Planner) Available(balances model.BalanceSnapshot) (base, quote *uint256.Int) {
	base = new(uint256.Int)
	if balances.Base != nil && balances.Base.Gt(p.params.Reserve) {
		base.Sub(balances.Base, p.params.Reserve)
	}
	quote = new(uint256.Int)
	if balances.Quote != nil {
		quote.Set(balances.Quote)
	}
	return base, quote
}

// Plan sizes a deposit. It returns model.ErrNoDeposit when the result would
// be dust, and never a plan whose base amount eats into the reserve.
func (p *Planner) Plan(req Request) (model.DepositPlan, error) {
	if req.SqrtPrice == nil || req.SqrtPrice.IsZero() {
		return model.DepositPlan{}, clmath.ErrNonPositiveSqrt
	}

	availBase, availQuote := p.Available(req.Balances)
	if req.DrivingCap != nil {
		capped := availBase
		if req.DrivingToken == model.TokenQuote {
			capped = availQuote
		}
		if capped.Gt(req.DrivingCap) {
			capped.Set(req.DrivingCap)
		}
	}

	baseUsable := !availBase.Lt(p.params.Dust) && !availBase.IsZero()
	quoteUsable := !availQuote.Lt(p.params.Dust) && !availQuote.IsZero()

	shape := TwoSided
	switch {
	case !baseUsable && !quoteUsable:
		return model.DepositPlan{}, model.ErrNoDeposit
	case !quoteUsable:
		shape = BaseOnly
	case !baseUsable:
		shape = QuoteOnly
	}

	rng, err := BuildRange(req.SqrtPrice, p.params.RangeWidth, shape)
	if err != nil {
		return model.DepositPlan{}, err
	}
	sa, sb, err := rangeSqrtBounds(rng)
	if err != nil {
		return model.DepositPlan{}, err
	}
	sp := req.SqrtPrice

	driving, drivingAmt := bindingToken(sp, sa, sb, availBase, availQuote)

	var plan model.DepositPlan
	for i := 0; ; i++ {
		liq := candidateLiquidity(driving, drivingAmt, sp, sa, sb)
		if liq == nil || liq.IsZero() {
			return model.DepositPlan{}, model.ErrNoDeposit
		}
		needBase, needQuote := clmath.AmountsForLiquidity(sp, sa, sb, liq, true)
		if driving == model.TokenBase {
			needBase = new(uint256.Int).Set(drivingAmt)
		} else {
			needQuote = new(uint256.Int).Set(drivingAmt)
		}

		plan = model.DepositPlan{
			Range:         rng,
			BaseAmount:    needBase,
			QuoteAmount:   needQuote,
			Liquidity:     liq,
			Driving:       driving,
			DrivingAmount: new(uint256.Int).Set(drivingAmt),
		}

		over, shrunk := shrinkForShortfall(driving, drivingAmt, needBase, availBase, needQuote, availQuote)
		if !over {
			break
		}
		if i >= maxAdjustments {
			return model.DepositPlan{}, fmt.Errorf("deposit sizing did not settle after %d adjustments", maxAdjustments)
		}
		drivingAmt = shrunk
	}

	if plan.BaseAmount.Lt(p.params.Dust) && plan.QuoteAmount.Lt(p.params.Dust) {
		return model.DepositPlan{}, model.ErrNoDeposit
	}
	return plan, nil
}

// bindingToken returns the token whose available amount supports the smaller
// liquidity, with that amount. Base wins ties.
func bindingToken(sp, sa, sb, availBase, availQuote *uint256.Int) (model.Token, *uint256.Int) {
	liq := clmath.LiquidityForAmounts(sp, sa, sb, availBase, availQuote)
	if fromBase := candidateLiquidity(model.TokenBase, availBase, sp, sa, sb); fromBase != nil && fromBase.Eq(liq) {
		return model.TokenBase, new(uint256.Int).Set(availBase)
	}
	return model.TokenQuote, new(uint256.Int).Set(availQuote)
}

// candidateLiquidity is the liquidity amount of token supports in [sa, sb]
// at sp, or nil when the range does not use that token at this price.
func candidateLiquidity(token model.Token, amount, sp, sa, sb *uint256.Int) *uint256.Int {
	if token == model.TokenBase {
		if !sp.Lt(sb) {
			return nil
		}
		lo := sa
		if sp.Gt(sa) {
			lo = sp
		}
		return clmath.LiquidityFromBase(amount, lo, sb)
	}

	if !sp.Gt(sa) {
		return nil
	}
	hi := sb
	if sp.Lt(sb) {
		hi = sp
	}
	return clmath.LiquidityFromQuote(amount, sa, hi)
}

// shrinkForShortfall reports whether either side asks for more than is
// available and, if so, the reduced driving amount. A shortfall on the
// driving side is subtracted directly; on the other side the driving amount
// is scaled by available/needed.
func shrinkForShortfall(driving model.Token, drivingAmt, needBase, availBase, needQuote, availQuote *uint256.Int) (bool, *uint256.Int) {
	need, avail := needBase, availBase
	otherNeed, otherAvail := needQuote, availQuote
	if driving == model.TokenQuote {
		need, avail = needQuote, availQuote
		otherNeed, otherAvail = needBase, availBase
	}

	if need.Gt(avail) {
		shortfall := new(uint256.Int).Sub(need, avail)
		if shortfall.Gt(drivingAmt) {
			return true, new(uint256.Int)
		}
		return true, new(uint256.Int).Sub(drivingAmt, shortfall)
	}
	if otherNeed.Gt(otherAvail) {
		scaled := new(uint256.Int).Mul(drivingAmt, otherAvail)
		scaled.Div(scaled, otherNeed)
		return true, scaled
	}
	return false, drivingAmt
}

// SwapForRatio sizes the swap that balances committable funds for a
// two-sided deposit at sqrtPrice. ok is false when no swap is needed.
func (p *Planner) SwapForRatio(sqrtPrice *uint256.Int, balances model.BalanceSnapshot, swapDust *uint256.Int) (plan model.SwapPlan, ok bool, err error) {
	rng, err := BuildRange(sqrtPrice, p.params.RangeWidth, TwoSided)
	if err != nil {
		return model.SwapPlan{}, false, err
	}
	share, err := TargetBaseShare(sqrtPrice, rng)
	if err != nil {
		return model.SwapPlan{}, false, err
	}
	availBase, availQuote := p.Available(balances)
	plan, ok = RatioSwap(sqrtPrice, availBase, availQuote, share, swapDust)
	return plan, ok, nil
}
