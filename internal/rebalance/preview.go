package rebalance

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"ambientKeeper/internal/model"
	"ambientKeeper/internal/planner"
)

// Preview is a read-only view of what Run would do for a wallet.
type Preview struct {
	Wallet          common.Address
	Positions       []model.Position
	SqrtPrice       *uint256.Int
	Tick            int32
	Balances        model.BalanceSnapshot
	Percent         decimal.Decimal
	InRange         bool
	WithinTolerance bool
	// Next is the state EVALUATE would move to.
	Next State
	// Swap and Deposit are projected against the balances the wallet would
	// hold once every position is withdrawn. The swap is not applied to the
	// deposit projection. Either may be nil.
	Swap    *model.SwapPlan
	Deposit *model.DepositPlan
}

// Preview evaluates acct and projects the swap and deposit without submitting
// anything.
func (e *Engine) Preview(ctx context.Context, acct Account) (Preview, error) {
	r := &run{e: e, acct: acct, res: &Result{}}

	positions, err := e.deps.Positions.Reconcile(ctx, acct.Address())
	if err != nil {
		return Preview{}, fmt.Errorf("reconcile: %w", err)
	}
	sqrtPrice, err := r.price(ctx)
	if err != nil {
		return Preview{}, err
	}
	balances, err := r.balances(ctx)
	if err != nil {
		return Preview{}, err
	}
	a, err := e.assess(positions, sqrtPrice, balances)
	if err != nil {
		return Preview{}, err
	}

	p := Preview{
		Wallet:          acct.Address(),
		Positions:       positions,
		SqrtPrice:       sqrtPrice,
		Tick:            a.Tick,
		Balances:        balances,
		Percent:         a.Percent,
		InRange:         a.InRange,
		WithinTolerance: a.WithinTolerance,
		Next:            a.Next,
	}
	if a.Next == StateDone {
		return p, nil
	}

	projected := withdrawnBalances(balances, positions)
	swap, ok, err := e.deps.Planner.SwapForRatio(sqrtPrice, projected, e.cfg.SwapDust)
	if err != nil {
		return Preview{}, fmt.Errorf("ratio target: %w", err)
	}
	if ok {
		p.Swap = &swap
	}

	plan, err := e.deps.Planner.Plan(planner.Request{SqrtPrice: sqrtPrice, Balances: projected})
	switch {
	case errors.Is(err, model.ErrNoDeposit):
	case err != nil:
		return Preview{}, fmt.Errorf("plan deposit: %w", err)
	default:
		p.Deposit = &plan
	}
	return p, nil
}

func withdrawnBalances(balances model.BalanceSnapshot, positions []model.Position) model.BalanceSnapshot {
	out := model.BalanceSnapshot{
		Base:  new(uint256.Int),
		Quote: new(uint256.Int),
	}
	if balances.Base != nil {
		out.Base.Set(balances.Base)
	}
	if balances.Quote != nil {
		out.Quote.Set(balances.Quote)
	}
	for _, pos := range positions {
		if pos.BaseQty != nil {
			out.Base.Add(out.Base, pos.BaseQty)
		}
		if pos.QuoteQty != nil {
			out.Quote.Add(out.Quote, pos.QuoteQty)
		}
	}
	return out
}
