package rebalance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ambientKeeper/internal/clmath"
	"ambientKeeper/internal/model"
	"ambientKeeper/internal/planner"
)

// PoolQuerier reads the pool's current sqrt price.
type PoolQuerier interface {
	QueryPrice(ctx context.Context, pool model.Pool) (*uint256.Int, error)
}

// PositionSource returns the authoritative open positions for owner.
type PositionSource interface {
	Reconcile(ctx context.Context, owner common.Address) ([]model.Position, error)
}

// Account signs and submits for one wallet. A zero token address means the
// native asset.
type Account interface {
	Address() common.Address
	Balance(ctx context.Context, token common.Address) (*uint256.Int, error)
	Submit(ctx context.Context, req model.TxRequest) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, hash common.Hash) (model.TxStatus, error)
	EnsureAllowance(ctx context.Context, token, spender common.Address, amount *uint256.Int) error
}

// Swapper corrects the token ratio ahead of a deposit.
type Swapper interface {
	Swap(ctx context.Context, plan model.SwapPlan) (common.Hash, error)
}

// SwapperFactory binds a Swapper to the wallet being rebalanced.
type SwapperFactory func(acct Account) Swapper

// Commands builds dex transactions.
type Commands interface {
	Address() common.Address
	MintTx(pool model.Pool, plan model.DepositPlan, sqrtPrice *uint256.Int) (model.TxRequest, error)
	BurnTx(pool model.Pool, pos model.Position, sqrtPrice *uint256.Int) (model.TxRequest, error)
}

// Config holds the loop bounds and tolerances.
type Config struct {
	MinDepositPercent  decimal.Decimal
	MaxDepositPercent  decimal.Decimal
	MaxDepositAttempts int
	MaxWithdrawPasses  int
	ShrinkPercent      uint64
	SwapDust           *uint256.Int
	IndexerLag         time.Duration
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Pool      model.Pool
	Query     PoolQuerier
	Positions PositionSource
	Planner   *planner.Planner
	Dex       Commands
	Swapper   SwapperFactory
}

// Engine runs the rebalance state machine for one pool. It is safe to share
// across wallets; each Run owns its own attempt counter.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
	now    func() time.Time
}

func NewEngine(deps Deps, cfg Config, logger *zap.Logger) (*Engine, error) {
	if deps.Query == nil || deps.Positions == nil || deps.Planner == nil || deps.Dex == nil || deps.Swapper == nil {
		return nil, fmt.Errorf("rebalance engine: missing dependency")
	}
	if cfg.MaxDepositAttempts <= 0 {
		cfg.MaxDepositAttempts = 15
	}
	if cfg.MaxWithdrawPasses <= 0 {
		cfg.MaxWithdrawPasses = 3
	}
	if cfg.ShrinkPercent == 0 || cfg.ShrinkPercent >= 100 {
		cfg.ShrinkPercent = 1
	}
	if cfg.MaxDepositPercent.IsZero() {
		cfg.MaxDepositPercent = decimal.NewFromInt(100)
	}
	if cfg.SwapDust == nil {
		cfg.SwapDust = new(uint256.Int)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}, nil
}

// Result describes one run, successful or not.
type Result struct {
	Wallet        common.Address
	State         State
	FailedStep    State
	PercentBefore decimal.Decimal
	PercentAfter  decimal.Decimal
	Withdrawn     int
	Attempts      int
	Committed     *uint256.Int
	Plan          *model.DepositPlan
	TxHashes      []common.Hash
	StartedAt     time.Time
	FinishedAt    time.Time
}

// run is the per-invocation state. Nothing here outlives Run.
type run struct {
	e       *Engine
	acct    Account
	swapper Swapper
	log     *zap.Logger
	res     *Result

	positions []model.Position
	sqrtPrice *uint256.Int
	plan      model.DepositPlan

	attempt    int
	drivingCap *uint256.Int
	capToken   model.Token
}

// Run drives acct from EVALUATE to DONE or FAILED. On failure the returned
// error is a *StepError and the Result still carries the progress made.
func (e *Engine) Run(ctx context.Context, acct Account) (Result, error) {
	res := &Result{Wallet: acct.Address(), StartedAt: e.now()}
	r := &run{
		e:       e,
		acct:    acct,
		swapper: e.deps.Swapper(acct),
		log:     e.logger.With(zap.String("wallet", acct.Address().Hex())),
		res:     res,
	}

	state := StateEvaluate
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return r.fail(state, err)
		}

		next, err := r.step(ctx, state)
		if err != nil {
			return r.fail(state, err)
		}
		if next != state {
			r.log.Info("state transition",
				zap.Stringer("from", state),
				zap.Stringer("to", next),
				zap.Int("attempt", r.attempt),
			)
		}
		state = next
	}

	res.State = state
	res.FinishedAt = e.now()
	return *res, nil
}

func (r *run) step(ctx context.Context, state State) (State, error) {
	switch state {
	case StateEvaluate:
		return r.evaluate(ctx)
	case StateWithdrawAll:
		return r.withdrawAll(ctx)
	case StateRebalanceRatio:
		return r.rebalanceRatio(ctx)
	case StatePlanDeposit:
		return r.planDeposit(ctx)
	case StateSubmitDeposit:
		return r.submitDeposit(ctx)
	case StateVerify:
		return r.verify(ctx)
	default:
		return StateFailed, fmt.Errorf("unknown state %q", state)
	}
}

func (r *run) fail(state State, err error) (Result, error) {
	r.res.State = StateFailed
	r.res.FailedStep = state
	r.res.FinishedAt = r.e.now()

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		stepErr = &StepError{Step: state, Err: err}
	}
	stepErr.Withdrawn = r.res.Withdrawn
	if stepErr.Attempts == 0 {
		stepErr.Attempts = r.attempt
	}

	r.log.Error("rebalance failed", zap.Stringer("state", state), zap.Error(stepErr))
	return *r.res, stepErr
}

func (r *run) evaluate(ctx context.Context) (State, error) {
	positions, err := r.e.deps.Positions.Reconcile(ctx, r.acct.Address())
	if err != nil {
		return StateFailed, fmt.Errorf("reconcile: %w", err)
	}
	r.positions = positions

	sqrtPrice, err := r.price(ctx)
	if err != nil {
		return StateFailed, err
	}
	balances, err := r.balances(ctx)
	if err != nil {
		return StateFailed, err
	}

	a, err := r.e.assess(positions, sqrtPrice, balances)
	if err != nil {
		return StateFailed, err
	}
	r.res.PercentBefore = a.Percent

	r.log.Info("evaluate",
		zap.Int("positions", len(positions)),
		zap.Int32("tick", a.Tick),
		zap.String("deposit_percent", a.Percent.StringFixed(2)),
		zap.Bool("in_range", a.InRange),
	)

	if a.Next == StateDone {
		if err := r.sweepDust(ctx, balances); err != nil {
			return StateFailed, err
		}
	}
	return a.Next, nil
}

// assessment is the EVALUATE decision for a snapshot of wallet state.
type assessment struct {
	Tick            int32
	Percent         decimal.Decimal
	InRange         bool
	WithinTolerance bool
	Next            State
}

// depositPercent measures deposits against wallet value above the reserve.
func (e *Engine) depositPercent(sqrtPrice *uint256.Int, positions []model.Position, balances model.BalanceSnapshot) decimal.Decimal {
	return planner.DepositPercent(sqrtPrice, positions, balances, e.deps.Planner.Params().Reserve)
}

func (e *Engine) assess(positions []model.Position, sqrtPrice *uint256.Int, balances model.BalanceSnapshot) (assessment, error) {
	tick, err := clmath.SqrtQ64ToTick(sqrtPrice)
	if err != nil {
		return assessment{}, fmt.Errorf("current tick: %w", err)
	}
	a := assessment{
		Tick:    tick,
		Percent: e.depositPercent(sqrtPrice, positions, balances),
		InRange: true,
	}
	for _, pos := range positions {
		if !pos.Range.Contains(tick) {
			a.InRange = false
			break
		}
	}
	a.WithinTolerance = a.Percent.GreaterThanOrEqual(e.cfg.MinDepositPercent) && a.Percent.LessThanOrEqual(e.cfg.MaxDepositPercent)

	switch {
	case len(positions) > 0 && a.InRange && a.WithinTolerance:
		a.Next = StateDone
	case len(positions) == 0:
		a.Next = StateRebalanceRatio
	default:
		a.Next = StateWithdrawAll
	}
	return a, nil
}

// sweepDust sells leftover quote so idle value rejoins the native balance.
func (r *run) sweepDust(ctx context.Context, balances model.BalanceSnapshot) error {
	if balances.Quote == nil || balances.Quote.IsZero() || balances.Quote.Lt(r.e.cfg.SwapDust) {
		return nil
	}
	plan := model.SwapPlan{From: model.TokenQuote, To: model.TokenBase, Amount: balances.Quote}
	hash, err := r.swapper.Swap(ctx, plan)
	if err != nil {
		return fmt.Errorf("sell leftover quote: %w", err)
	}
	r.res.TxHashes = append(r.res.TxHashes, hash)
	return nil
}

func (r *run) withdrawAll(ctx context.Context) (State, error) {
	for pass := 1; len(r.positions) > 0; pass++ {
		if pass > r.e.cfg.MaxWithdrawPasses {
			return StateFailed, &StepError{
				Step:      StateWithdrawAll,
				Err:       fmt.Errorf("%w: %d passes", ErrWithdrawStuck, r.e.cfg.MaxWithdrawPasses),
				Remaining: len(r.positions),
			}
		}

		sqrtPrice, err := r.price(ctx)
		if err != nil {
			return StateFailed, err
		}
		for _, pos := range r.positions {
			req, err := r.e.deps.Dex.BurnTx(r.e.deps.Pool, pos, sqrtPrice)
			if err != nil {
				return StateFailed, err
			}
			err = r.submitAndWait(ctx, req)
			switch {
			case errors.Is(err, model.ErrExecutionReverted):
				r.log.Warn("withdraw reverted", zap.String("position", pos.ID()), zap.Int("pass", pass))
			case err != nil:
				return StateFailed, &StepError{Step: StateWithdrawAll, Err: fmt.Errorf("withdraw %s: %w", pos.ID(), err), Remaining: len(r.positions)}
			default:
				r.res.Withdrawn++
				r.log.Info("withdrawn", zap.String("position", pos.ID()), zap.Stringer("range", pos.Range))
			}
		}

		if err := r.e.sleep(ctx, r.e.cfg.IndexerLag); err != nil {
			return StateFailed, err
		}
		positions, err := r.e.deps.Positions.Reconcile(ctx, r.acct.Address())
		if err != nil {
			return StateFailed, fmt.Errorf("reconcile after withdraw: %w", err)
		}
		r.positions = positions
	}
	return StateRebalanceRatio, nil
}

func (r *run) rebalanceRatio(ctx context.Context) (State, error) {
	sqrtPrice, err := r.price(ctx)
	if err != nil {
		return StateFailed, err
	}
	balances, err := r.balances(ctx)
	if err != nil {
		return StateFailed, err
	}

	plan, ok, err := r.e.deps.Planner.SwapForRatio(sqrtPrice, balances, r.e.cfg.SwapDust)
	if err != nil {
		return StateFailed, fmt.Errorf("ratio target: %w", err)
	}
	if !ok {
		r.log.Info("ratio within dust, no swap")
		return StatePlanDeposit, nil
	}

	r.log.Info("ratio swap",
		zap.Stringer("from", plan.From),
		zap.String("amount", plan.Amount.ToBig().String()),
	)
	hash, err := r.swapper.Swap(ctx, plan)
	if err != nil {
		return StateFailed, fmt.Errorf("ratio swap: %w", err)
	}
	r.res.TxHashes = append(r.res.TxHashes, hash)
	return StatePlanDeposit, nil
}

func (r *run) planDeposit(ctx context.Context) (State, error) {
	sqrtPrice, err := r.price(ctx)
	if err != nil {
		return StateFailed, err
	}
	balances, err := r.balances(ctx)
	if err != nil {
		return StateFailed, err
	}

	plan, err := r.e.deps.Planner.Plan(planner.Request{
		SqrtPrice:    sqrtPrice,
		Balances:     balances,
		DrivingCap:   r.drivingCap,
		DrivingToken: r.capToken,
	})
	if errors.Is(err, model.ErrNoDeposit) {
		r.log.Info("deposit skipped, below dust")
		return StateVerify, nil
	}
	if err != nil {
		return StateFailed, fmt.Errorf("plan deposit: %w", err)
	}

	r.sqrtPrice = sqrtPrice
	r.plan = plan
	return StateSubmitDeposit, nil
}

func (r *run) submitDeposit(ctx context.Context) (State, error) {
	r.attempt++
	r.res.Attempts = r.attempt
	plan := r.plan

	if err := r.approve(ctx, plan); err != nil {
		return StateFailed, err
	}
	req, err := r.e.deps.Dex.MintTx(r.e.deps.Pool, plan, r.sqrtPrice)
	if err != nil {
		return StateFailed, err
	}

	r.log.Info("deposit submit",
		zap.Int("attempt", r.attempt),
		zap.Stringer("range", plan.Range),
		zap.Stringer("driving", plan.Driving),
		zap.String("driving_amount", plan.DrivingAmount.ToBig().String()),
		zap.String("base", plan.BaseAmount.ToBig().String()),
		zap.String("quote", plan.QuoteAmount.ToBig().String()),
	)

	err = r.submitAndWait(ctx, req)
	switch {
	case err == nil:
		r.res.Committed = new(uint256.Int).Set(plan.DrivingAmount)
		r.res.Plan = &plan
		return StateVerify, nil
	case !errors.Is(err, model.ErrExecutionReverted):
		return StateFailed, &StepError{Step: StateSubmitDeposit, Err: err, Attempts: r.attempt, LastAmount: plan.DrivingAmount}
	}

	if r.attempt >= r.e.cfg.MaxDepositAttempts {
		return StateFailed, &StepError{
			Step:       StateSubmitDeposit,
			Err:        fmt.Errorf("%w: %v", ErrDepositAttemptsExhausted, err),
			Attempts:   r.attempt,
			LastAmount: plan.DrivingAmount,
		}
	}

	shrunk := new(uint256.Int).Mul(plan.DrivingAmount, uint256.NewInt(100-r.e.cfg.ShrinkPercent))
	shrunk.Div(shrunk, uint256.NewInt(100))
	r.drivingCap = shrunk
	r.capToken = plan.Driving
	r.log.Warn("deposit reverted, shrinking",
		zap.Int("attempt", r.attempt),
		zap.String("next_amount", shrunk.ToBig().String()),
	)
	return StatePlanDeposit, nil
}

func (r *run) approve(ctx context.Context, plan model.DepositPlan) error {
	spender := r.e.deps.Dex.Address()
	pool := r.e.deps.Pool
	if !pool.NativeBase() && plan.BaseAmount != nil && !plan.BaseAmount.IsZero() {
		if err := r.acct.EnsureAllowance(ctx, pool.Base, spender, plan.BaseAmount); err != nil {
			return fmt.Errorf("approve base: %w", err)
		}
	}
	if plan.QuoteAmount != nil && !plan.QuoteAmount.IsZero() {
		if err := r.acct.EnsureAllowance(ctx, pool.Quote, spender, plan.QuoteAmount); err != nil {
			return fmt.Errorf("approve quote: %w", err)
		}
	}
	return nil
}

func (r *run) verify(ctx context.Context) (State, error) {
	if err := r.e.sleep(ctx, r.e.cfg.IndexerLag); err != nil {
		return StateFailed, err
	}

	positions, err := r.e.deps.Positions.Reconcile(ctx, r.acct.Address())
	if err != nil {
		r.log.Warn("verify reconcile failed", zap.Error(err))
		return StateDone, nil
	}
	sqrtPrice, err := r.price(ctx)
	if err != nil {
		r.log.Warn("verify price failed", zap.Error(err))
		return StateDone, nil
	}
	balances, err := r.balances(ctx)
	if err != nil {
		r.log.Warn("verify balances failed", zap.Error(err))
		return StateDone, nil
	}

	pct := r.e.depositPercent(sqrtPrice, positions, balances)
	r.res.PercentAfter = pct
	fields := []zap.Field{
		zap.Int("positions", len(positions)),
		zap.String("deposit_percent", pct.StringFixed(2)),
	}
	if pct.LessThan(r.e.cfg.MinDepositPercent) || pct.GreaterThan(r.e.cfg.MaxDepositPercent) {
		r.log.Warn("deposit percent outside tolerance after rebalance", fields...)
	} else {
		r.log.Info("verified", fields...)
	}
	return StateDone, nil
}

func (r *run) price(ctx context.Context) (*uint256.Int, error) {
	sqrtPrice, err := r.e.deps.Query.QueryPrice(ctx, r.e.deps.Pool)
	if err != nil {
		return nil, fmt.Errorf("query price: %w", err)
	}
	return sqrtPrice, nil
}

func (r *run) balances(ctx context.Context) (model.BalanceSnapshot, error) {
	base, err := r.acct.Balance(ctx, r.e.deps.Pool.Base)
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("base balance: %w", err)
	}
	quote, err := r.acct.Balance(ctx, r.e.deps.Pool.Quote)
	if err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("quote balance: %w", err)
	}
	return model.BalanceSnapshot{Base: base, Quote: quote}, nil
}

// submitAndWait returns model.ErrExecutionReverted for a reverted receipt.
func (r *run) submitAndWait(ctx context.Context, req model.TxRequest) error {
	hash, err := r.acct.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	r.res.TxHashes = append(r.res.TxHashes, hash)

	status, err := r.acct.WaitForConfirmation(ctx, hash)
	if err != nil {
		return fmt.Errorf("wait %s: %w", hash.Hex(), err)
	}
	if status != model.TxStatusSuccess {
		return fmt.Errorf("tx %s: %w", hash.Hex(), model.ErrExecutionReverted)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
