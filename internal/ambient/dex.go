package ambient

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ambientKeeper/internal/model"
)

// Dex builds userCmd transactions against the CrocSwap dex contract.
type Dex struct {
	address     common.Address
	slippageBps uint32
}

// NewDex returns a transaction builder for the dex at address.
func NewDex(address common.Address, slippageBps uint32) (*Dex, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("dex address is empty")
	}
	if slippageBps >= bpsDenominator {
		return nil, fmt.Errorf("slippage %d bps out of range", slippageBps)
	}
	return &Dex{address: address, slippageBps: slippageBps}, nil
}

// Address returns the dex contract address, the spender for approvals.
func (d *Dex) Address() common.Address {
	return d.address
}

// MintTx builds a range mint for plan. The driving token's quantity is fixed
// and the contract derives the other side.
func (d *Dex) MintTx(pool model.Pool, plan model.DepositPlan, sqrtPrice *uint256.Int) (model.TxRequest, error) {
	if plan.DrivingAmount == nil || plan.DrivingAmount.IsZero() {
		return model.TxRequest{}, fmt.Errorf("mint: empty driving amount")
	}

	code := CodeMintRangeBase
	if plan.Driving == model.TokenQuote {
		code = CodeMintRangeQuote
	}
	low, high := SlippageLimits(sqrtPrice, d.slippageBps)
	cmd := LPCommand{
		Code:      code,
		Pool:      pool,
		Range:     plan.Range,
		Qty:       plan.DrivingAmount,
		LimitLow:  low,
		LimitHigh: high,
	}

	value := new(big.Int)
	if pool.NativeBase() && plan.BaseAmount != nil {
		value = plan.BaseAmount.ToBig()
	}
	return d.userCmdTx(CallpathLiquidity, cmd.Encode, value)
}

// BurnTx builds a full withdrawal of pos.
func (d *Dex) BurnTx(pool model.Pool, pos model.Position, sqrtPrice *uint256.Int) (model.TxRequest, error) {
	if !pos.Open() {
		return model.TxRequest{}, fmt.Errorf("burn %s: position has no liquidity", pos.ID())
	}
	low, high := SlippageLimits(sqrtPrice, d.slippageBps)
	cmd := LPCommand{
		Code:      CodeBurnRange,
		Pool:      pool,
		Range:     pos.Range,
		Qty:       pos.Liquidity,
		LimitLow:  low,
		LimitHigh: high,
	}
	return d.userCmdTx(CallpathLiquidity, cmd.Encode, new(big.Int))
}

// SwapTx builds a hot-path swap selling plan.Amount of plan.From.
func (d *Dex) SwapTx(pool model.Pool, plan model.SwapPlan, sqrtPrice *uint256.Int) (model.TxRequest, error) {
	if plan.Amount == nil || plan.Amount.IsZero() {
		return model.TxRequest{}, fmt.Errorf("swap: empty amount")
	}

	sellBase := plan.From == model.TokenBase
	limit := MinSqrtPrice
	if sellBase {
		limit = MaxSqrtPrice
	}
	cmd := SwapCommand{
		Pool:       pool,
		IsBuy:      sellBase,
		InBaseQty:  sellBase,
		Qty:        plan.Amount,
		LimitPrice: limit,
		MinOut:     MinSwapOut(plan, sqrtPrice, d.slippageBps),
	}

	value := new(big.Int)
	if sellBase && pool.NativeBase() {
		value = plan.Amount.ToBig()
	}
	return d.userCmdTx(CallpathSwap, cmd.Encode, value)
}

// MinSwapOut is the expected output at sqrtPrice less slippage.
func MinSwapOut(plan model.SwapPlan, sqrtPrice *uint256.Int, slippageBps uint32) *uint256.Int {
	if plan.Amount == nil || sqrtPrice == nil || sqrtPrice.IsZero() {
		return new(uint256.Int)
	}

	amount := plan.Amount.ToBig()
	sqrt := sqrtPrice.ToBig()
	price := new(big.Int).Mul(sqrt, sqrt)
	q128 := new(big.Int).Lsh(big.NewInt(1), 128)

	out := new(big.Int)
	if plan.From == model.TokenBase {
		out.Mul(amount, price)
		out.Quo(out, q128)
	} else {
		out.Mul(amount, q128)
		out.Quo(out, price)
	}
	out.Mul(out, big.NewInt(int64(bpsDenominator-slippageBps)))
	out.Quo(out, big.NewInt(bpsDenominator))

	res, overflow := uint256.FromBig(out)
	if overflow {
		return new(uint256.Int)
	}
	return res
}

func (d *Dex) userCmdTx(callpath uint16, encode func() ([]byte, error), value *big.Int) (model.TxRequest, error) {
	payload, err := encode()
	if err != nil {
		return model.TxRequest{}, fmt.Errorf("encode callpath %d: %w", callpath, err)
	}
	data, err := PackUserCmd(callpath, payload)
	if err != nil {
		return model.TxRequest{}, err
	}
	return model.TxRequest{To: d.address, Data: data, Value: value}, nil
}
