package ambient

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ambientKeeper/internal/model"
)

// Dex callpaths.
const (
	CallpathSwap      uint16 = 1
	CallpathLiquidity uint16 = 128
)

// Liquidity command codes.
const (
	CodeBurnRange      uint8 = 2
	CodeMintRangeBase  uint8 = 11
	CodeMintRangeQuote uint8 = 12
)

// Sqrt price bounds used as swap limits when slippage is enforced by minOut.
var (
	MaxSqrtPrice = mustUint256("21267430153580247136652501917186561137")
	MinSqrtPrice = uint256.NewInt(65537)
)

const bpsDenominator = 10000

var (
	lpArgsOnce sync.Once
	lpArgs     abi.Arguments
	lpArgsErr  error

	swapArgsOnce sync.Once
	swapArgs     abi.Arguments
	swapArgsErr  error
)

func mustUint256(dec string) *uint256.Int {
	b, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		panic("invalid decimal " + dec)
	}
	out, overflow := uint256.FromBig(b)
	if overflow {
		panic("uint256 overflow " + dec)
	}
	return out
}

func newArguments(types ...string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for _, name := range types {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			return nil, fmt.Errorf("abi type %s: %w", name, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}

func liquidityArguments() (abi.Arguments, error) {
	lpArgsOnce.Do(func() {
		lpArgs, lpArgsErr = newArguments(
			"uint8", "address", "address", "uint256", "int24", "int24",
			"uint128", "uint128", "uint128", "uint8", "address",
		)
	})
	return lpArgs, lpArgsErr
}

func swapArguments() (abi.Arguments, error) {
	swapArgsOnce.Do(func() {
		swapArgs, swapArgsErr = newArguments(
			"address", "address", "uint256", "bool", "bool",
			"uint128", "uint16", "uint128", "uint128", "uint8",
		)
	})
	return swapArgs, swapArgsErr
}

// LPCommand is the payload of a range mint or burn.
type LPCommand struct {
	Code        uint8
	Pool        model.Pool
	Range       model.Range
	Qty         *uint256.Int
	LimitLow    *uint256.Int
	LimitHigh   *uint256.Int
	SettleFlags uint8
	Conduit     common.Address
}

// Encode ABI-encodes the command payload.
func (c LPCommand) Encode() ([]byte, error) {
	args, err := liquidityArguments()
	if err != nil {
		return nil, err
	}
	return args.Pack(
		c.Code,
		c.Pool.Base,
		c.Pool.Quote,
		new(big.Int).SetUint64(c.Pool.Index),
		big.NewInt(int64(c.Range.Low)),
		big.NewInt(int64(c.Range.High)),
		bigOrZero(c.Qty),
		bigOrZero(c.LimitLow),
		bigOrZero(c.LimitHigh),
		c.SettleFlags,
		c.Conduit,
	)
}

// SwapCommand is the payload of a hot-path swap.
type SwapCommand struct {
	Pool        model.Pool
	IsBuy       bool
	InBaseQty   bool
	Qty         *uint256.Int
	Tip         uint16
	LimitPrice  *uint256.Int
	MinOut      *uint256.Int
	SettleFlags uint8
}

// Encode ABI-encodes the command payload.
func (c SwapCommand) Encode() ([]byte, error) {
	args, err := swapArguments()
	if err != nil {
		return nil, err
	}
	return args.Pack(
		c.Pool.Base,
		c.Pool.Quote,
		new(big.Int).SetUint64(c.Pool.Index),
		c.IsBuy,
		c.InBaseQty,
		bigOrZero(c.Qty),
		c.Tip,
		bigOrZero(c.LimitPrice),
		bigOrZero(c.MinOut),
		c.SettleFlags,
	)
}

// DecodeLPCommand reverses LPCommand.Encode.
func DecodeLPCommand(payload []byte) (LPCommand, error) {
	args, err := liquidityArguments()
	if err != nil {
		return LPCommand{}, err
	}
	values, err := args.Unpack(payload)
	if err != nil {
		return LPCommand{}, fmt.Errorf("unpack lp command: %w", err)
	}
	if len(values) != 11 {
		return LPCommand{}, fmt.Errorf("unpack lp command: expected 11 fields, got %d", len(values))
	}

	code, ok := values[0].(uint8)
	if !ok {
		return LPCommand{}, fmt.Errorf("lp command code: unsupported type %T", values[0])
	}
	cmd := LPCommand{Code: code}
	cmd.Pool.Base, _ = values[1].(common.Address)
	cmd.Pool.Quote, _ = values[2].(common.Address)
	if idx, ok := values[3].(*big.Int); ok {
		cmd.Pool.Index = idx.Uint64()
	}
	if low, ok := values[4].(*big.Int); ok {
		cmd.Range.Low = int32(low.Int64())
	}
	if high, ok := values[5].(*big.Int); ok {
		cmd.Range.High = int32(high.Int64())
	}
	if cmd.Qty, err = asUint256(values[6]); err != nil {
		return LPCommand{}, fmt.Errorf("lp command qty: %w", err)
	}
	if cmd.LimitLow, err = asUint256(values[7]); err != nil {
		return LPCommand{}, fmt.Errorf("lp command limit low: %w", err)
	}
	if cmd.LimitHigh, err = asUint256(values[8]); err != nil {
		return LPCommand{}, fmt.Errorf("lp command limit high: %w", err)
	}
	cmd.SettleFlags, _ = values[9].(uint8)
	cmd.Conduit, _ = values[10].(common.Address)
	return cmd, nil
}

// PackUserCmd builds userCmd(callpath, payload) calldata.
func PackUserCmd(callpath uint16, payload []byte) ([]byte, error) {
	parsed, err := CrocDexABI()
	if err != nil {
		return nil, fmt.Errorf("parse dex abi: %w", err)
	}
	data, err := parsed.Pack("userCmd", callpath, payload)
	if err != nil {
		return nil, fmt.Errorf("pack userCmd: %w", err)
	}
	return data, nil
}

// UnpackUserCmd splits userCmd calldata into callpath and payload.
func UnpackUserCmd(data []byte) (uint16, []byte, error) {
	parsed, err := CrocDexABI()
	if err != nil {
		return 0, nil, fmt.Errorf("parse dex abi: %w", err)
	}
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("calldata too short")
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return 0, nil, fmt.Errorf("lookup selector: %w", err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return 0, nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	callpath, ok := values[0].(uint16)
	if !ok {
		return 0, nil, fmt.Errorf("callpath: unsupported type %T", values[0])
	}
	payload, ok := values[1].([]byte)
	if !ok {
		return 0, nil, fmt.Errorf("payload: unsupported type %T", values[1])
	}
	return callpath, payload, nil
}

// SlippageLimits returns sqrtPrice scaled by sqrt(1-s) and sqrt(1+s).
func SlippageLimits(sqrtPrice *uint256.Int, slippageBps uint32) (*uint256.Int, *uint256.Int) {
	if slippageBps >= bpsDenominator {
		return new(uint256.Int).Set(MinSqrtPrice), new(uint256.Int).Set(MaxSqrtPrice)
	}
	return scaleBySqrt(sqrtPrice, bpsDenominator-int64(slippageBps)), scaleBySqrt(sqrtPrice, bpsDenominator+int64(slippageBps))
}

func scaleBySqrt(value *uint256.Int, numeratorBps int64) *uint256.Int {
	factor := new(big.Float).SetPrec(256).SetInt64(numeratorBps)
	factor.Quo(factor, new(big.Float).SetPrec(256).SetInt64(bpsDenominator))
	factor.Sqrt(factor)

	scaled := new(big.Float).SetPrec(256).SetInt(value.ToBig())
	scaled.Mul(scaled, factor)
	out, _ := scaled.Int(nil)
	res, overflow := uint256.FromBig(out)
	if overflow {
		return new(uint256.Int).Set(MaxSqrtPrice)
	}
	return res
}

func bigOrZero(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
