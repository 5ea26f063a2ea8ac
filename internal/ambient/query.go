package ambient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ambientKeeper/internal/model"
)

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Query reads pool state from the CrocQuery contract.
type Query struct {
	caller  ContractCaller
	address common.Address
	logger  *zap.Logger
}

// NewQuery binds a query contract address to a caller.
func NewQuery(caller ContractCaller, address common.Address, logger *zap.Logger) (*Query, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("query contract address is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Query{caller: caller, address: address, logger: logger}, nil
}

// QueryPrice returns the pool's current Q64.64 sqrt price.
func (q *Query) QueryPrice(ctx context.Context, pool model.Pool) (*uint256.Int, error) {
	parsed, err := CrocQueryABI()
	if err != nil {
		return nil, fmt.Errorf("parse query abi: %w", err)
	}

	values, err := callMethod(ctx, q.caller, q.address, parsed, "queryPrice",
		pool.Base, pool.Quote, new(big.Int).SetUint64(pool.Index))
	if err != nil {
		return nil, err
	}
	price, err := asUint256(values[0])
	if err != nil {
		return nil, fmt.Errorf("queryPrice: %w", err)
	}
	if price.IsZero() {
		return nil, fmt.Errorf("pool %s is not initialized", pool)
	}
	return price, nil
}

// QueryRangeLiquidity returns owner's liquidity and token quantities in rng.
func (q *Query) QueryRangeLiquidity(ctx context.Context, owner common.Address, pool model.Pool, rng model.Range) (model.RangeLiquidity, error) {
	parsed, err := CrocQueryABI()
	if err != nil {
		return model.RangeLiquidity{}, fmt.Errorf("parse query abi: %w", err)
	}

	values, err := callMethod(ctx, q.caller, q.address, parsed, "queryRangeTokens",
		owner, pool.Base, pool.Quote, new(big.Int).SetUint64(pool.Index),
		big.NewInt(int64(rng.Low)), big.NewInt(int64(rng.High)))
	if err != nil {
		return model.RangeLiquidity{}, err
	}
	if len(values) < 3 {
		return model.RangeLiquidity{}, fmt.Errorf("queryRangeTokens: expected 3 outputs, got %d", len(values))
	}

	out := model.RangeLiquidity{}
	if out.Liquidity, err = asUint256(values[0]); err != nil {
		return model.RangeLiquidity{}, fmt.Errorf("queryRangeTokens liq: %w", err)
	}
	if out.BaseQty, err = asUint256(values[1]); err != nil {
		return model.RangeLiquidity{}, fmt.Errorf("queryRangeTokens baseQty: %w", err)
	}
	if out.QuoteQty, err = asUint256(values[2]); err != nil {
		return model.RangeLiquidity{}, fmt.Errorf("queryRangeTokens quoteQty: %w", err)
	}

	q.logger.Debug("range liquidity",
		zap.String("owner", owner.Hex()),
		zap.Stringer("range", rng),
		zap.String("liquidity", out.Liquidity.ToBig().String()),
	)
	return out, nil
}

// BalanceOf returns an ERC20 balance.
func BalanceOf(ctx context.Context, caller ContractCaller, token, owner common.Address) (*uint256.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asUint256(values[0])
}

// Allowance returns the ERC20 allowance owner granted spender.
func Allowance(ctx context.Context, caller ContractCaller, token, owner, spender common.Address) (*uint256.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asUint256(values[0])
}

// EncodeApprove builds approve(spender, amount) calldata.
func EncodeApprove(spender common.Address, amount *uint256.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("approve", spender, amount.ToBig())
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no outputs", method)
	}
	return values, nil
}

func asUint256(value interface{}) (*uint256.Int, error) {
	var b *big.Int
	switch v := value.(type) {
	case *big.Int:
		b = v
	case big.Int:
		b = &v
	case uint8:
		return uint256.NewInt(uint64(v)), nil
	case uint16:
		return uint256.NewInt(uint64(v)), nil
	case uint32:
		return uint256.NewInt(uint64(v)), nil
	case uint64:
		return uint256.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported uint type %T", value)
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", b.String())
	}
	out, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("uint256 overflow: %s", b.String())
	}
	return out, nil
}
