package ambient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ambientKeeper/internal/model"
)

// Sender submits transactions for one wallet.
type Sender interface {
	Address() common.Address
	Submit(ctx context.Context, req model.TxRequest) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, hash common.Hash) (model.TxStatus, error)
	EnsureAllowance(ctx context.Context, token, spender common.Address, amount *uint256.Int) error
}

// PriceReader returns the pool's current sqrt price.
type PriceReader interface {
	QueryPrice(ctx context.Context, pool model.Pool) (*uint256.Int, error)
}

// Swapper trades within the same pool the positions live in.
type Swapper struct {
	dex    *Dex
	prices PriceReader
	sender Sender
	pool   model.Pool
	logger *zap.Logger
}

func NewSwapper(dex *Dex, prices PriceReader, sender Sender, pool model.Pool, logger *zap.Logger) *Swapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Swapper{dex: dex, prices: prices, sender: sender, pool: pool, logger: logger}
}

// Swap sells plan.Amount of plan.From and waits for the receipt.
func (s *Swapper) Swap(ctx context.Context, plan model.SwapPlan) (common.Hash, error) {
	sqrtPrice, err := s.prices.QueryPrice(ctx, s.pool)
	if err != nil {
		return common.Hash{}, fmt.Errorf("swap price: %w", err)
	}

	fromToken := s.pool.Address(plan.From)
	if fromToken != (common.Address{}) {
		if err := s.sender.EnsureAllowance(ctx, fromToken, s.dex.Address(), plan.Amount); err != nil {
			return common.Hash{}, fmt.Errorf("swap allowance: %w", err)
		}
	}

	req, err := s.dex.SwapTx(s.pool, plan, sqrtPrice)
	if err != nil {
		return common.Hash{}, err
	}

	s.logger.Info("swap submit",
		zap.Stringer("from", plan.From),
		zap.Stringer("to", plan.To),
		zap.String("amount", plan.Amount.ToBig().String()),
	)
	hash, err := s.sender.Submit(ctx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("swap submit: %w", err)
	}
	status, err := s.sender.WaitForConfirmation(ctx, hash)
	if err != nil {
		return hash, fmt.Errorf("swap wait %s: %w", hash.Hex(), err)
	}
	if status != model.TxStatusSuccess {
		return hash, fmt.Errorf("swap %s: %w", hash.Hex(), model.ErrExecutionReverted)
	}
	return hash, nil
}
