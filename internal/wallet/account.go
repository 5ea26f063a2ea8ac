package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ambientKeeper/internal/ambient"
	"ambientKeeper/internal/model"
)

// Backend is the RPC surface an Account needs. *chain.Client satisfies it.
type Backend interface {
	ambient.ContractCaller
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Options tunes gas and receipt handling.
type Options struct {
	ChainID            *big.Int
	GasLimitMultiplier decimal.Decimal
	ReceiptTimeout     time.Duration
	PollInterval       time.Duration
	Logger             *zap.Logger
}

// Account signs and submits transactions for one private key.
type Account struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
	opts    Options
	logger  *zap.Logger

	// serializes nonce assignment
	mu sync.Mutex
}

// ParsePrivateKey accepts a hex key with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("private key missing")
	}
	hexKey = strings.TrimPrefix(hexKey, "0x")
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return pk, nil
}

func New(backend Backend, key *ecdsa.PrivateKey, opts Options) (*Account, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id required")
	}
	if !opts.GasLimitMultiplier.IsPositive() {
		opts.GasLimitMultiplier = decimal.NewFromFloat(1.3)
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 20 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	return &Account{
		backend: backend,
		key:     key,
		address: address,
		signer:  types.LatestSignerForChainID(opts.ChainID),
		opts:    opts,
		logger:  logger.With(zap.String("wallet", address.Hex())),
	}, nil
}

func (a *Account) Address() common.Address {
	return a.address
}

// Balance returns the native balance for the zero address, else the ERC20
// balance of token.
func (a *Account) Balance(ctx context.Context, token common.Address) (*uint256.Int, error) {
	if token == (common.Address{}) {
		bal, err := a.backend.BalanceAt(ctx, a.address)
		if err != nil {
			return nil, fmt.Errorf("native balance: %w", err)
		}
		out, overflow := uint256.FromBig(bal)
		if overflow {
			return nil, fmt.Errorf("native balance overflows uint256")
		}
		return out, nil
	}
	return ambient.BalanceOf(ctx, a.backend, token, a.address)
}

// Submit estimates, signs and broadcasts req. A revert during estimation is
// reported as model.ErrExecutionReverted.
func (a *Account) Submit(ctx context.Context, req model.TxRequest) (common.Hash, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	gas, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  a.address,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		if isRevert(err) {
			return common.Hash{}, fmt.Errorf("estimate gas: %w: %v", model.ErrExecutionReverted, err)
		}
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas = decimal.NewFromInt(int64(gas)).Mul(a.opts.GasLimitMultiplier).Ceil().BigInt().Uint64()

	a.mu.Lock()
	defer a.mu.Unlock()

	nonce, err := a.backend.PendingNonceAt(ctx, a.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	txData, err := a.feeFields(ctx, nonce, to, value, gas, req.Data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := types.SignNewTx(a.key, a.signer, txData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	a.logger.Info("tx sent",
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
		zap.String("to", to.Hex()),
	)
	return signed.Hash(), nil
}

func (a *Account) feeFields(ctx context.Context, nonce uint64, to common.Address, value *big.Int, gas uint64, data []byte) (types.TxData, error) {
	head, err := a.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	if head.BaseFee == nil {
		price, err := a.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		}, nil
	}

	tip, err := a.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return &types.DynamicFeeTx{
		ChainID:   a.opts.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}, nil
}

// WaitForConfirmation polls for the receipt until ReceiptTimeout.
func (a *Account) WaitForConfirmation(ctx context.Context, hash common.Hash) (model.TxStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := a.backend.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusSuccessful {
				return model.TxStatusSuccess, nil
			}
			a.logger.Warn("tx reverted", zap.String("tx", hash.Hex()))
			return model.TxStatusReverted, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			a.logger.Debug("receipt lookup failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			return model.TxStatusReverted, fmt.Errorf("wait receipt %s: %w", hash.Hex(), waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// EnsureAllowance approves spender for amount when the current allowance is
// lower, and waits for the approval to land.
func (a *Account) EnsureAllowance(ctx context.Context, token, spender common.Address, amount *uint256.Int) error {
	if token == (common.Address{}) || amount == nil || amount.IsZero() {
		return nil
	}
	current, err := ambient.Allowance(ctx, a.backend, token, a.address, spender)
	if err != nil {
		return fmt.Errorf("allowance: %w", err)
	}
	if !current.Lt(amount) {
		return nil
	}

	data, err := ambient.EncodeApprove(spender, amount)
	if err != nil {
		return err
	}
	hash, err := a.Submit(ctx, model.TxRequest{To: token, Data: data})
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	status, err := a.WaitForConfirmation(ctx, hash)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if status != model.TxStatusSuccess {
		return fmt.Errorf("approve %s: %w", hash.Hex(), model.ErrExecutionReverted)
	}
	return nil
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
