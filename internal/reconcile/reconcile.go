package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ambientKeeper/internal/indexer"
	"ambientKeeper/internal/model"
)

// Indexer nominates candidate positions. It is eventually consistent.
type Indexer interface {
	UserPoolPositions(ctx context.Context, user common.Address, pool model.Pool) ([]indexer.IndexedPosition, error)
	UserPoolTxs(ctx context.Context, user common.Address, pool model.Pool, n int) ([]indexer.PoolTx, error)
}

// RangeQuerier reads authoritative range liquidity from chain.
type RangeQuerier interface {
	QueryRangeLiquidity(ctx context.Context, owner common.Address, pool model.Pool, rng model.Range) (model.RangeLiquidity, error)
}

// Config bounds the recent-transaction scan.
type Config struct {
	Lookback time.Duration
	TxLimit  int
}

// Reconciler merges indexer positions with on-chain state. On-chain values
// always win; a candidate with zero on-chain liquidity is dropped.
type Reconciler struct {
	index  Indexer
	chain  RangeQuerier
	pool   model.Pool
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func New(index Indexer, chain RangeQuerier, pool model.Pool, cfg Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TxLimit <= 0 {
		cfg.TxLimit = 50
	}
	return &Reconciler{
		index:  index,
		chain:  chain,
		pool:   pool,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile returns owner's open positions: indexer-reported ones first, then
// ranges discovered from recent mints, each verified on chain.
func (r *Reconciler) Reconcile(ctx context.Context, owner common.Address) ([]model.Position, error) {
	candidates, err := r.index.UserPoolPositions(ctx, owner, r.pool)
	if err != nil {
		return nil, fmt.Errorf("indexer positions: %w", err)
	}

	seen := make(map[model.Range]struct{})
	out := make([]model.Position, 0, len(candidates))

	for _, c := range candidates {
		if c.Liquidity == nil || c.Liquidity.IsZero() {
			continue
		}
		if _, ok := seen[c.Range]; ok {
			continue
		}
		seen[c.Range] = struct{}{}

		onChain, err := r.chain.QueryRangeLiquidity(ctx, owner, r.pool, c.Range)
		if err != nil {
			return nil, fmt.Errorf("verify range %s: %w", c.Range, err)
		}
		if onChain.Liquidity == nil || onChain.Liquidity.IsZero() {
			r.logger.Info("stale indexer position",
				zap.String("position", c.PositionID),
				zap.Stringer("range", c.Range),
				zap.String("indexer_liquidity", c.Liquidity.ToBig().String()),
			)
			continue
		}
		if !onChain.Liquidity.Eq(c.Liquidity) {
			r.logger.Debug("indexer liquidity differs from chain",
				zap.String("position", c.PositionID),
				zap.String("indexer", c.Liquidity.ToBig().String()),
				zap.String("chain", onChain.Liquidity.ToBig().String()),
			)
		}

		out = append(out, model.Position{
			PositionID: c.PositionID,
			MintTxHash: c.MintTxHash,
			Range:      c.Range,
			Liquidity:  onChain.Liquidity,
			BaseQty:    onChain.BaseQty,
			QuoteQty:   onChain.QuoteQty,
			Source:     model.SourceIndexer,
		})
	}

	discovered, err := r.discover(ctx, owner, seen)
	if err != nil {
		return nil, err
	}
	return append(out, discovered...), nil
}

func (r *Reconciler) discover(ctx context.Context, owner common.Address, seen map[model.Range]struct{}) ([]model.Position, error) {
	txs, err := r.index.UserPoolTxs(ctx, owner, r.pool, r.cfg.TxLimit)
	if err != nil {
		return nil, fmt.Errorf("indexer txs: %w", err)
	}

	var cutoff time.Time
	if r.cfg.Lookback > 0 {
		cutoff = r.now().Add(-r.cfg.Lookback)
	}

	var out []model.Position
	for _, tx := range txs {
		if !tx.IsMint() {
			continue
		}
		if !cutoff.IsZero() && tx.Time.Before(cutoff) {
			continue
		}
		if _, ok := seen[tx.Range]; ok {
			continue
		}
		seen[tx.Range] = struct{}{}

		onChain, err := r.chain.QueryRangeLiquidity(ctx, owner, r.pool, tx.Range)
		if err != nil {
			return nil, fmt.Errorf("verify recent mint %s: %w", tx.TxHash, err)
		}
		if onChain.Liquidity == nil || onChain.Liquidity.IsZero() {
			continue
		}

		r.logger.Info("discovered unindexed position",
			zap.String("tx", tx.TxHash),
			zap.Stringer("range", tx.Range),
		)
		out = append(out, model.Position{
			MintTxHash: tx.TxHash,
			Range:      tx.Range,
			Liquidity:  onChain.Liquidity,
			BaseQty:    onChain.BaseQty,
			QuoteQty:   onChain.QuoteQty,
			Source:     model.SourceDiscovered,
		})
	}
	return out, nil
}
