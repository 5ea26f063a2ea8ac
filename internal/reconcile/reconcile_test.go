package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ambientKeeper/internal/indexer"
	"ambientKeeper/internal/model"
)

var (
	owner = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pool  = model.Pool{Quote: common.HexToAddress("0x2222222222222222222222222222222222222222"), Index: 420}
	now   = time.Unix(1_700_000_000, 0)
)

type fakeIndexer struct {
	positions []indexer.IndexedPosition
	txs       []indexer.PoolTx
	err       error
	limit     int
}

func (f *fakeIndexer) UserPoolPositions(context.Context, common.Address, model.Pool) ([]indexer.IndexedPosition, error) {
	return f.positions, f.err
}

func (f *fakeIndexer) UserPoolTxs(_ context.Context, _ common.Address, _ model.Pool, n int) ([]indexer.PoolTx, error) {
	f.limit = n
	return f.txs, nil
}

type fakeChain struct {
	liquidity map[model.Range]uint64
	queried   []model.Range
}

func (f *fakeChain) QueryRangeLiquidity(_ context.Context, _ common.Address, _ model.Pool, rng model.Range) (model.RangeLiquidity, error) {
	f.queried = append(f.queried, rng)
	liq := f.liquidity[rng]
	return model.RangeLiquidity{
		Liquidity: uint256.NewInt(liq),
		BaseQty:   uint256.NewInt(liq / 2),
		QuoteQty:  uint256.NewInt(liq / 2),
	}, nil
}

func newReconciler(idx *fakeIndexer, chain *fakeChain) *Reconciler {
	r := New(idx, chain, pool, Config{Lookback: time.Hour}, nil)
	r.now = func() time.Time { return now }
	return r
}

func TestReconcileDropsPositionWithZeroOnChainLiquidity(t *testing.T) {
	rng := model.Range{Low: -100, High: 104}
	idx := &fakeIndexer{positions: []indexer.IndexedPosition{
		{PositionID: "p1", Range: rng, Liquidity: uint256.NewInt(500)},
	}}
	chain := &fakeChain{liquidity: map[model.Range]uint64{}}

	got, err := newReconciler(idx, chain).Reconcile(context.Background(), owner)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, []model.Range{rng}, chain.queried)
}

func TestReconcilePrefersOnChainLiquidity(t *testing.T) {
	rng := model.Range{Low: -8, High: 8}
	idx := &fakeIndexer{positions: []indexer.IndexedPosition{
		{PositionID: "p1", MintTxHash: "0xaa", Range: rng, Liquidity: uint256.NewInt(500)},
		{PositionID: "dup", Range: rng, Liquidity: uint256.NewInt(500)},
		{PositionID: "empty", Range: model.Range{Low: 0, High: 4}, Liquidity: uint256.NewInt(0)},
	}}
	chain := &fakeChain{liquidity: map[model.Range]uint64{rng: 640}}

	got, err := newReconciler(idx, chain).Reconcile(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "p1", got[0].ID())
	require.Equal(t, uint64(640), got[0].Liquidity.Uint64())
	require.Equal(t, model.SourceIndexer, got[0].Source)
	require.Len(t, chain.queried, 1)
}

func TestReconcileDiscoversRecentMints(t *testing.T) {
	indexed := model.Range{Low: -8, High: 8}
	fresh := model.Range{Low: 12, High: 40}
	burned := model.Range{Low: 100, High: 120}
	old := model.Range{Low: -400, High: -200}

	idx := &fakeIndexer{
		positions: []indexer.IndexedPosition{
			{PositionID: "p1", Range: indexed, Liquidity: uint256.NewInt(10)},
		},
		txs: []indexer.PoolTx{
			{TxHash: "0xold", ChangeType: "mint", Range: old, Time: now.Add(-2 * time.Hour)},
			{TxHash: "0xdup", ChangeType: "mint", Range: indexed, Time: now.Add(-30 * time.Minute)},
			{TxHash: "0xburned", ChangeType: "mint", Range: burned, Time: now.Add(-20 * time.Minute)},
			{TxHash: "0xburn", ChangeType: "burn", Time: now.Add(-15 * time.Minute)},
			{TxHash: "0xfresh", ChangeType: "mint", Range: fresh, Time: now.Add(-time.Minute)},
		},
	}
	chain := &fakeChain{liquidity: map[model.Range]uint64{indexed: 10, fresh: 77, old: 5}}

	got, err := newReconciler(idx, chain).Reconcile(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].ID())
	require.Equal(t, "0xfresh", got[1].ID())
	require.Equal(t, model.SourceDiscovered, got[1].Source)
	require.Equal(t, uint64(77), got[1].Liquidity.Uint64())
	require.Equal(t, []model.Range{indexed, burned, fresh}, chain.queried)
}

func TestReconcileSurfacesIndexerErrors(t *testing.T) {
	idx := &fakeIndexer{err: model.ErrMalformedPayload}
	_, err := newReconciler(idx, &fakeChain{}).Reconcile(context.Background(), owner)
	require.True(t, errors.Is(err, model.ErrMalformedPayload))
}

func TestReconcileRequestsConfiguredTxLimit(t *testing.T) {
	idx := &fakeIndexer{}
	chain := &fakeChain{liquidity: map[model.Range]uint64{}}
	r := New(idx, chain, pool, Config{Lookback: time.Hour, TxLimit: 120}, nil)
	r.now = func() time.Time { return now }

	_, err := r.Reconcile(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, 120, idx.limit)
}
