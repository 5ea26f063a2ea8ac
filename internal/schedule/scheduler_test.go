package schedule

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ambientKeeper/internal/model"
	"ambientKeeper/internal/rebalance"
)

type stubAccount struct{ addr common.Address }

func (a stubAccount) Address() common.Address { return a.addr }

func (a stubAccount) Balance(context.Context, common.Address) (*uint256.Int, error) {
	return new(uint256.Int), nil
}

func (a stubAccount) Submit(context.Context, model.TxRequest) (common.Hash, error) {
	return common.Hash{}, nil
}

func (a stubAccount) WaitForConfirmation(context.Context, common.Hash) (model.TxStatus, error) {
	return model.TxStatusSuccess, nil
}

func (a stubAccount) EnsureAllowance(context.Context, common.Address, common.Address, *uint256.Int) error {
	return nil
}

type stubRunner struct {
	mu      sync.Mutex
	ran     []common.Address
	fail    map[common.Address]bool
	active  int32
	maxSeen int32
	finish  time.Time
}

func (r *stubRunner) Run(_ context.Context, acct rebalance.Account) (rebalance.Result, error) {
	n := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		seen := atomic.LoadInt32(&r.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&r.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.ran = append(r.ran, acct.Address())
	r.mu.Unlock()

	res := rebalance.Result{Wallet: acct.Address(), State: rebalance.StateDone, FinishedAt: r.finish}
	if r.fail[acct.Address()] {
		res.State = rebalance.StateFailed
		res.FailedStep = rebalance.StateSubmitDeposit
		return res, &rebalance.StepError{Step: rebalance.StateSubmitDeposit, Err: model.ErrExecutionReverted}
	}
	return res, nil
}

type memJournal struct {
	mu   sync.Mutex
	runs []model.RunRecord
}

func (j *memJournal) PutRuns(_ context.Context, runs []model.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, runs...)
	return nil
}

func accounts(n int) []rebalance.Account {
	out := make([]rebalance.Account, n)
	for i := range out {
		out[i] = stubAccount{addr: common.BigToAddress(big.NewInt(int64(i + 1)))}
	}
	return out
}

func TestRunAllRespectsConcurrency(t *testing.T) {
	runner := &stubRunner{finish: time.Unix(1000, 0)}
	journal := &memJournal{}
	s := New(runner, model.Pool{Index: 420}, nil, journal, Config{Concurrency: 2}, nil)

	outcomes, err := s.RunAll(context.Background(), accounts(6))
	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	require.Len(t, runner.ran, 6)
	require.LessOrEqual(t, atomic.LoadInt32(&runner.maxSeen), int32(2))
	require.Len(t, journal.runs, 6)
	for _, rec := range journal.runs {
		require.Equal(t, "DONE", rec.FinalState)
		require.NotEmpty(t, rec.RunID)
	}
}

func TestRunAllIsolatesFailures(t *testing.T) {
	accts := accounts(3)
	runner := &stubRunner{fail: map[common.Address]bool{accts[1].Address(): true}}
	journal := &memJournal{}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	s := New(runner, model.Pool{}, state, journal, Config{Concurrency: 3}, nil)

	outcomes, err := s.RunAll(context.Background(), accts)
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrExecutionReverted)

	require.NoError(t, outcomes[0].Err)
	require.Error(t, outcomes[1].Err)
	require.NoError(t, outcomes[2].Err)

	_, ok, err := state.LastSuccess(context.Background(), accts[1].Address())
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = state.LastSuccess(context.Background(), accts[0].Address())
	require.NoError(t, err)
	require.True(t, ok)

	var failed int
	for _, rec := range journal.runs {
		if !rec.Succeeded() {
			failed++
			require.Equal(t, "SUBMIT_DEPOSIT", rec.FailedStep)
		}
	}
	require.Equal(t, 1, failed)
}

func TestRunAllHonorsCooldown(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	accts := accounts(2)
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	require.NoError(t, state.SaveSuccess(context.Background(), accts[0].Address(), now.Add(-time.Hour)))
	require.NoError(t, state.SaveSuccess(context.Background(), accts[1].Address(), now.Add(-25*time.Hour)))

	runner := &stubRunner{}
	s := New(runner, model.Pool{}, state, nil, Config{Concurrency: 1, Cooldown: 24 * time.Hour}, nil)
	s.now = func() time.Time { return now }

	outcomes, err := s.RunAll(context.Background(), accts)
	require.NoError(t, err)
	require.True(t, outcomes[0].Skipped)
	require.False(t, outcomes[1].Skipped)
	require.Equal(t, []common.Address{accts[1].Address()}, runner.ran)

	last, ok, err := state.LastSuccess(context.Background(), accts[1].Address())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, last.Equal(now), "missing finish time falls back to now")
}

func TestFileStateStore(t *testing.T) {
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "sub", "state.json")}
	wallet := common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

	_, ok, err := state.LastSuccess(context.Background(), wallet)
	require.NoError(t, err)
	require.False(t, ok)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	require.NoError(t, state.SaveSuccess(context.Background(), wallet, ts))

	got, ok, err := state.LastSuccess(context.Background(), wallet)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(ts))

	var empty *FileStateStore
	require.NoError(t, empty.SaveSuccess(context.Background(), wallet, ts))
}

func TestRunAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(&stubRunner{}, model.Pool{}, nil, nil, Config{}, nil)
	_, err := s.RunAll(ctx, accounts(1))
	require.True(t, errors.Is(err, context.Canceled))
}
