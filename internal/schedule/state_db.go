package schedule

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ambientKeeper/internal/storage/postgres"
)

// DBStateStore stores state in the wallet_state table.
type DBStateStore struct {
	Store *postgres.Store
}

func (s *DBStateStore) LastSuccess(ctx context.Context, wallet common.Address) (time.Time, bool, error) {
	if s == nil || s.Store == nil {
		return time.Time{}, false, nil
	}
	return s.Store.LoadLastSuccess(ctx, wallet.Hex())
}

func (s *DBStateStore) SaveSuccess(ctx context.Context, wallet common.Address, ts time.Time) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveLastSuccess(ctx, wallet.Hex(), ts)
}
