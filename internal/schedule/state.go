package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StateStore persists the last successful rebalance per wallet.
type StateStore interface {
	LastSuccess(ctx context.Context, wallet common.Address) (time.Time, bool, error)
	SaveSuccess(ctx context.Context, wallet common.Address, ts time.Time) error
}

// FileStateStore stores state in a local JSON file keyed by wallet.
type FileStateStore struct {
	Path string

	mu sync.Mutex
}

type stateRecord struct {
	LastSuccess string `json:"last_success"`
	UpdatedAt   string `json:"updated_at"`
}

func (s *FileStateStore) LastSuccess(_ context.Context, wallet common.Address) (time.Time, bool, error) {
	if s == nil || s.Path == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return time.Time{}, false, err
	}
	rec, ok := records[walletKey(wallet)]
	if !ok {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.LastSuccess)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse state for %s: %w", wallet.Hex(), err)
	}
	return ts, true, nil
}

func (s *FileStateStore) SaveSuccess(_ context.Context, wallet common.Address, ts time.Time) error {
	if s == nil || s.Path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[walletKey(wallet)] = stateRecord{
		LastSuccess: ts.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (map[string]stateRecord, error) {
	records := map[string]stateRecord{}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return records, nil
}

func walletKey(wallet common.Address) string {
	return strings.ToLower(wallet.Hex())
}
