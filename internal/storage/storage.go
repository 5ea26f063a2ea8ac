package storage

import (
	"context"
	"errors"

	"ambientKeeper/internal/model"
)

// Storage defines a sink for rebalance run records.
type Storage interface {
	PutRuns(ctx context.Context, runs []model.RunRecord) error
}

// Fanout writes every batch to each sink and joins their errors.
type Fanout []Storage

func (f Fanout) PutRuns(ctx context.Context, runs []model.RunRecord) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.PutRuns(ctx, runs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
