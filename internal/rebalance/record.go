package rebalance

import (
	"github.com/google/uuid"

	"ambientKeeper/internal/model"
)

// Record flattens a run for the journal. err is the error Run returned.
func (r Result) Record(pool model.Pool, err error) model.RunRecord {
	rec := model.RunRecord{
		RunID:      uuid.NewString(),
		Wallet:     r.Wallet.Hex(),
		Pool:       pool.String(),
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		FinalState: string(r.State),
		FailedStep: string(r.FailedStep),
		Withdrawn:  r.Withdrawn,
		Attempts:   r.Attempts,
		TxHashes:   make([]string, 0, len(r.TxHashes)),
	}
	if !r.PercentAfter.IsZero() {
		rec.DepositPercent = r.PercentAfter.StringFixed(2)
	} else if !r.PercentBefore.IsZero() {
		rec.DepositPercent = r.PercentBefore.StringFixed(2)
	}
	if r.Committed != nil {
		rec.CommittedAmount = r.Committed.ToBig().String()
	}
	for _, h := range r.TxHashes {
		rec.TxHashes = append(rec.TxHashes, h.Hex())
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}
