package model

import "time"

// RunRecord summarizes one rebalance run for the journal.
type RunRecord struct {
	RunID           string    `json:"run_id"`
	Wallet          string    `json:"wallet"`
	Pool            string    `json:"pool"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	FinalState      string    `json:"final_state"`
	FailedStep      string    `json:"failed_step,omitempty"`
	DepositPercent  string    `json:"deposit_percent,omitempty"`
	Withdrawn       int       `json:"withdrawn"`
	Attempts        int       `json:"attempts"`
	CommittedAmount string    `json:"committed_amount,omitempty"`
	TxHashes        []string  `json:"tx_hashes"`
	Error           string    `json:"error,omitempty"`
}

// Succeeded reports whether the run reached DONE.
func (r RunRecord) Succeeded() bool {
	return r.FinalState == "DONE"
}
