package rebalance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// ErrWithdrawStuck means positions survived every withdraw pass.
	ErrWithdrawStuck = errors.New("positions remain after withdraw passes")
	// ErrDepositAttemptsExhausted means every deposit attempt reverted.
	ErrDepositAttemptsExhausted = errors.New("deposit attempts exhausted")
)

// StepError is a fatal failure in one state, with the last known progress.
type StepError struct {
	Step       State
	Err        error
	Remaining  int
	Withdrawn  int
	Attempts   int
	LastAmount *uint256.Int
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rebalance %s: %v", e.Step, e.Err)

	details := make([]string, 0, 4)
	if e.Remaining > 0 {
		details = append(details, fmt.Sprintf("positions_remaining=%d", e.Remaining))
	}
	if e.Withdrawn > 0 {
		details = append(details, fmt.Sprintf("withdrawn=%d", e.Withdrawn))
	}
	if e.Attempts > 0 {
		details = append(details, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	if e.LastAmount != nil {
		details = append(details, "last_amount="+e.LastAmount.ToBig().String())
	}
	if len(details) > 0 {
		b.WriteString(" (" + strings.Join(details, " ") + ")")
	}
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}
