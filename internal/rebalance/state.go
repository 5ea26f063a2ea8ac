package rebalance

// State is a rebalance state machine node.
type State string

const (
	StateEvaluate       State = "EVALUATE"
	StateWithdrawAll    State = "WITHDRAW_ALL"
	StateRebalanceRatio State = "REBALANCE_RATIO"
	StatePlanDeposit    State = "PLAN_DEPOSIT"
	StateSubmitDeposit  State = "SUBMIT_DEPOSIT"
	StateVerify         State = "VERIFY"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func (s State) String() string {
	return string(s)
}
