package model

import "github.com/holiman/uint256"

// DepositPlan is the exact input to a mint transaction.
type DepositPlan struct {
	Range       Range        `json:"range"`
	BaseAmount  *uint256.Int `json:"base_amount"`
	QuoteAmount *uint256.Int `json:"quote_amount"`
	Liquidity   *uint256.Int `json:"liquidity"`
	// Driving is the token whose amount bound the liquidity; the mint is
	// submitted with that token's quantity fixed.
	Driving       Token        `json:"driving"`
	DrivingAmount *uint256.Int `json:"driving_amount"`
}

// SwapPlan is a ratio correction ahead of a deposit.
type SwapPlan struct {
	From   Token        `json:"from"`
	To     Token        `json:"to"`
	Amount *uint256.Int `json:"amount"`
}
