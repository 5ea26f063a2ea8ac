package model

import "github.com/holiman/uint256"

// BalanceSnapshot holds wallet balances in wei, read right before a sizing
// decision.
type BalanceSnapshot struct {
	Base  *uint256.Int `json:"base"`
	Quote *uint256.Int `json:"quote"`
}

// Of returns the balance of side t.
func (b BalanceSnapshot) Of(t Token) *uint256.Int {
	if t == TokenQuote {
		return b.Quote
	}
	return b.Base
}
