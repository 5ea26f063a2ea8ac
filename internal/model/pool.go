package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pool identifies a concentrated-liquidity pool on the dex.
type Pool struct {
	Base  common.Address `json:"base"`
	Quote common.Address `json:"quote"`
	Index uint64         `json:"pool_idx"`
}

// NativeBase reports whether the base side is the chain's native asset.
func (p Pool) NativeBase() bool {
	return p.Base == (common.Address{})
}

func (p Pool) String() string {
	return fmt.Sprintf("%s/%s#%d", p.Base.Hex(), p.Quote.Hex(), p.Index)
}

// Token selects one side of a pool.
type Token int

const (
	TokenBase Token = iota
	TokenQuote
)

func (t Token) String() string {
	if t == TokenQuote {
		return "quote"
	}
	return "base"
}

// Address returns the token contract for side t.
func (p Pool) Address(t Token) common.Address {
	if t == TokenQuote {
		return p.Quote
	}
	return p.Base
}
