package model

import "errors"

var (
	// ErrExecutionReverted marks a transaction the contract rejected, either
	// at gas estimation or in a mined receipt.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrMalformedPayload marks an indexer response that could not be decoded.
	ErrMalformedPayload = errors.New("malformed indexer payload")
	// ErrNoDeposit is returned when the sized deposit is below dust.
	ErrNoDeposit = errors.New("deposit below dust threshold")
)
