package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is an unsigned contract call handed to the account collaborator.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// TxStatus is the outcome of a mined transaction.
type TxStatus int

const (
	TxStatusSuccess TxStatus = iota
	TxStatusReverted
)

func (s TxStatus) String() string {
	if s == TxStatusSuccess {
		return "success"
	}
	return "reverted"
}
