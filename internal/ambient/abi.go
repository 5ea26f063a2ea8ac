package ambient

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const crocQueryABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "base", "type": "address"},
      {"internalType": "address", "name": "quote", "type": "address"},
      {"internalType": "uint256", "name": "poolIdx", "type": "uint256"}
    ],
    "name": "queryPrice",
    "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "address", "name": "base", "type": "address"},
      {"internalType": "address", "name": "quote", "type": "address"},
      {"internalType": "uint256", "name": "poolIdx", "type": "uint256"},
      {"internalType": "int24", "name": "lowerTick", "type": "int24"},
      {"internalType": "int24", "name": "upperTick", "type": "int24"}
    ],
    "name": "queryRangeTokens",
    "outputs": [
      {"internalType": "uint128", "name": "liq", "type": "uint128"},
      {"internalType": "uint128", "name": "baseQty", "type": "uint128"},
      {"internalType": "uint128", "name": "quoteQty", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const crocDexABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint16", "name": "callpath", "type": "uint16"},
      {"internalType": "bytes", "name": "cmd", "type": "bytes"}
    ],
    "name": "userCmd",
    "outputs": [{"internalType": "bytes", "name": "", "type": "bytes"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	crocQueryABI     abi.ABI
	crocQueryABIOnce sync.Once
	crocQueryABIErr  error

	crocDexABI     abi.ABI
	crocDexABIOnce sync.Once
	crocDexABIErr  error
)

// CrocQueryABI returns the parsed read-only query contract ABI.
func CrocQueryABI() (abi.ABI, error) {
	crocQueryABIOnce.Do(func() {
		crocQueryABI, crocQueryABIErr = abi.JSON(strings.NewReader(crocQueryABIJSON))
	})
	return crocQueryABI, crocQueryABIErr
}

// CrocDexABI returns the parsed dex entry point ABI.
func CrocDexABI() (abi.ABI, error) {
	crocDexABIOnce.Do(func() {
		crocDexABI, crocDexABIErr = abi.JSON(strings.NewReader(crocDexABIJSON))
	})
	return crocDexABI, crocDexABIErr
}
