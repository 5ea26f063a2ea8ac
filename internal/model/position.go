package model

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// GridSpacing is the tick grid every range boundary sits on.
const GridSpacing int32 = 4

var ErrInvalidRange = errors.New("invalid range")

// Range is a [Low, High) tick interval.
type Range struct {
	Low  int32 `json:"low_tick"`
	High int32 `json:"high_tick"`
}

// NewRange validates ordering and grid alignment.
func NewRange(low, high int32) (Range, error) {
	if low >= high {
		return Range{}, fmt.Errorf("%w: low %d >= high %d", ErrInvalidRange, low, high)
	}
	if low%GridSpacing != 0 || high%GridSpacing != 0 {
		return Range{}, fmt.Errorf("%w: [%d,%d) off grid %d", ErrInvalidRange, low, high, GridSpacing)
	}
	return Range{Low: low, High: high}, nil
}

// Contains reports whether tick is inside the active interval.
func (r Range) Contains(tick int32) bool {
	return r.Low <= tick && tick < r.High
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Low, r.High)
}

// PositionSource records which merge input produced a position.
type PositionSource string

const (
	SourceIndexer    PositionSource = "indexer"
	SourceDiscovered PositionSource = "recent_tx"
)

// Position is an open range order. Liquidity and token quantities come from
// the on-chain query; the indexer only nominates candidates.
type Position struct {
	PositionID string         `json:"position_id,omitempty"`
	MintTxHash string         `json:"mint_tx_hash,omitempty"`
	Range      Range          `json:"range"`
	Liquidity  *uint256.Int   `json:"liquidity"`
	BaseQty    *uint256.Int   `json:"base_qty"`
	QuoteQty   *uint256.Int   `json:"quote_qty"`
	Source     PositionSource `json:"source"`
}

// ID returns the position id, falling back to the mint transaction hash.
func (p Position) ID() string {
	if p.PositionID != "" {
		return p.PositionID
	}
	return p.MintTxHash
}

// Open reports whether the position still holds liquidity.
func (p Position) Open() bool {
	return p.Liquidity != nil && !p.Liquidity.IsZero()
}

// RangeLiquidity is the on-chain view of one owner's range.
type RangeLiquidity struct {
	Liquidity *uint256.Int
	BaseQty   *uint256.Int
	QuoteQty  *uint256.Int
}
