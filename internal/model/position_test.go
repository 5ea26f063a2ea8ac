package model

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestNewRangeValidates(t *testing.T) {
	cases := []struct {
		name    string
		low     int32
		high    int32
		wantErr bool
	}{
		{name: "ok", low: -100, high: 104},
		{name: "equal", low: 8, high: 8, wantErr: true},
		{name: "inverted", low: 12, high: 8, wantErr: true},
		{name: "off grid", low: -101, high: 104, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRange(tc.low, tc.high)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("expected ErrInvalidRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRangeContainsIsHalfOpen(t *testing.T) {
	r := Range{Low: -8, High: 8}
	if !r.Contains(-8) {
		t.Fatalf("low bound should be inside")
	}
	if r.Contains(8) {
		t.Fatalf("high bound should be outside")
	}
	if r.Contains(-9) {
		t.Fatalf("tick below range should be outside")
	}
}

func TestPositionIDFallsBackToMintTx(t *testing.T) {
	p := Position{MintTxHash: "0xabc"}
	if p.ID() != "0xabc" {
		t.Fatalf("expected mint tx hash, got %q", p.ID())
	}
	p.PositionID = "pos-1"
	if p.ID() != "pos-1" {
		t.Fatalf("expected position id, got %q", p.ID())
	}
	if p.Open() {
		t.Fatalf("nil liquidity should not be open")
	}
	p.Liquidity = uint256.NewInt(1)
	if !p.Open() {
		t.Fatalf("positive liquidity should be open")
	}
}
