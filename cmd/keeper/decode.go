package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"ambientKeeper/internal/ambient"
)

type lpCommandView struct {
	Code      uint8  `json:"code"`
	Base      string `json:"base"`
	Quote     string `json:"quote"`
	PoolIdx   uint64 `json:"pool_idx"`
	LowTick   int32  `json:"low_tick"`
	HighTick  int32  `json:"high_tick"`
	Qty       string `json:"qty"`
	LimitLow  string `json:"limit_low"`
	LimitHigh string `json:"limit_high"`
	Settle    uint8  `json:"settle_flags"`
	Conduit   string `json:"conduit"`
}

type userCmdView struct {
	Callpath  uint16         `json:"callpath"`
	Liquidity *lpCommandView `json:"liquidity,omitempty"`
	Payload   string         `json:"payload,omitempty"`
}

// runDecode prints a userCmd calldata blob, e.g. from a reverted tx, as JSON.
func runDecode(cmd *cobra.Command, args []string) error {
	data, err := hexutil.Decode(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("parse calldata: %w", err)
	}
	view, err := decodeUserCmd(data)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(view)
}

func decodeUserCmd(data []byte) (userCmdView, error) {
	callpath, payload, err := ambient.UnpackUserCmd(data)
	if err != nil {
		return userCmdView{}, err
	}
	view := userCmdView{Callpath: callpath}
	if callpath != ambient.CallpathLiquidity {
		view.Payload = hexutil.Encode(payload)
		return view, nil
	}

	lp, err := ambient.DecodeLPCommand(payload)
	if err != nil {
		return userCmdView{}, err
	}
	view.Liquidity = &lpCommandView{
		Code:      lp.Code,
		Base:      lp.Pool.Base.Hex(),
		Quote:     lp.Pool.Quote.Hex(),
		PoolIdx:   lp.Pool.Index,
		LowTick:   lp.Range.Low,
		HighTick:  lp.Range.High,
		Qty:       amountString(lp.Qty),
		LimitLow:  amountString(lp.LimitLow),
		LimitHigh: amountString(lp.LimitHigh),
		Settle:    lp.SettleFlags,
		Conduit:   lp.Conduit.Hex(),
	}
	return view, nil
}
