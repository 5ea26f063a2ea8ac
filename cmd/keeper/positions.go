package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type positionView struct {
	Wallet     string `json:"wallet"`
	ID         string `json:"id"`
	Low        int32  `json:"low_tick"`
	High       int32  `json:"high_tick"`
	Liquidity  string `json:"liquidity"`
	BaseQty    string `json:"base_qty"`
	QuoteQty   string `json:"quote_qty"`
	Source     string `json:"source"`
	InRange    bool   `json:"in_range"`
	MintTxHash string `json:"mint_tx,omitempty"`
}

func runPositions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sqrtPrice, err := a.query.QueryPrice(ctx, a.pool)
	if err != nil {
		return fmt.Errorf("query price: %w", err)
	}
	tick, err := tickOf(sqrtPrice)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, w := range a.wallets {
		positions, err := a.recon.Reconcile(ctx, w.Address())
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", w.Address().Hex(), err)
		}
		for _, pos := range positions {
			view := positionView{
				Wallet:     w.Address().Hex(),
				ID:         pos.ID(),
				Low:        pos.Range.Low,
				High:       pos.Range.High,
				Liquidity:  amountString(pos.Liquidity),
				BaseQty:    amountString(pos.BaseQty),
				QuoteQty:   amountString(pos.QuoteQty),
				Source:     string(pos.Source),
				InRange:    pos.Range.Contains(tick),
				MintTxHash: pos.MintTxHash,
			}
			if err := enc.Encode(view); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}
	}
	return nil
}
