package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"ambientKeeper/internal/clmath"
	"ambientKeeper/internal/config"
)

type swapView struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type depositView struct {
	Low           int32  `json:"low_tick"`
	High          int32  `json:"high_tick"`
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	Liquidity     string `json:"liquidity"`
	Driving       string `json:"driving"`
	DrivingAmount string `json:"driving_amount"`
}

type planView struct {
	Wallet          string       `json:"wallet"`
	Tick            int32        `json:"tick"`
	Positions       int          `json:"positions"`
	BaseBalance     string       `json:"base_balance"`
	QuoteBalance    string       `json:"quote_balance"`
	DepositPercent  string       `json:"deposit_percent"`
	InRange         bool         `json:"in_range"`
	WithinTolerance bool         `json:"within_tolerance"`
	Next            string       `json:"next"`
	Swap            *swapView    `json:"swap,omitempty"`
	Deposit         *depositView `json:"deposit,omitempty"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
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

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, w := range a.wallets {
		p, err := a.engine.Preview(ctx, w)
		if err != nil {
			return fmt.Errorf("preview %s: %w", w.Address().Hex(), err)
		}

		view := planView{
			Wallet:          p.Wallet.Hex(),
			Tick:            p.Tick,
			Positions:       len(p.Positions),
			BaseBalance:     config.FromWei(p.Balances.Base).String(),
			QuoteBalance:    config.FromWei(p.Balances.Quote).String(),
			DepositPercent:  p.Percent.StringFixed(2),
			InRange:         p.InRange,
			WithinTolerance: p.WithinTolerance,
			Next:            p.Next.String(),
		}
		if p.Swap != nil {
			view.Swap = &swapView{
				From:   p.Swap.From.String(),
				To:     p.Swap.To.String(),
				Amount: config.FromWei(p.Swap.Amount).String(),
			}
		}
		if d := p.Deposit; d != nil {
			view.Deposit = &depositView{
				Low:           d.Range.Low,
				High:          d.Range.High,
				Base:          config.FromWei(d.BaseAmount).String(),
				Quote:         config.FromWei(d.QuoteAmount).String(),
				Liquidity:     amountString(d.Liquidity),
				Driving:       d.Driving.String(),
				DrivingAmount: config.FromWei(d.DrivingAmount).String(),
			}
		}
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}

func tickOf(sqrtPrice *uint256.Int) (int32, error) {
	tick, err := clmath.SqrtQ64ToTick(sqrtPrice)
	if err != nil {
		return 0, fmt.Errorf("current tick: %w", err)
	}
	return tick, nil
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.ToBig().String()
}
