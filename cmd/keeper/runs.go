package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ambientKeeper/internal/config"
	"ambientKeeper/internal/storage"
)

func runRuns(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}
	walletFilter, _ := cmd.Flags().GetString("wallet")
	failedOnly, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")

	records, err := storage.ReadRuns(cfg.Journal)
	if err != nil {
		return err
	}

	selected := records[:0]
	for _, rec := range records {
		if walletFilter != "" && !strings.EqualFold(rec.Wallet, walletFilter) {
			continue
		}
		if failedOnly && rec.Succeeded() {
			continue
		}
		selected = append(selected, rec)
	}
	if limit > 0 && len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, rec := range selected {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}
