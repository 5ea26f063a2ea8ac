package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"ambientKeeper/internal/model"
	"ambientKeeper/internal/storage"
)

func newRunsCommand(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "runs", RunE: runRuns}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("journal", "", "")
	cmd.Flags().String("wallet", "", "")
	cmd.Flags().Bool("failed", false, "")
	cmd.Flags().Int("limit", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	return cmd, out
}

func TestRunsFiltersJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	require.NoError(t, storage.NewJsonlStorage(path).PutRuns(context.Background(), []model.RunRecord{
		{RunID: "1", Wallet: "0xAA", FinalState: "DONE"},
		{RunID: "2", Wallet: "0xBB", FinalState: "FAILED"},
		{RunID: "3", Wallet: "0xaa", FinalState: "FAILED"},
		{RunID: "4", Wallet: "0xAA", FinalState: "DONE"},
	}))

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"all", nil, []string{"1", "2", "3", "4"}},
		{"wallet", []string{"--wallet=0xaA"}, []string{"1", "3", "4"}},
		{"failed", []string{"--failed"}, []string{"2", "3"}},
		{"limit", []string{"--limit=2"}, []string{"3", "4"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, out := newRunsCommand(t, append([]string{"--journal=" + path}, tc.args...)...)
			require.NoError(t, runRuns(cmd, nil))

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
				var rec model.RunRecord
				require.NoError(t, json.Unmarshal([]byte(line), &rec))
				got = append(got, rec.RunID)
			}
			require.Equal(t, tc.want, got)
		})
	}
}
