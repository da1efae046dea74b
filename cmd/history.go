// File: cmd/history.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flightcheck-dev/flightcheck/internal/observability"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent flow failures from the run-history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd.Context(), cmd, limit)
		},
	}

	historyCmd.Flags().IntVar(&limit, "limit", 10, "maximum number of failures to show")
	return historyCmd
}

func showHistory(ctx context.Context, cmd *cobra.Command, limit int) error {
	logger := observability.GetLogger()

	s, closePool, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("no database configured; set database.url to enable run history")
	}
	defer closePool()

	failures, err := s.RecentFailures(ctx, limit)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded flow failures.")
		return nil
	}

	for _, f := range failures {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s %-8s %s\n",
			f.OccurredAt.Format("2006-01-02 15:04:05"), f.FlowName, f.Viewport, f.ErrorMessage)
	}
	return nil
}
