// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/artifacts"
	"github.com/flightcheck-dev/flightcheck/internal/auth"
	"github.com/flightcheck-dev/flightcheck/internal/browser"
	"github.com/flightcheck-dev/flightcheck/internal/executor"
	"github.com/flightcheck-dev/flightcheck/internal/observability"
)

type runOptions struct {
	baseURL     string
	plansPath   string
	accountPath string
	viewports   []string
	maxDuration time.Duration
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute planned UI flows against a site and collect evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlows(cmd.Context(), opts)
		},
	}

	runCmd.Flags().StringVar(&opts.baseURL, "base-url", "", "absolute base URL of the target application (required)")
	runCmd.Flags().StringVar(&opts.plansPath, "plans", "", "path to planner-produced flow plans JSON (required)")
	runCmd.Flags().StringVar(&opts.accountPath, "account", "", "path to a test account JSON file for authenticated execution")
	runCmd.Flags().StringSliceVar(&opts.viewports, "viewport", []string{"desktop", "mobile"}, "viewport profiles to execute, in order")
	runCmd.Flags().DurationVar(&opts.maxDuration, "max-duration", 0, "wall-clock budget for the whole run (defaults to executor.max_duration)")
	_ = runCmd.MarkFlagRequired("base-url")
	_ = runCmd.MarkFlagRequired("plans")

	return runCmd
}

func runFlows(ctx context.Context, opts *runOptions) error {
	logger := observability.GetLogger()

	plans, err := artifacts.LoadFlowPlans(opts.plansPath)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		return fmt.Errorf("no flow plans found in %s", opts.plansPath)
	}

	account, err := artifacts.LoadTestAccount(opts.accountPath)
	if err != nil {
		return err
	}

	sink, err := artifacts.NewSink(logger, cfg.Artifacts.Dir)
	if err != nil {
		return err
	}

	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("browser launch failed: %w", err)
	}
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown error", zap.Error(err))
		}
	}()

	login := executor.NewLoginAdapter(logger, manager, auth.New(logger, cfg), cfg.Artifacts.StorageStatePath)
	e := executor.New(logger, cfg, executor.NewChromeBrowser(manager), login, sink)

	results, err := e.Execute(ctx, plans, opts.baseURL, opts.maxDuration, account, opts.viewports)
	if err != nil {
		return err
	}

	if _, err := sink.WriteFlowResults(results); err != nil {
		return err
	}
	junitPath, err := sink.WriteJUnit(results)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Status == schemas.FlowFailed {
			failed++
		}
	}
	logger.Info("Flow execution complete",
		zap.Int("results", len(results)),
		zap.Int("failed", failed),
		zap.String("junit", junitPath))

	recordExecutionHistory(ctx, logger, opts.baseURL, results)

	if failed > 0 {
		return fmt.Errorf("%d of %d flow executions failed", failed, len(results))
	}
	return nil
}

func recordExecutionHistory(ctx context.Context, logger *zap.Logger, baseURL string, results []schemas.ResultPayload) {
	s, closePool, err := openStore(ctx, logger)
	if err != nil {
		logger.Warn("Run history disabled", zap.Error(err))
		return
	}
	if s == nil {
		return
	}
	defer closePool()

	if err := s.RecordExecution(ctx, uuid.NewString(), baseURL, results); err != nil {
		logger.Warn("Could not record execution history", zap.Error(err))
	}
}
