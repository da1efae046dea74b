// File: cmd/crawl.go
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/artifacts"
	"github.com/flightcheck-dev/flightcheck/internal/auth"
	"github.com/flightcheck-dev/flightcheck/internal/browser"
	"github.com/flightcheck-dev/flightcheck/internal/crawler"
	"github.com/flightcheck-dev/flightcheck/internal/observability"
	"github.com/flightcheck-dev/flightcheck/internal/store"
)

type crawlOptions struct {
	baseURL       string
	maxPages      int
	priorityPaths []string
	accountPath   string
}

func newCrawlCommand() *cobra.Command {
	opts := &crawlOptions{}

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a site and capture structural page context for flow planning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), opts)
		},
	}

	crawlCmd.Flags().StringVar(&opts.baseURL, "base-url", "", "absolute base URL of the target application (required)")
	crawlCmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "page budget (defaults to crawler.max_pages)")
	crawlCmd.Flags().StringSliceVar(&opts.priorityPaths, "priority-path", nil, "paths to crawl before general discovery, in order")
	crawlCmd.Flags().StringVar(&opts.accountPath, "account", "", "path to a test account JSON file for authenticated crawling")
	_ = crawlCmd.MarkFlagRequired("base-url")

	return crawlCmd
}

func runCrawl(ctx context.Context, opts *crawlOptions) error {
	logger := observability.GetLogger()

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

	login := crawler.NewLoginAdapter(logger, manager, auth.New(logger, cfg), cfg.Artifacts.StorageStatePath)
	c := crawler.New(logger, cfg, crawler.NewChromeBrowser(manager), login)

	var creds *schemas.CrawlCredentials
	if account != nil {
		if accountCreds, ok := account.Credentials(); ok {
			creds = &accountCreds
		} else {
			logger.Warn("Test account has no usable form credentials, crawling anonymously")
		}
	}

	result, err := c.Crawl(ctx, opts.baseURL, opts.maxPages, opts.priorityPaths, creds)
	if err != nil {
		return err
	}

	path, err := sink.WriteCrawlResult(result)
	if err != nil {
		return err
	}
	logger.Info("Crawl complete",
		zap.Int("pages", len(result.Pages)),
		zap.String("output", path))

	recordCrawlHistory(ctx, logger, opts.baseURL, result)
	return nil
}

// recordCrawlHistory is best effort; a missing or unreachable database never
// fails the crawl.
func recordCrawlHistory(ctx context.Context, logger *zap.Logger, baseURL string, result *schemas.CrawlResult) {
	s, closePool, err := openStore(ctx, logger)
	if err != nil {
		logger.Warn("Run history disabled", zap.Error(err))
		return
	}
	if s == nil {
		return
	}
	defer closePool()

	if err := s.RecordCrawl(ctx, uuid.NewString(), baseURL, result); err != nil {
		logger.Warn("Could not record crawl history", zap.Error(err))
	}
}

// openStore connects the optional run-history database. Returns (nil, nil,
// nil) when no database is configured.
func openStore(ctx context.Context, logger *zap.Logger) (*store.Store, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}
