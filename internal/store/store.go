// File: internal/store/store.go

// Package store persists run history to PostgreSQL. The database is optional;
// without a configured URL the rest of the system never touches this package.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL run-history repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlInsertCrawlRun = `
        INSERT INTO crawl_runs (id, base_url, page_count, authenticated, auth_error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6);
    `

// RecordCrawl writes one crawl run and its collected pages in a single
// transaction.
func (s *Store) RecordCrawl(ctx context.Context, runID, baseURL string, result *schemas.CrawlResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	authenticated := result.Auth != nil && result.Auth.Success
	authError := ""
	if result.Auth != nil {
		authError = result.Auth.Error
	}

	_, err = tx.Exec(ctx, sqlInsertCrawlRun,
		runID, baseURL, len(result.Pages), authenticated, authError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert crawl run: %w", err)
	}

	if len(result.Pages) > 0 {
		if err := s.copyPages(ctx, tx, runID, result.Pages); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) copyPages(ctx context.Context, tx pgx.Tx, runID string, pages []schemas.PageContext) error {
	rows := make([][]interface{}, len(pages))
	for i, p := range pages {
		rows[i] = []interface{}{
			runID, p.URL, p.Title,
			len(p.Links), len(p.Forms), len(p.Buttons),
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"crawled_pages"},
		[]string{"run_id", "url", "title", "link_count", "form_count", "button_count"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy crawled pages: %w", err)
	}
	if int(copyCount) != len(pages) {
		return fmt.Errorf("mismatch in copied page count: expected %d, got %d", len(pages), copyCount)
	}
	return nil
}

const sqlInsertExecutionRun = `
        INSERT INTO execution_runs (id, base_url, result_count, failed_count, created_at)
        VALUES ($1, $2, $3, $4, $5);
    `

// RecordExecution writes one execution run and every flow result in a single
// transaction. Step transcripts and screenshot paths land as JSON columns.
func (s *Store) RecordExecution(ctx context.Context, runID, baseURL string, results []schemas.ResultPayload) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	failed := 0
	for _, r := range results {
		if r.Status == schemas.FlowFailed {
			failed++
		}
	}

	_, err = tx.Exec(ctx, sqlInsertExecutionRun,
		runID, baseURL, len(results), failed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert execution run: %w", err)
	}

	if len(results) > 0 {
		if err := s.copyResults(ctx, tx, runID, results); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) copyResults(ctx context.Context, tx pgx.Tx, runID string, results []schemas.ResultPayload) error {
	rows := make([][]interface{}, len(results))
	for i, r := range results {
		steps, err := json.Marshal(r.Steps)
		if err != nil {
			return fmt.Errorf("failed to serialize steps for flow %q: %w", r.FlowName, err)
		}
		screenshots, err := json.Marshal(r.ScreenshotURLs)
		if err != nil {
			return fmt.Errorf("failed to serialize screenshots for flow %q: %w", r.FlowName, err)
		}
		rows[i] = []interface{}{
			runID, r.FlowName, r.Viewport, string(r.Status),
			r.DurationMs, r.ErrorMessage, steps, screenshots,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"flow_results"},
		[]string{"run_id", "flow_name", "viewport", "status", "duration_ms", "error_message", "steps", "screenshots"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy flow results: %w", err)
	}
	if int(copyCount) != len(results) {
		return fmt.Errorf("mismatch in copied result count: expected %d, got %d", len(results), copyCount)
	}
	return nil
}

// FlowFailure is one historical flow failure row.
type FlowFailure struct {
	RunID        string
	FlowName     string
	Viewport     string
	ErrorMessage string
	OccurredAt   time.Time
}

// RecentFailures returns the newest failed flow results, most recent first.
func (s *Store) RecentFailures(ctx context.Context, limit int) ([]FlowFailure, error) {
	query := `
        SELECT fr.run_id, fr.flow_name, fr.viewport, fr.error_message, er.created_at
        FROM flow_results fr
        JOIN execution_runs er ON er.id = fr.run_id
        WHERE fr.status = 'failed'
        ORDER BY er.created_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow failures: %w", err)
	}
	defer rows.Close()

	var failures []FlowFailure
	for rows.Next() {
		var f FlowFailure
		if err := rows.Scan(&f.RunID, &f.FlowName, &f.Viewport, &f.ErrorMessage, &f.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return failures, nil
}
