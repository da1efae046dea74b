// File: internal/artifacts/sink.go

// Package artifacts persists run evidence: screenshots, crawl context,
// flow results, and a JUnit report for CI consumption.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	screenshotsSubdir = "screenshots"
	crawlResultFile   = "pages.json"
	flowResultsFile   = "results.json"
	junitFile         = "junit.xml"
)

// Sink writes all artifacts for one run under a single directory.
type Sink struct {
	logger *zap.Logger
	dir    string
}

func NewSink(logger *zap.Logger, dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifacts directory is not configured")
	}
	if err := os.MkdirAll(filepath.Join(dir, screenshotsSubdir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	return &Sink{logger: logger.Named("artifacts"), dir: dir}, nil
}

// Dir reports the artifact root.
func (s *Sink) Dir() string { return s.dir }

// SaveScreenshot writes PNG bytes under screenshots/ and returns the path
// recorded in result payloads.
func (s *Sink) SaveScreenshot(name string, png []byte) (string, error) {
	path := filepath.Join(s.dir, screenshotsSubdir, filepath.Base(name))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", name, err)
	}
	return path, nil
}

// WriteCrawlResult serializes crawl evidence for the planning side.
func (s *Sink) WriteCrawlResult(result *schemas.CrawlResult) (string, error) {
	return s.writeJSON(crawlResultFile, result)
}

// WriteFlowResults serializes execution outcomes for the reporting side.
func (s *Sink) WriteFlowResults(results []schemas.ResultPayload) (string, error) {
	if results == nil {
		results = []schemas.ResultPayload{}
	}
	return s.writeJSON(flowResultsFile, results)
}

func (s *Sink) writeJSON(name string, v interface{}) (string, error) {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	s.logger.Info("Artifact written", zap.String("path", path))
	return path, nil
}

// LoadFlowPlans reads planner output from disk.
func LoadFlowPlans(path string) ([]schemas.FlowPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow plans: %w", err)
	}
	var plans []schemas.FlowPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to parse flow plans %s: %w", path, err)
	}
	return plans, nil
}

// LoadTestAccount reads optional account credentials from disk. A missing
// path means anonymous operation, not an error.
func LoadTestAccount(path string) (*schemas.TestAccount, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test account: %w", err)
	}
	var account schemas.TestAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse test account %s: %w", path, err)
	}
	return &account, nil
}
