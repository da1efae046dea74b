// File: internal/artifacts/sink_test.go
package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveScreenshot(t *testing.T) {
	s := newTestSink(t)

	path, err := s.SaveScreenshot("checkout-desktop-final.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "screenshots", "checkout-desktop-final.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestSaveScreenshotStripsDirectoryComponents(t *testing.T) {
	s := newTestSink(t)
	path, err := s.SaveScreenshot("../../escape.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "screenshots", "escape.png"), path)
}

func TestWriteCrawlResultRoundTrip(t *testing.T) {
	s := newTestSink(t)
	result := &schemas.CrawlResult{
		Pages: []schemas.PageContext{{URL: "https://example.com/", Title: "Home"}},
		Auth:  &schemas.AuthResult{Success: true, PostLoginURL: "https://example.com/home"},
	}

	path, err := s.WriteCrawlResult(result)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded schemas.CrawlResult
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, result.Pages, loaded.Pages)
	assert.Equal(t, result.Auth, loaded.Auth)
}

func TestLoadFlowPlans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"f1","name":"checkout","priority":5,"steps":[
			{"action":"navigate","value":"/checkout","description":"open checkout"}
		]}
	]`), 0o644))

	plans, err := LoadFlowPlans(path)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "checkout", plans[0].Name)
	assert.Equal(t, schemas.ActionNavigate, plans[0].Steps[0].Action)

	_, err = LoadFlowPlans(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadTestAccount(t *testing.T) {
	account, err := LoadTestAccount("")
	require.NoError(t, err)
	assert.Nil(t, account)

	path := filepath.Join(t.TempDir(), "account.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"email":"qa@example.com","password":"hunter2","auth_type":"form"}`), 0o644))
	account, err = LoadTestAccount(path)
	require.NoError(t, err)
	require.NotNil(t, account)
	_, ok := account.Credentials()
	assert.True(t, ok)
}

func TestWriteJUnit(t *testing.T) {
	s := newTestSink(t)
	results := []schemas.ResultPayload{
		{FlowName: "checkout", Status: schemas.FlowPassed, DurationMs: 1500, Viewport: "desktop",
			ScreenshotURLs: []string{"shots/f1-desktop-final.png"}},
		{FlowName: "signup", Status: schemas.FlowFailed, DurationMs: 900, Viewport: "desktop",
			ErrorMessage: "step 3 (submit form): element not visible",
			Steps: []schemas.StepResult{
				{Description: "enter email", Status: schemas.StepPassed},
				{Description: "submit form", Status: schemas.StepFailed, Error: "element not visible"},
			}},
		{FlowName: "checkout", Status: schemas.FlowPassed, DurationMs: 1800, Viewport: "mobile"},
	}

	path, err := s.WriteJUnit(results)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(path))

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "testsuites", root.Tag)
	assert.Equal(t, "3", root.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", root.SelectAttrValue("failures", ""))

	suites := root.SelectElements("testsuite")
	require.Len(t, suites, 2)
	assert.Equal(t, "desktop", suites[0].SelectAttrValue("name", ""))
	assert.Equal(t, "1", suites[0].SelectAttrValue("failures", ""))
	assert.Equal(t, "mobile", suites[1].SelectAttrValue("name", ""))

	failed := suites[0].SelectElements("testcase")[1]
	failure := failed.SelectElement("failure")
	require.NotNil(t, failure)
	assert.Contains(t, failure.SelectAttrValue("message", ""), "submit form")
	assert.Contains(t, failure.Text(), "[failed] submit form")
}
