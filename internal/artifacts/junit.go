// File: internal/artifacts/junit.go
package artifacts

import (
	"fmt"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
)

// WriteJUnit renders flow results as a JUnit XML report, one testsuite per
// viewport, so CI systems can surface flow failures natively.
func (s *Sink) WriteJUnit(results []schemas.ResultPayload) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "flightcheck")

	byViewport := make(map[string][]schemas.ResultPayload)
	var order []string
	for _, r := range results {
		if _, seen := byViewport[r.Viewport]; !seen {
			order = append(order, r.Viewport)
		}
		byViewport[r.Viewport] = append(byViewport[r.Viewport], r)
	}

	totalFailures := 0
	for _, viewport := range order {
		group := byViewport[viewport]
		suite := root.CreateElement("testsuite")
		suite.CreateAttr("name", viewport)
		suite.CreateAttr("tests", fmt.Sprintf("%d", len(group)))

		failures := 0
		for _, r := range group {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", r.FlowName)
			tc.CreateAttr("classname", "flightcheck."+viewport)
			tc.CreateAttr("time", fmt.Sprintf("%.3f", float64(r.DurationMs)/1000))

			if r.Status == schemas.FlowFailed {
				failures++
				failure := tc.CreateElement("failure")
				failure.CreateAttr("message", r.ErrorMessage)
				failure.SetText(stepTranscript(r.Steps))
			}
			for _, shot := range r.ScreenshotURLs {
				attachment := tc.CreateElement("system-out")
				attachment.SetText("[[ATTACHMENT|" + shot + "]]")
			}
		}
		suite.CreateAttr("failures", fmt.Sprintf("%d", failures))
		totalFailures += failures
	}
	root.CreateAttr("tests", fmt.Sprintf("%d", len(results)))
	root.CreateAttr("failures", fmt.Sprintf("%d", totalFailures))

	path := filepath.Join(s.dir, junitFile)
	doc.Indent(2)
	if err := doc.WriteToFile(path); err != nil {
		return "", fmt.Errorf("failed to write junit report: %w", err)
	}
	return path, nil
}

func stepTranscript(steps []schemas.StepResult) string {
	out := ""
	for _, step := range steps {
		out += fmt.Sprintf("[%s] %s", step.Status, step.Description)
		if step.Error != "" {
			out += ": " + step.Error
		}
		out += "\n"
	}
	return out
}
