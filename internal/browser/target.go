// File: internal/browser/target.go
package browser

import (
	"github.com/chromedp/chromedp"
)

// TargetKind says how a Target's value must be interpreted when querying the
// DOM.
type TargetKind string

const (
	// TargetCSS is a structural CSS selector, queried directly.
	TargetCSS TargetKind = "css"
	// TargetXPath is an XPath expression, used for text-content matching
	// which CSS cannot express.
	TargetXPath TargetKind = "xpath"
)

// Target is one concrete way to find an element. The locator resolver turns a
// plan selector into an ordered list of candidate targets; the session tries
// them against the live page.
type Target struct {
	Kind  TargetKind
	Value string
}

// CSS builds a structural target.
func CSS(sel string) Target { return Target{Kind: TargetCSS, Value: sel} }

// XPath builds a text-match target.
func XPath(expr string) Target { return Target{Kind: TargetXPath, Value: expr} }

// queryOption maps the target onto a chromedp query strategy.
func (t Target) queryOption() chromedp.QueryOption {
	if t.Kind == TargetXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
