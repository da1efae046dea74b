package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>  Dashboard —  Acme </title><script>var x=1;</script><style>body{}</style></head>
<body>
  <nav>
    <a href="/home">Home</a>
    <a href="/settings">Settings</a>
    <a href="#section">Jump</a>
    <a href="javascript:void(0)">Noop</a>
    <a href="mailto:hi@acme.test">Mail us</a>
  </nav>
  <form id="search-form" action="/search" method="get">
    <input name="q" placeholder="Search...">
    <input type="hidden" name="csrf" value="tok">
    <button type="submit">Go</button>
  </form>
  <input name="promo" type="text">
  <input type="hidden" name="tracking">
  <button type="button">Open menu</button>
  <script>console.log("inline")</script>
</body>
</html>`

func TestPageContextExtraction(t *testing.T) {
	page, err := PageContext("https://acme.test/dash", "", samplePage)
	require.NoError(t, err)

	assert.Equal(t, "https://acme.test/dash", page.URL)
	assert.Equal(t, "Dashboard — Acme", page.Title)

	// Fragment, javascript: and mailto: links are noise for the planner.
	require.Len(t, page.Links, 2)
	assert.Equal(t, "/home", page.Links[0].Href)
	assert.Equal(t, "Home", page.Links[0].Text)
	assert.Equal(t, `a:has-text("Home")`, page.Links[0].Selector)
	assert.Equal(t, "/settings", page.Links[1].Href)

	require.Len(t, page.Forms, 1)
	form := page.Forms[0]
	assert.Equal(t, "/search", form.Action)
	assert.Equal(t, "GET", form.Method)
	assert.Equal(t, "#search-form", form.Selector)
	// The hidden csrf input must never be collected.
	require.Len(t, form.Inputs, 1)
	assert.Equal(t, "q", form.Inputs[0].Name)
	assert.Equal(t, `input[name="q"]`, form.Inputs[0].Selector)

	// Standalone inputs exclude both form members and hidden fields.
	require.Len(t, page.Inputs, 1)
	assert.Equal(t, "promo", page.Inputs[0].Name)

	require.Len(t, page.Buttons, 2)
	assert.Equal(t, "Go", page.Buttons[0].Text)
	assert.Equal(t, "submit", page.Buttons[0].Type)
	assert.Equal(t, "Open menu", page.Buttons[1].Text)

	assert.NotContains(t, page.HTML, "<script")
	assert.NotContains(t, page.HTML, "<style")
	assert.Contains(t, page.HTML, "search-form")
}

func TestCollectionCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, `<a href="/p/%d">Link %d</a>`, i, i)
	}
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<button type="button">B%d</button>`, i)
	}
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, `<form action="/f%d"><input name="a%d"></form>`, i, i)
	}
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, `<input name="solo%d">`, i)
	}
	b.WriteString("</body></html>")

	page, err := PageContext("https://acme.test/", "big", b.String())
	require.NoError(t, err)

	assert.Len(t, page.Links, schemas.MaxLinksPerPage)
	assert.Len(t, page.Buttons, schemas.MaxButtonsPerPage)
	assert.Len(t, page.Forms, schemas.MaxFormsPerPage)
	assert.Len(t, page.Inputs, schemas.MaxInputsPerForm)
}

func TestInputsPerFormCap(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><form id="big">`)
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<input name="f%d">`, i)
	}
	b.WriteString("</form></body></html>")

	page, err := PageContext("https://acme.test/", "", b.String())
	require.NoError(t, err)
	require.Len(t, page.Forms, 1)
	assert.Len(t, page.Forms[0].Inputs, schemas.MaxInputsPerForm)
}

func TestHTMLTruncation(t *testing.T) {
	// Multi-byte runes across the cut boundary must not be split.
	filler := strings.Repeat("é", schemas.MaxHTMLBytes)
	html := "<html><body><p>" + filler + "</p></body></html>"

	page, err := PageContext("https://acme.test/", "t", html)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(page.HTML), schemas.MaxHTMLBytes)
	assert.True(t, strings.HasPrefix(page.HTML, "<p>"))
	for _, r := range page.HTML {
		assert.NotEqual(t, '�', r, "truncation split a rune")
	}
}

func TestDocumentTitleFallback(t *testing.T) {
	page, err := PageContext("https://acme.test/", "from-browser", samplePage)
	require.NoError(t, err)
	assert.Equal(t, "from-browser", page.Title)
}

func TestPageContextDeterministic(t *testing.T) {
	first, err := PageContext("https://acme.test/dash", "", samplePage)
	require.NoError(t, err)
	second, err := PageContext("https://acme.test/dash", "", samplePage)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("extraction is not deterministic (-first +second):\n%s", diff)
	}
}
