// File: internal/executor/locator_test.go
package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightcheck-dev/flightcheck/internal/browser"
)

func TestResolveLocatorTextSelector(t *testing.T) {
	targets := ResolveLocator(`text="Login"`)
	require.Len(t, targets, 1)
	assert.Equal(t, browser.TargetXPath, targets[0].Kind)
	assert.Equal(t, `//*[text()[contains(normalize-space(.), "Login")]]`, targets[0].Value)
}

func TestResolveLocatorTextOrStructural(t *testing.T) {
	targets := ResolveLocator(`a, text="Login"`)
	require.Len(t, targets, 2)
	assert.Equal(t, browser.TargetCSS, targets[0].Kind)
	assert.Equal(t, "a", targets[0].Value)
	assert.Equal(t, browser.TargetXPath, targets[1].Kind)
	assert.Contains(t, targets[1].Value, `"Login"`)
}

func TestResolveLocatorPlainCSSStaysWhole(t *testing.T) {
	// CSS alternation is native; no text clause means no splitting.
	targets := ResolveLocator(`button.primary, a#submit`)
	require.Len(t, targets, 1)
	assert.Equal(t, browser.TargetCSS, targets[0].Kind)
	assert.Equal(t, `button.primary, a#submit`, targets[0].Value)
}

func TestResolveLocatorHasText(t *testing.T) {
	testCases := []struct {
		name     string
		selector string
		expected string
	}{
		{
			name:     "bare tag",
			selector: `a:has-text("Settings")`,
			expected: `//a[contains(normalize-space(.), "Settings")]`,
		},
		{
			name:     "tag with attribute",
			selector: `button[type="submit"]:has-text("Save")`,
			expected: `//button[@type="submit"][contains(normalize-space(.), "Save")]`,
		},
		{
			name:     "descendant suffix",
			selector: `label:has-text("Email") input`,
			expected: `//label[contains(normalize-space(.), "Email")]//input`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			targets := ResolveLocator(tc.selector)
			require.Len(t, targets, 1)
			assert.Equal(t, browser.TargetXPath, targets[0].Kind)
			assert.Equal(t, tc.expected, targets[0].Value)
		})
	}
}

func TestResolveLocatorEmojiVariants(t *testing.T) {
	targets := ResolveLocator(`button:has-text("🚀Launch")`)
	require.Len(t, targets, 2)
	assert.Contains(t, targets[0].Value, "🚀Launch")
	assert.Contains(t, targets[1].Value, "🚀 Launch")

	// Plain text gets no variant fan-out.
	plain := ResolveLocator(`button:has-text("Launch now")`)
	assert.Len(t, plain, 1)
}

func TestResolveLocatorEmpty(t *testing.T) {
	assert.Nil(t, ResolveLocator(""))
	assert.Nil(t, ResolveLocator("   "))
}

func TestSplitAlternativesQuoting(t *testing.T) {
	parts := splitAlternatives(`button[name="a,b"], a`)
	require.Len(t, parts, 2)
	assert.Equal(t, `button[name="a,b"]`, parts[0])
	assert.Equal(t, "a", parts[1])
}

func TestTextVariants(t *testing.T) {
	t.Run("spaced emoji tightens", func(t *testing.T) {
		variants := textVariants("🚀 Launch")
		assert.Equal(t, []string{"🚀 Launch", "🚀Launch"}, variants)
	})
	t.Run("tight emoji spaces out", func(t *testing.T) {
		variants := textVariants("Go🚀now")
		assert.Equal(t, []string{"Go🚀now", "Go 🚀 now"}, variants)
	})
	t.Run("no emoji no variants", func(t *testing.T) {
		assert.Equal(t, []string{"Checkout"}, textVariants("Checkout"))
	})
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `"plain"`, xpathLiteral("plain"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "x", '"')`, xpathLiteral(`it's "x"`))
}
