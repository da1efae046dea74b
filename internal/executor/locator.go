// File: internal/executor/locator.go
package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flightcheck-dev/flightcheck/internal/browser"
)

// Plan selectors are authored once against a DOM snapshot and replayed later
// against a re-rendered page, so they drift: text nodes pick up or lose
// whitespace, especially around emoji. ResolveLocator absorbs that drift by
// turning one plan selector into an ordered list of candidate targets; the
// step succeeds on the first candidate that resolves within its timeout.

var hasTextClause = regexp.MustCompile(`:has-text\((?:"([^"]*)"|'([^']*)')\)`)

// ResolveLocator expands a plan selector into candidate targets.
//
// Recognized forms, applied per comma-separated alternative:
//   - text="..."          pure text-content match
//   - sel:has-text("...") structural match constrained by text content
//   - anything else       plain CSS, passed through untouched
//
// A selector with no text clause at all stays a single CSS target, commas
// included, since CSS handles its own alternation.
func ResolveLocator(selector string) []browser.Target {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}

	segments := splitAlternatives(selector)
	textual := false
	for _, seg := range segments {
		if isTextSelector(seg) || hasTextClause.MatchString(seg) {
			textual = true
			break
		}
	}
	if !textual {
		return []browser.Target{browser.CSS(selector)}
	}

	var targets []browser.Target
	for _, seg := range segments {
		switch {
		case isTextSelector(seg):
			if text, ok := textSelectorValue(seg); ok {
				targets = append(targets, browser.XPath(textMatchXPath(text)))
			}
		case hasTextClause.MatchString(seg):
			targets = append(targets, hasTextTargets(seg)...)
		default:
			targets = append(targets, browser.CSS(seg))
		}
	}
	return targets
}

// splitAlternatives splits on top-level commas, ignoring commas inside quotes
// or brackets so `button[name="a,b"]` stays whole.
func splitAlternatives(s string) []string {
	var (
		parts   []string
		depth   int
		quote   rune
		current strings.Builder
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			current.WriteRune(r)
		case r == '(' || r == '[':
			depth++
			current.WriteRune(r)
		case r == ')' || r == ']':
			depth--
			current.WriteRune(r)
		case r == ',' && depth == 0:
			if part := strings.TrimSpace(current.String()); part != "" {
				parts = append(parts, part)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if part := strings.TrimSpace(current.String()); part != "" {
		parts = append(parts, part)
	}
	return parts
}

func isTextSelector(seg string) bool {
	return strings.HasPrefix(strings.TrimSpace(seg), "text=")
}

// textSelectorValue unwraps text="..." or text='...' or bare text=....
func textSelectorValue(seg string) (string, bool) {
	raw := strings.TrimPrefix(strings.TrimSpace(seg), "text=")
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			raw = raw[1 : len(raw)-1]
		}
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// textMatchXPath matches any element whose own text nodes contain the value.
// Scoping to text() rather than the subtree string keeps a match on a button
// from also matching every ancestor div.
func textMatchXPath(text string) string {
	return fmt.Sprintf(`//*[text()[contains(normalize-space(.), %s)]]`, xpathLiteral(text))
}

// hasTextTargets converts `prefix:has-text("T") suffix` into XPath targets,
// one per whitespace variant of T.
func hasTextTargets(seg string) []browser.Target {
	loc := hasTextClause.FindStringSubmatchIndex(seg)
	if loc == nil {
		return []browser.Target{browser.CSS(seg)}
	}

	match := hasTextClause.FindStringSubmatch(seg)
	text := match[1]
	if text == "" {
		text = match[2]
	}

	prefix := strings.TrimSpace(seg[:loc[0]])
	suffix := strings.TrimSpace(seg[loc[1]:])

	axis, ok := cssToXPathStep(prefix)
	if !ok {
		// Unconvertible structural prefix, match any element with the text.
		axis = "*"
	}

	var targets []browser.Target
	for _, variant := range textVariants(text) {
		expr := fmt.Sprintf(`//%s[contains(normalize-space(.), %s)]`, axis, xpathLiteral(variant))
		if suffix != "" {
			if descendant, ok := cssToXPathStep(suffix); ok {
				expr += "//" + descendant
			} else {
				expr += "//*"
			}
		}
		targets = append(targets, browser.XPath(expr))
	}
	return targets
}

var simpleCSSStep = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*|\*)((?:\[[a-zA-Z-]+(?:="[^"]*")?\])*)$`)
var cssAttr = regexp.MustCompile(`\[([a-zA-Z-]+)(?:="([^"]*)")?\]`)

// cssToXPathStep converts a simple compound selector (tag plus attribute
// filters, the shapes the selector synthesizer emits) into one XPath step.
func cssToXPathStep(sel string) (string, bool) {
	m := simpleCSSStep.FindStringSubmatch(sel)
	if m == nil {
		return "", false
	}
	step := m[1]
	for _, attr := range cssAttr.FindAllStringSubmatch(m[2], -1) {
		if attr[2] != "" {
			step += fmt.Sprintf(`[@%s=%s]`, attr[1], xpathLiteral(attr[2]))
		} else {
			step += fmt.Sprintf(`[@%s]`, attr[1])
		}
	}
	return step, true
}

// xpathLiteral quotes a string for embedding in an XPath expression. XPath
// 1.0 has no escape character, so strings containing both quote kinds need
// concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// isEmoji reports whether the rune falls in the symbol blocks that renderers
// serialize inconsistently. Deliberately narrow; widening it multiplies
// candidate fan-out for every text match.
func isEmoji(r rune) bool {
	return r >= 0x1F300 && r <= 0x1FAFF
}

func containsEmoji(s string) bool {
	for _, r := range s {
		if isEmoji(r) {
			return true
		}
	}
	return false
}

// textVariants returns the text plus whitespace-shifted variants when the
// text carries emoji next to other characters. Plain text gets no variants.
func textVariants(text string) []string {
	if !containsEmoji(text) {
		return []string{text}
	}

	variants := []string{text}
	if spaced := emojiSpaced(text); spaced != text {
		variants = append(variants, spaced)
	}
	if tight := emojiTightened(text); tight != text && tight != variants[len(variants)-1] {
		variants = append(variants, tight)
	}
	return variants
}

// emojiSpaced inserts a space at every emoji/non-space boundary.
func emojiSpaced(text string) string {
	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			boundary := (isEmoji(prev) && !isEmoji(r)) || (!isEmoji(prev) && isEmoji(r))
			if boundary && prev != ' ' && r != ' ' {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// emojiTightened removes spaces that touch an emoji.
func emojiTightened(text string) string {
	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		if r == ' ' {
			prevEmoji := i > 0 && isEmoji(runes[i-1])
			nextEmoji := i+1 < len(runes) && isEmoji(runes[i+1])
			if prevEmoji || nextEmoji {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
