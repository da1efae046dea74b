// File: internal/selector/synthesizer.go
//
// Package selector turns DOM elements into locator strings the rest of the
// system can re-query later. Synthesis is deterministic: for a given element
// and context the same selector always comes out. Rules are ordered
// stable-first, so attributes that survive re-renders (test ids, names) win
// over anything positional.
package selector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxTextLength caps visible-text selectors so a verbose button label does not
// produce an unwieldy locator.
const maxTextLength = 30

// Context scopes synthesis. Container is the selector of the nearest known
// ancestor (typically a form); empty means the whole page.
type Context struct {
	Container string
}

func (c Context) scope() string {
	if c.Container == "" {
		return ""
	}
	return c.Container + " "
}

// bareIDPattern matches ids that are safe to use in a bare #id selector.
// Framework-generated ids like ":r2:" contain characters that are illegal
// there and must be rejected.
var bareIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidCSSID reports whether id can appear after "#" without escaping.
func ValidCSSID(id string) bool {
	return bareIDPattern.MatchString(id)
}

// NormalizeText collapses runs of whitespace, trims, and truncates to the
// visible-text cap.
func NormalizeText(s string) string {
	normalized := strings.Join(strings.Fields(s), " ")
	runes := []rune(normalized)
	if len(runes) > maxTextLength {
		return string(runes[:maxTextLength])
	}
	return normalized
}

func escapeAttr(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}

// Input synthesizes a selector for a fillable field. index is the element's
// position among the collected inputs of its container and is only used for
// the final positional fallback.
func Input(s *goquery.Selection, doc *goquery.Document, ctx Context, index int) string {
	tag := goquery.NodeName(s)

	if testID, ok := s.Attr("data-testid"); ok && testID != "" {
		return fmt.Sprintf(`[data-testid="%s"]`, escapeAttr(testID))
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, tag, escapeAttr(name))
	}
	if placeholder, ok := s.Attr("placeholder"); ok && placeholder != "" {
		return fmt.Sprintf(`%s[placeholder="%s"]`, tag, escapeAttr(placeholder))
	}

	if label := LabelText(s, doc); label != "" {
		if sel, ok := labelScoped(s, doc, label, tag); ok {
			return sel
		}
	}

	typ := s.AttrOr("type", "")
	if typ == "email" || typ == "password" {
		return fmt.Sprintf(`%s[type="%s"]`, tag, typ)
	}

	if id, ok := s.Attr("id"); ok && ValidCSSID(id) {
		return "#" + id
	}

	if typ != "" {
		return fmt.Sprintf(`%s%s[type="%s"]`, ctx.scope(), tag, typ)
	}

	return fmt.Sprintf(`%s%s:nth-of-type(%d)`, ctx.scope(), tag, index+1)
}

// labelScoped builds a selector from the element's label association. An
// ancestor <label> yields a has-text scope; a for-attribute association can
// only be expressed through the referenced id, so it applies when that id is
// usable.
func labelScoped(s *goquery.Selection, doc *goquery.Document, label, tag string) (string, bool) {
	if s.Closest("label").Length() > 0 {
		return fmt.Sprintf(`label:has-text("%s") %s`, escapeAttr(label), tag), true
	}
	if id, ok := s.Attr("id"); ok && ValidCSSID(id) {
		return "#" + id, true
	}
	return "", false
}

// LabelText resolves the human-readable label for a field, first through a
// label[for] association, then through an ancestor <label>.
func LabelText(s *goquery.Selection, doc *goquery.Document) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		if assoc := doc.Find(fmt.Sprintf(`label[for="%s"]`, escapeAttr(id))); assoc.Length() > 0 {
			if text := NormalizeText(assoc.First().Text()); text != "" {
				return text
			}
		}
	}
	if ancestor := s.Closest("label"); ancestor.Length() > 0 {
		return NormalizeText(ancestor.First().Text())
	}
	return ""
}

// Button synthesizes a selector for a clickable control. Visible text is
// preferred and the type attribute is carried to split same-text buttons
// apart ("Save" submit vs "Save" draft).
func Button(s *goquery.Selection, index int) string {
	tag := goquery.NodeName(s)

	if testID, ok := s.Attr("data-testid"); ok && testID != "" {
		return fmt.Sprintf(`[data-testid="%s"]`, escapeAttr(testID))
	}

	typ := ButtonType(s)
	if text := buttonText(s); text != "" {
		return fmt.Sprintf(`%s[type="%s"]:has-text("%s")`, tag, typ, escapeAttr(text))
	}
	if id, ok := s.Attr("id"); ok && ValidCSSID(id) {
		return "#" + id
	}
	return fmt.Sprintf(`%s[type="%s"]:nth-of-type(%d)`, tag, typ, index+1)
}

// ButtonType returns the effective type of a clickable control. A bare
// <button> inside a form submits it, which matches the browser default.
func ButtonType(s *goquery.Selection) string {
	if typ, ok := s.Attr("type"); ok && typ != "" {
		return typ
	}
	if goquery.NodeName(s) == "button" {
		return "submit"
	}
	return "button"
}

func buttonText(s *goquery.Selection) string {
	if text := NormalizeText(s.Text()); text != "" {
		return text
	}
	// input[type=submit] carries its caption in value.
	return NormalizeText(s.AttrOr("value", ""))
}

// Link synthesizes a selector for an anchor. Text wins; the href attribute is
// the structural fallback before position.
func Link(s *goquery.Selection, index int) string {
	if testID, ok := s.Attr("data-testid"); ok && testID != "" {
		return fmt.Sprintf(`[data-testid="%s"]`, escapeAttr(testID))
	}
	if text := NormalizeText(s.Text()); text != "" {
		return fmt.Sprintf(`a:has-text("%s")`, escapeAttr(text))
	}
	if href := s.AttrOr("href", ""); href != "" {
		return fmt.Sprintf(`a[href="%s"]`, escapeAttr(href))
	}
	return fmt.Sprintf(`a:nth-of-type(%d)`, index+1)
}

// Form synthesizes a selector for a form element.
func Form(s *goquery.Selection, index int) string {
	if testID, ok := s.Attr("data-testid"); ok && testID != "" {
		return fmt.Sprintf(`[data-testid="%s"]`, escapeAttr(testID))
	}
	if id, ok := s.Attr("id"); ok && ValidCSSID(id) {
		return "#" + id
	}
	if action := s.AttrOr("action", ""); action != "" {
		return fmt.Sprintf(`form[action="%s"]`, escapeAttr(action))
	}
	return fmt.Sprintf(`form:nth-of-type(%d)`, index+1)
}
