// File: internal/extract/extract.go
//
// Package extract builds a PageContext from an HTML snapshot taken by the
// browser layer. Parsing happens here in the host process over the serialized
// DOM, so the whole algorithm is testable against plain HTML strings.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/selector"
)

// strippedTags are removed from the HTML handed to the planner. They carry no
// structure the planner can target and they dominate payload size.
const strippedTags = "script, style, noscript, svg, iframe, link[rel], meta"

const buttonQuery = `button, input[type="submit"], input[type="button"], [role="button"]`

const inputQuery = "input, textarea, select"

// PageContext parses an HTML snapshot and assembles the structural context
// for one URL. title may be empty, in which case the document title is used.
func PageContext(pageURL, title, html string) (schemas.PageContext, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return schemas.PageContext{}, err
	}

	if title == "" {
		title = selector.NormalizeText(doc.Find("title").First().Text())
	}

	page := schemas.PageContext{
		URL:     pageURL,
		Title:   title,
		HTML:    truncatedHTML(doc),
		Links:   collectLinks(doc),
		Forms:   collectForms(doc),
		Buttons: collectButtons(doc),
		Inputs:  collectStandaloneInputs(doc),
	}
	return page, nil
}

func collectLinks(doc *goquery.Document) []schemas.LinkInfo {
	links := make([]schemas.LinkInfo, 0, schemas.MaxLinksPerPage)
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if skipHref(href) {
			return true
		}
		links = append(links, schemas.LinkInfo{
			Href:     href,
			Text:     selector.NormalizeText(s.Text()),
			Selector: selector.Link(s, i),
		})
		return len(links) < schemas.MaxLinksPerPage
	})
	return links
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:")
}

func collectButtons(doc *goquery.Document) []schemas.ButtonInfo {
	buttons := make([]schemas.ButtonInfo, 0, schemas.MaxButtonsPerPage)
	doc.Find(buttonQuery).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := selector.NormalizeText(s.Text())
		if text == "" {
			text = selector.NormalizeText(s.AttrOr("value", ""))
		}
		buttons = append(buttons, schemas.ButtonInfo{
			Text:     text,
			Type:     selector.ButtonType(s),
			Selector: selector.Button(s, i),
		})
		return len(buttons) < schemas.MaxButtonsPerPage
	})
	return buttons
}

func collectForms(doc *goquery.Document) []schemas.FormInfo {
	forms := make([]schemas.FormInfo, 0, schemas.MaxFormsPerPage)
	doc.Find("form").EachWithBreak(func(i int, formSel *goquery.Selection) bool {
		formSelector := selector.Form(formSel, i)
		form := schemas.FormInfo{
			Action:   formSel.AttrOr("action", ""),
			Method:   strings.ToUpper(formSel.AttrOr("method", "GET")),
			Selector: formSelector,
			Inputs:   collectInputs(formSel.Find(inputQuery), doc, formSelector),
		}
		forms = append(forms, form)
		return len(forms) < schemas.MaxFormsPerPage
	})
	return forms
}

func collectStandaloneInputs(doc *goquery.Document) []schemas.InputInfo {
	outside := doc.Find(inputQuery).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest("form").Length() == 0
	})
	return collectInputs(outside, doc, "")
}

func collectInputs(sel *goquery.Selection, doc *goquery.Document, container string) []schemas.InputInfo {
	inputs := make([]schemas.InputInfo, 0, schemas.MaxInputsPerForm)
	ctx := selector.Context{Container: container}
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if hiddenInput(s) {
			return true
		}
		typ := s.AttrOr("type", "")
		if typ == "" && goquery.NodeName(s) == "input" {
			typ = "text"
		}
		inputs = append(inputs, schemas.InputInfo{
			Name:        s.AttrOr("name", ""),
			Type:        typ,
			Placeholder: s.AttrOr("placeholder", ""),
			Selector:    selector.Input(s, doc, ctx, len(inputs)),
			Label:       selector.LabelText(s, doc),
		})
		return len(inputs) < schemas.MaxInputsPerForm
	})
	return inputs
}

func hiddenInput(s *goquery.Selection) bool {
	if s.AttrOr("type", "") == "hidden" {
		return true
	}
	_, hidden := s.Attr("hidden")
	return hidden
}

// truncatedHTML strips non-essential tags and caps the body markup at the
// payload limit, cutting on a rune boundary.
func truncatedHTML(doc *goquery.Document) string {
	doc.Find(strippedTags).Remove()

	body, err := doc.Find("body").First().Html()
	if err != nil || body == "" {
		return ""
	}
	body = strings.TrimSpace(body)
	if len(body) <= schemas.MaxHTMLBytes {
		return body
	}
	cut := schemas.MaxHTMLBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
