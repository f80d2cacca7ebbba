// File: internal/detect/text.go
package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xkilldash9x/consentry/internal/page"
)

// countWord counts non-overlapping, word-boundary occurrences of phrase in
// text. Both must already be lowercase. Boundaries are non-letter, non-digit
// runes, so "cookiebotx" never counts as a "cookie" hit.
func countWord(text, phrase string) int {
	if phrase == "" {
		return 0
	}
	count := 0
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			break
		}
		at := start + i
		end := at + len(phrase)
		if boundaryBefore(text, at) && boundaryAfter(text, end) {
			count++
		}
		start = end
	}
	return count
}

func boundaryBefore(text string, at int) bool {
	if at == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:at])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// keywordHits counts lexicon hits in text. Returns the total occurrence count
// (repeats included) and the distinct keywords that matched.
func keywordHits(text string, keywords []string) (int, []string) {
	text = strings.ToLower(text)
	total := 0
	var matched []string
	for _, kw := range keywords {
		if n := countWord(text, strings.ToLower(kw)); n > 0 {
			total += n
			matched = append(matched, kw)
		}
	}
	return total, matched
}

// isActionableControl reports whether the element is something a user clicks
// to answer a consent prompt.
func isActionableControl(e *page.Element) bool {
	switch e.Tag() {
	case "button", "a":
		return true
	case "input":
		switch strings.ToLower(e.Attr("type")) {
		case "submit", "button":
			return true
		}
		return false
	}
	return strings.EqualFold(e.Attr("role"), "button")
}

// FindControls returns the rendered actionable controls in the subtree,
// shadow content included, in document order. The actuator uses it for its
// text-pattern fallback, so it is part of the package surface.
func FindControls(root *page.Element) []*page.Element {
	var out []*page.Element
	root.Walk(func(e *page.Element) bool {
		if isActionableControl(e) && IsRendered(e) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// combinedText joins the subtree's visible text with its aria-label.
func combinedText(e *page.Element) string {
	text := e.Text()
	if label := strings.TrimSpace(e.Attr("aria-label")); label != "" {
		text += " " + label
	}
	return text
}

// hasConsentContent is the shared consent-text-and-control test: at least one
// lexicon hit in the combined text and at least one rendered actionable
// control in the subtree.
func hasConsentContent(e *page.Element, keywords []string) bool {
	hits, _ := keywordHits(combinedText(e), keywords)
	if hits == 0 {
		return false
	}
	return len(FindControls(e)) > 0
}

// findCheckboxes counts rendered preference checkboxes in the subtree.
func findCheckboxes(root *page.Element) int {
	n := 0
	root.Walk(func(e *page.Element) bool {
		if e.Tag() == "input" && strings.EqualFold(e.Attr("type"), "checkbox") && IsRendered(e) {
			n++
		}
		return true
	})
	return n
}
