// File: internal/detect/shadowdom.go
package detect

import (
	"context"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const (
	shadowConfidence = 0.7
	shadowMinHits    = 2
)

// shadowDOMClassifier walks the light tree for shadow hosts and searches
// their shadow trees, nested roots included, for consent content. Recursion
// is bounded by the parsed tree depth; a snapshot cannot alias subtrees.
type shadowDOMClassifier struct {
	db *patterns.Database
}

func (shadowDOMClassifier) Method() Method { return MethodShadowDOM }

func (c shadowDOMClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	keywords := c.db.AllKeywords()
	var result *Result
	snap.Walk(func(host *page.Element) bool {
		if result != nil {
			return false
		}
		if host.ShadowRoot == nil {
			return true
		}
		result = c.searchShadow(host.ShadowRoot, keywords)
		return result == nil
	})
	return result, nil
}

// searchShadow looks for the first visible shadow element with at least two
// lexicon hits and an actionable control.
func (c *shadowDOMClassifier) searchShadow(root *page.Element, keywords []string) *Result {
	var result *Result
	for _, child := range root.Children {
		child.Walk(func(e *page.Element) bool {
			if result != nil {
				return false
			}
			if !IsRendered(e) {
				return true
			}
			hits, matched := keywordHits(combinedText(e), keywords)
			if hits < shadowMinHits || len(FindControls(e)) == 0 {
				return true
			}
			banner := narrowest(e, keywords)
			_, matched = keywordHits(combinedText(banner), keywords)
			result = &Result{
				Method:          MethodShadowDOM,
				Banner:          banner,
				Confidence:      shadowConfidence,
				MatchedKeywords: matched,
			}
			return false
		})
		if result != nil {
			break
		}
	}
	return result
}

// narrowest descends from a qualifying element to the deepest descendant
// that still passes the test on its own, so a matching wrapper resolves to
// the actual banner nested inside it.
func narrowest(e *page.Element, keywords []string) *page.Element {
	for {
		next := firstQualifyingChild(e, keywords)
		if next == nil {
			return e
		}
		e = next
	}
}

func firstQualifyingChild(e *page.Element, keywords []string) *page.Element {
	var children []*page.Element
	if e.ShadowRoot != nil {
		children = append(children, e.ShadowRoot.Children...)
	}
	children = append(children, e.Children...)
	for _, c := range children {
		if !IsRendered(c) {
			continue
		}
		hits, _ := keywordHits(combinedText(c), keywords)
		if hits >= shadowMinHits && len(FindControls(c)) > 0 {
			return c
		}
	}
	return nil
}
