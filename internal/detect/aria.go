// File: internal/detect/aria.go
package detect

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const ariaConfidence = 0.85

// ariaRoleQuery collects the candidate set in one XPath pass: native dialogs
// plus anything carrying an explicit role. Role values are filtered on the Go
// side so the check stays case-insensitive.
const ariaRoleQuery = `//dialog | //*[@role]`

// ariaClassifier matches elements carrying consent-relevant ARIA roles.
// Accessibility-role banners are assumed well-formed, but the role alone is
// corroborative, so this sits below the database matcher.
type ariaClassifier struct {
	db *patterns.Database
}

func (ariaClassifier) Method() Method { return MethodARIA }

func consentRole(e *page.Element) bool {
	if e.Tag() == "dialog" {
		return true
	}
	switch strings.ToLower(e.Attr("role")) {
	case "dialog", "alertdialog", "region", "banner", "complementary":
		return true
	}
	return false
}

// Classify requires both a lexicon hit in the candidate's combined text and
// aria-label AND at least one actionable control inside it.
func (c ariaClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	if snap.Root == nil {
		return nil, nil
	}
	keywords := c.db.AllKeywords()
	for _, node := range htmlquery.Find(snap.Root.Node, ariaRoleQuery) {
		e := snap.ElementFor(node)
		if e == nil || !consentRole(e) || !IsRendered(e) {
			continue
		}
		hits, matched := keywordHits(combinedText(e), keywords)
		if hits == 0 || len(FindControls(e)) == 0 {
			continue
		}
		return &Result{
			Method:          MethodARIA,
			Banner:          e,
			Confidence:      ariaConfidence,
			MatchedKeywords: matched,
		}, nil
	}
	return nil, nil
}
