// File: internal/detect/knowncmp.go
package detect

import (
	"context"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const knownCMPConfidence = 0.95

// knownCMPClassifier matches the fingerprint database of consent platforms.
// A selector hit on a maintained database is treated as ground truth, so the
// confidence is fixed and no gradation applies.
type knownCMPClassifier struct {
	db *patterns.Database
}

func (knownCMPClassifier) Method() Method { return MethodKnownCMP }

// Classify walks the platform list in stored order and returns the first
// visible banner-selector match. First match wins: database order encodes
// precedence for platforms whose selectors overlap.
func (c knownCMPClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	for _, cmp := range c.db.KnownCMPs {
		for _, sel := range cmp.Selectors.Banner {
			for _, e := range snap.QueryAll(sel) {
				if !IsRendered(e) {
					continue
				}
				return &Result{
					Method:          MethodKnownCMP,
					Banner:          e,
					Confidence:      knownCMPConfidence,
					CMPName:         cmp.Name,
					AcceptSelectors: cmp.Selectors.AcceptButton,
					RejectSelectors: cmp.Selectors.RejectButton,
				}, nil
			}
		}
	}
	return nil, nil
}
