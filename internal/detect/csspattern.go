// File: internal/detect/csspattern.go
package detect

import (
	"context"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const cssPatternConfidence = 0.6

// cssPatternClassifier tries the generic banner selectors from the pattern
// database. Weakest heuristic: a class name is cheap to fake and cheap to
// coincide with, so any hit still has to look like a banner structurally.
type cssPatternClassifier struct {
	db *patterns.Database
}

func (cssPatternClassifier) Method() Method { return MethodCSSPattern }

func (c cssPatternClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	for _, sel := range c.db.CSSPatterns.Banner {
		for _, e := range snap.QueryAll(sel) {
			if !IsRendered(e) {
				continue
			}
			if !withinEnvelope(e.Box(), snap.Viewport) || len(FindControls(e)) == 0 {
				continue
			}
			return &Result{
				Method:     MethodCSSPattern,
				Banner:     e,
				Confidence: cssPatternConfidence,
			}, nil
		}
	}
	return nil, nil
}
