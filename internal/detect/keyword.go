// File: internal/detect/keyword.go
package detect

import (
	"context"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const (
	keywordBaseConfidence = 0.7
	keywordPerHit         = 0.05
	keywordMaxConfidence  = 0.9
	keywordMinHits        = 2
)

// keywordClassifier scans overlay candidates for consent vocabulary. The
// overlay list arrives stacking-order sorted, so this is a priority scan that
// stops at the first qualifying candidate, not a full-corpus best match.
type keywordClassifier struct {
	db *patterns.Database
}

func (keywordClassifier) Method() Method { return MethodKeyword }

func (c keywordClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	keywords := c.db.AllKeywords()
	for _, overlay := range findOverlays(snap, c.db.CSSPatterns.Overlay) {
		hits, matched := keywordHits(overlay.Text(), keywords)
		if hits < keywordMinHits {
			continue
		}
		conf := keywordBaseConfidence + keywordPerHit*float64(hits)
		if conf > keywordMaxConfidence {
			conf = keywordMaxConfidence
		}
		return &Result{
			Method:          MethodKeyword,
			Banner:          overlay,
			Confidence:      conf,
			MatchedKeywords: matched,
		}, nil
	}
	return nil, nil
}
