// File: internal/detect/backdrop.go
package detect

import (
	"context"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const (
	backdropConfidence    = 0.75
	backdropCoverageRatio = 0.8
)

// backdropClassifier looks for full-viewport dimming layers. The backdrop is
// not the banner, but many banners render as a modal atop one, so a dimmed
// layer is a strong structural pointer at one of its descendants.
type backdropClassifier struct {
	db *patterns.Database
}

func (backdropClassifier) Method() Method { return MethodBackdrop }

// isBackdrop reports whether the element is styled as a dimming layer:
// fixed or absolute, covering at least 80% of both viewport dimensions, with
// either partial opacity or an alpha-channel background.
func isBackdrop(e *page.Element, viewport page.Rect) bool {
	switch e.Position() {
	case page.PositionFixed, page.PositionAbsolute:
	default:
		return false
	}
	box := e.Box()
	if box.W < viewport.W*backdropCoverageRatio || box.H < viewport.H*backdropCoverageRatio {
		return false
	}
	if e.Opacity() < 1 {
		return true
	}
	alpha, ok := e.BackgroundAlpha()
	return ok && alpha < 1
}

func (c backdropClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	keywords := c.db.AllKeywords()
	var result *Result
	snap.Walk(func(e *page.Element) bool {
		if result != nil {
			return false
		}
		if !IsRendered(e) || !isBackdrop(e, snap.Viewport) {
			return true
		}
		// First visible descendant with consent text and a control.
		e.Walk(func(d *page.Element) bool {
			if result != nil {
				return false
			}
			if d == e || !IsRendered(d) {
				return true
			}
			if hasConsentContent(d, keywords) {
				result = &Result{
					Method:     MethodBackdrop,
					Banner:     d,
					Confidence: backdropConfidence,
				}
				return false
			}
			return true
		})
		return result == nil
	})
	return result, nil
}
