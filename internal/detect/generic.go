// File: internal/detect/generic.go
package detect

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

const (
	genericBase      = 0.4
	genericCap       = 0.95
	genericAdmission = 0.5

	genericKeywordPerHit = 0.03
	genericKeywordCap    = 0.15
	genericOneControl    = 0.1
	genericControlPair   = 0.2
	genericFragmentEach  = 0.05
	genericFragmentCap   = 0.1
	genericSizeBonus     = 0.05
	genericPositionBonus = 0.1
	genericCheckboxBonus = 0.05

	genericSizeBonusWidth  = 300.0
	genericSizeBonusHeight = 80.0

	iframeConfidence = 0.65
)

// genericClassifier is the weighted structural scorer: it admits any overlay
// that looks and reads like a banner, scores it from capped evidence bonuses,
// and competes the best score against the same-origin iframe sub-check.
type genericClassifier struct {
	db *patterns.Database
}

func (genericClassifier) Method() Method { return MethodGeneric }

func (c genericClassifier) Classify(_ context.Context, snap *page.Snapshot) (*Result, error) {
	keywords := c.db.AllKeywords()
	var best *Result

	for _, overlay := range findOverlays(snap, c.db.CSSPatterns.Overlay) {
		controls := FindControls(overlay)
		if len(controls) == 0 {
			continue
		}
		hits, matched := keywordHits(combinedText(overlay), keywords)
		if hits == 0 {
			continue
		}

		score := genericBase
		score += capped(genericKeywordPerHit*float64(hits), genericKeywordCap)
		if len(controls) >= 2 {
			score += genericControlPair
		} else {
			score += genericOneControl
		}
		score += c.fragmentBonus(controls)
		box := overlay.Box()
		if box.W >= genericSizeBonusWidth && box.H >= genericSizeBonusHeight {
			score += genericSizeBonus
		}
		switch overlay.Position() {
		case page.PositionFixed, page.PositionSticky:
			score += genericPositionBonus
		}
		if findCheckboxes(overlay) > 0 {
			score += genericCheckboxBonus
		}
		score = capped(score, genericCap)

		if score < genericAdmission {
			continue
		}
		candidate := &Result{
			Method:          MethodGeneric,
			Banner:          overlay,
			Confidence:      score,
			MatchedKeywords: matched,
		}
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
	}

	if iframeHit := c.probeIframes(snap, keywords); iframeHit != nil {
		if best == nil || iframeHit.Confidence > best.Confidence {
			best = iframeHit
		}
	}
	return best, nil
}

// fragmentBonus rewards controls whose label matches a recognized accept or
// reject phrase, once per polarity.
func (c genericClassifier) fragmentBonus(controls []*page.Element) float64 {
	bonus := 0.0
	for _, polarity := range [...]patterns.Polarity{patterns.PolarityAccept, patterns.PolarityReject} {
		fragments := c.db.Fragments(polarity)
		for _, ctl := range controls {
			if matchesFragment(ctl, fragments) {
				bonus += genericFragmentEach
				break
			}
		}
	}
	return capped(bonus, genericFragmentCap)
}

func matchesFragment(ctl *page.Element, fragments []string) bool {
	label := strings.ToLower(ctl.AccessibleText())
	for _, f := range fragments {
		if strings.Contains(label, f) {
			return true
		}
	}
	return false
}

// probeIframes runs the same-origin iframe sub-check: the first readable
// frame holding consent text and a control is admitted at a fixed
// confidence. Cross-origin frames fail silently and the scan continues; that
// opacity is a platform boundary, not an error.
func (c genericClassifier) probeIframes(snap *page.Snapshot, keywords []string) *Result {
	if snap.Root == nil {
		return nil
	}
	for _, node := range htmlquery.Find(snap.Root.Node, "//iframe") {
		e := snap.ElementFor(node)
		if e == nil || !IsRendered(e) {
			continue
		}
		sub, err := e.FrameDocument()
		if err != nil || sub == nil || sub.Body == nil {
			// Cross-origin frames land here; fall through to the next frame.
			continue
		}
		var result *Result
		sub.Walk(func(d *page.Element) bool {
			if IsRendered(d) && hasConsentContent(d, keywords) {
				result = &Result{
					Method:     MethodGeneric,
					Banner:     d,
					Confidence: iframeConfidence,
					IsIframe:   true,
				}
				return false
			}
			return true
		})
		if result != nil {
			return result
		}
	}
	return nil
}

func capped(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}
