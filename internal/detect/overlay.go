// File: internal/detect/overlay.go
package detect

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/consentry/internal/page"
)

const (
	// Stacking thresholds. Absolute elements need at least the low one;
	// anything at or above the high one qualifies regardless of position.
	zIndexLow  = 10
	zIndexHigh = 1000

	// Plausible banner size envelope. The height cap excludes full-page
	// modals, which the backdrop heuristic handles instead.
	minBannerWidth       = 240.0
	minBannerHeight      = 48.0
	maxBannerHeightRatio = 0.9
)

// withinEnvelope reports whether a box has plausible banner dimensions for
// the given viewport.
func withinEnvelope(box page.Rect, viewport page.Rect) bool {
	return box.W >= minBannerWidth &&
		box.H >= minBannerHeight &&
		box.H <= viewport.H*maxBannerHeightRatio
}

func isContainerTag(e *page.Element) bool {
	switch e.Tag() {
	case "div", "section", "aside", "footer", "header", "form", "dialog":
		return true
	}
	switch strings.ToLower(e.Attr("role")) {
	case "dialog", "alertdialog":
		return true
	}
	return false
}

// elevated reports whether the element is styled to sit above normal flow.
func elevated(e *page.Element) bool {
	z, hasZ := e.ZIndex()
	switch e.Position() {
	case page.PositionFixed, page.PositionSticky:
		return true
	case page.PositionAbsolute:
		if hasZ && z >= zIndexLow {
			return true
		}
	}
	return hasZ && z >= zIndexHigh
}

// findOverlays returns the rendered overlay candidates of one snapshot,
// ordered by descending stacking priority. Banners are deliberately rendered
// above page content, so z-order is the strongest cheap discriminator before
// any text analysis. Elements matching an extra selector (the pattern
// database's overlay list) are admitted without the positioning test.
func findOverlays(snap *page.Snapshot, extraSelectors []string) []*page.Element {
	forced := make(map[*page.Element]struct{})
	for _, sel := range extraSelectors {
		for _, e := range snap.QueryAll(sel) {
			forced[e] = struct{}{}
		}
	}

	var out []*page.Element
	snap.Walk(func(e *page.Element) bool {
		if !isContainerTag(e) {
			return true
		}
		if _, force := forced[e]; !force && !elevated(e) {
			return true
		}
		if !IsRendered(e) || !withinEnvelope(e.Box(), snap.Viewport) {
			return true
		}
		out = append(out, e)
		return true
	})

	sort.SliceStable(out, func(i, j int) bool {
		zi, _ := out[i].ZIndex()
		zj, _ := out[j].ZIndex()
		if zi != zj {
			return zi > zj
		}
		return positionRank(out[i]) > positionRank(out[j])
	})
	return out
}

func positionRank(e *page.Element) int {
	switch e.Position() {
	case page.PositionFixed:
		return 3
	case page.PositionSticky:
		return 2
	case page.PositionAbsolute:
		return 1
	default:
		return 0
	}
}
