// File: internal/page/geometry.go
package page

import (
	"strconv"
	"strings"
)

const (
	baseFontSize      = 16.0
	defaultLineHeight = 1.2
	// Average glyph advance as a fraction of font size. Crude, but layout
	// here only has to be good enough for size-envelope checks.
	glyphWidthRatio = 0.6
)

// Rect is an estimated border box in viewport coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Area returns the rectangle's area in square pixels.
func (r Rect) Area() float64 { return r.W * r.H }

// Empty reports whether the rectangle has no renderable extent.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// layoutTree estimates a box for every element in the snapshot. The page is
// immutable once parsed, so this runs exactly once per snapshot; a fresh
// detection cycle over a changed page always starts from a fresh snapshot.
func (s *Snapshot) layoutTree() {
	if s.Root == nil {
		return
	}
	s.layoutElement(s.Root, 0, 0, s.Viewport.W)
}

// layoutElement assigns the element's box and returns the height it occupies
// in its parent's normal flow (zero for out-of-flow elements).
func (s *Snapshot) layoutElement(e *Element, x, y, availW float64) float64 {
	display := e.Display()
	if display == "none" {
		zeroSubtree(e)
		return 0
	}

	width := s.resolveWidth(e, availW)

	// Lay out children first; content height falls out of their flow. A
	// shadow root replaces unslotted light children in the render, so its
	// flow height is the host's.
	var flowH float64
	if e.ShadowRoot != nil {
		flowH = s.layoutElement(e.ShadowRoot, x, y, width)
		s.layoutChildren(e, x, y, width)
	} else {
		flowH = s.layoutChildren(e, x, y, width)
	}

	height, hasExplicitH := s.resolveHeight(e)
	if !hasExplicitH {
		height = flowH
		if height == 0 {
			height = intrinsicHeight(e.Tag())
		}
	}

	// Out-of-flow elements are positioned against the viewport. Real CSS
	// resolves absolute elements against the nearest positioned ancestor;
	// banners overwhelmingly position against the viewport, and the
	// detection heuristics only need coverage and envelope numbers.
	pos := e.Position()
	if pos == PositionFixed || pos == PositionAbsolute {
		x, y = s.resolveOffsets(e, width, height)
	}

	e.box = Rect{X: x, Y: y, W: width, H: height}

	if pos == PositionFixed || pos == PositionAbsolute {
		return 0
	}
	return height
}

// layoutChildren stacks block children vertically and folds runs of inline
// children into rows. Returns the total flow height.
func (s *Snapshot) layoutChildren(e *Element, x, y, availW float64) float64 {
	cy := y
	var total, rowH, rowW float64

	flushRow := func() {
		total += rowH
		cy += rowH
		rowH, rowW = 0, 0
	}

	for _, c := range e.Children {
		switch c.Display() {
		case "none":
			zeroSubtree(c)
		case "inline", "inline-block", "inline-flex":
			h := s.layoutElement(c, x+rowW, cy, availW)
			rowW += c.box.W
			if h > rowH {
				rowH = h
			}
		default:
			flushRow()
			h := s.layoutElement(c, x, cy, availW)
			total += h
			cy += h
		}
	}
	flushRow()

	total += s.textHeight(e, availW)
	return total
}

// textHeight estimates the height of the element's direct text content when
// wrapped at the given width.
func (s *Snapshot) textHeight(e *Element, width float64) float64 {
	text := strings.TrimSpace(e.ownText())
	if text == "" {
		return 0
	}
	fontSize := e.fontSize()
	lineH := fontSize * defaultLineHeight
	if width <= 0 {
		return lineH
	}
	runWidth := float64(len(text)) * fontSize * glyphWidthRatio
	lines := int(runWidth/width) + 1
	return float64(lines) * lineH
}

func (s *Snapshot) resolveWidth(e *Element, availW float64) float64 {
	if raw := e.Style("width", ""); raw != "" {
		if w, ok := s.resolveLength(raw, availW); ok {
			return w
		}
	}
	switch e.Display() {
	case "inline", "inline-block", "inline-flex":
		// Shrink to fit content.
		text := strings.TrimSpace(e.fullText())
		w := float64(len(text))*e.fontSize()*glyphWidthRatio + 12
		if iw := intrinsicWidth(e.Tag()); w < iw {
			w = iw
		}
		if w > availW && availW > 0 {
			return availW
		}
		return w
	default:
		return availW
	}
}

func (s *Snapshot) resolveHeight(e *Element) (float64, bool) {
	raw := e.Style("height", "")
	if raw == "" {
		return 0, false
	}
	h, ok := s.resolveLength(raw, s.Viewport.H)
	return h, ok
}

func (s *Snapshot) resolveOffsets(e *Element, width, height float64) (x, y float64) {
	x, y = 0, 0
	if raw := e.Style("left", ""); raw != "" {
		if v, ok := s.resolveLength(raw, s.Viewport.W); ok {
			x = v
		}
	} else if raw := e.Style("right", ""); raw != "" {
		if v, ok := s.resolveLength(raw, s.Viewport.W); ok {
			x = s.Viewport.W - width - v
		}
	}
	if raw := e.Style("top", ""); raw != "" {
		if v, ok := s.resolveLength(raw, s.Viewport.H); ok {
			y = v
		}
	} else if raw := e.Style("bottom", ""); raw != "" {
		if v, ok := s.resolveLength(raw, s.Viewport.H); ok {
			y = s.Viewport.H - height - v
		}
	}
	return x, y
}

// resolveLength resolves a CSS length against a reference dimension.
// Percentages use the reference, viewport units use the snapshot viewport,
// em/rem approximate with the base font size.
func (s *Snapshot) resolveLength(value string, reference float64) (float64, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == "auto" {
		return 0, false
	}
	numeric := func(suffix string) (float64, bool) {
		v, err := strconv.ParseFloat(strings.TrimSuffix(value, suffix), 64)
		return v, err == nil
	}
	switch {
	case strings.HasSuffix(value, "px"):
		return numeric("px")
	case strings.HasSuffix(value, "%"):
		if pct, ok := numeric("%"); ok {
			return reference * pct / 100, true
		}
	case strings.HasSuffix(value, "vw"):
		if v, ok := numeric("vw"); ok {
			return s.Viewport.W * v / 100, true
		}
	case strings.HasSuffix(value, "vh"):
		if v, ok := numeric("vh"); ok {
			return s.Viewport.H * v / 100, true
		}
	case strings.HasSuffix(value, "rem"):
		if v, ok := numeric("rem"); ok {
			return v * baseFontSize, true
		}
	case strings.HasSuffix(value, "em"):
		if v, ok := numeric("em"); ok {
			return v * baseFontSize, true
		}
	default:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// Replaced and form elements render at a default size even when empty.
func intrinsicHeight(tag string) float64 {
	switch tag {
	case "input", "select", "textarea":
		return 20
	case "iframe", "frame":
		return 150
	}
	return 0
}

func intrinsicWidth(tag string) float64 {
	switch tag {
	case "input", "select":
		return 20
	case "iframe", "frame":
		return 300
	}
	return 0
}

func (e *Element) fontSize() float64 {
	raw := e.Style("font-size", "")
	if raw == "" {
		return baseFontSize
	}
	if strings.HasSuffix(raw, "px") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "px"), 64); err == nil && v > 0 {
			return v
		}
	}
	return baseFontSize
}

func zeroSubtree(e *Element) {
	e.box = Rect{}
	for _, c := range e.Children {
		zeroSubtree(c)
	}
	if e.ShadowRoot != nil {
		zeroSubtree(e.ShadowRoot)
	}
}
