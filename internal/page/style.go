// File: internal/page/style.go
package page

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// PositionType is the computed position scheme of an element.
type PositionType int

const (
	PositionStatic PositionType = iota
	PositionRelative
	PositionAbsolute
	PositionFixed
	PositionSticky
)

func (p PositionType) String() string {
	switch p {
	case PositionRelative:
		return "relative"
	case PositionAbsolute:
		return "absolute"
	case PositionFixed:
		return "fixed"
	case PositionSticky:
		return "sticky"
	default:
		return "static"
	}
}

type styleOrigin int

const (
	originUserAgent styleOrigin = iota
	originAuthor
	originInline
)

type weightedDecl struct {
	decl        Declaration
	origin      styleOrigin
	specificity [3]int
	order       int
}

// computeStyles runs the cascade for one element node against the scoped
// stylesheets plus its inline style attribute.
func computeStyles(node *html.Node, sheets []StyleSheet) map[Property]Value {
	var decls []weightedDecl
	order := 0

	for _, sheet := range sheets {
		for _, rule := range sheet.Rules {
			for _, sel := range rule.Selectors {
				if !nodeMatches(node, sel) {
					continue
				}
				a, b, c := sel.Specificity()
				for _, d := range rule.Declarations {
					decls = append(decls, weightedDecl{
						decl:        d,
						origin:      originAuthor,
						specificity: [3]int{a, b, c},
						order:       order,
					})
					order++
				}
				break
			}
		}
	}

	if inline := attrValue(node, "style"); inline != "" {
		for _, d := range parseInlineStyle(inline) {
			decls = append(decls, weightedDecl{
				decl:        d,
				origin:      originInline,
				specificity: [3]int{1, 0, 0},
				order:       order,
			})
			order++
		}
	}

	sort.Slice(decls, func(i, j int) bool {
		di, dj := decls[i], decls[j]
		pi, pj := cascadePriority(di), cascadePriority(dj)
		if pi != pj {
			return pi < pj
		}
		for k := 0; k < 3; k++ {
			if di.specificity[k] != dj.specificity[k] {
				return di.specificity[k] < dj.specificity[k]
			}
		}
		return di.order < dj.order
	})

	styles := make(map[Property]Value, len(decls))
	for _, wd := range decls {
		styles[wd.decl.Property] = wd.decl.Value
	}
	return styles
}

func cascadePriority(wd weightedDecl) int {
	if wd.decl.Important {
		// Inline !important and author !important share a tier; source
		// order decides, which is close enough for detection purposes.
		return 3
	}
	if wd.origin == originInline {
		return 2
	}
	return 1
}

// -- Selector matching over the html.Node tree --

func nodeMatches(node *html.Node, sel Selector) bool {
	last := len(sel.Compounds) - 1
	if last < 0 {
		return false
	}
	return matchFrom(node, sel, last)
}

func matchFrom(node *html.Node, sel Selector, idx int) bool {
	if node == nil || node.Type != html.ElementNode || idx < 0 {
		return false
	}
	compound := sel.Compounds[idx]
	if !matchSimple(node, compound.Simple) {
		return false
	}
	if idx == 0 {
		return true
	}
	switch compound.Combinator {
	case CombinatorDescendant:
		for p := node.Parent; p != nil; p = p.Parent {
			if matchFrom(p, sel, idx-1) {
				return true
			}
		}
		return false
	case CombinatorChild:
		return matchFrom(node.Parent, sel, idx-1)
	case CombinatorAdjacentSibling:
		return matchFrom(prevElementSibling(node), sel, idx-1)
	case CombinatorGeneralSibling:
		for s := prevElementSibling(node); s != nil; s = prevElementSibling(s) {
			if matchFrom(s, sel, idx-1) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func matchSimple(node *html.Node, s SimpleSelector) bool {
	if s.Tag != "" && s.Tag != "*" && strings.ToLower(node.Data) != s.Tag {
		return false
	}
	if s.ID != "" && attrValue(node, "id") != s.ID {
		return false
	}
	if len(s.Classes) > 0 {
		classes := strings.Fields(attrValue(node, "class"))
		for _, want := range s.Classes {
			found := false
			for _, have := range classes {
				if have == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, attr := range s.Attributes {
		if !matchAttribute(node, attr) {
			return false
		}
	}
	return true
}

func matchAttribute(node *html.Node, sel AttributeSelector) bool {
	var actual string
	found := false
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, sel.Name) {
			actual = a.Val
			found = true
			break
		}
	}

	switch sel.Operator {
	case "":
		return found
	case "=":
		return found && actual == sel.Value
	case "~=":
		if !found {
			return false
		}
		for _, w := range strings.Fields(actual) {
			if w == sel.Value {
				return true
			}
		}
		return false
	case "|=":
		return found && (actual == sel.Value || strings.HasPrefix(actual, sel.Value+"-"))
	case "^=":
		return found && sel.Value != "" && strings.HasPrefix(actual, sel.Value)
	case "$=":
		return found && sel.Value != "" && strings.HasSuffix(actual, sel.Value)
	case "*=":
		return found && sel.Value != "" && strings.Contains(actual, sel.Value)
	default:
		return false
	}
}

func prevElementSibling(node *html.Node) *html.Node {
	for s := node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func attrValue(node *html.Node, name string) string {
	if node == nil {
		return ""
	}
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// -- Computed style accessors --

// Style returns the computed value for a property, or fallback when unset.
func (e *Element) Style(property, fallback string) string {
	if v, ok := e.styles[Property(property)]; ok {
		return string(v)
	}
	return fallback
}

// Display returns the normalized computed display value.
func (e *Element) Display() string {
	if v, ok := e.styles["display"]; ok {
		return strings.ToLower(strings.TrimSpace(string(v)))
	}
	return defaultDisplay(e.Tag())
}

// Position returns the computed position scheme.
func (e *Element) Position() PositionType {
	switch e.Style("position", "static") {
	case "relative":
		return PositionRelative
	case "absolute":
		return PositionAbsolute
	case "fixed":
		return PositionFixed
	case "sticky", "-webkit-sticky":
		return PositionSticky
	default:
		return PositionStatic
	}
}

// ZIndex returns the computed z-index and whether it is a number (false for
// "auto" or garbage, which the stacking heuristics treat as 0).
func (e *Element) ZIndex() (int, bool) {
	raw := strings.TrimSpace(e.Style("z-index", "auto"))
	if raw == "" || raw == "auto" {
		return 0, false
	}
	z, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return z, true
}

// Opacity returns the computed opacity, clamped to [0, 1].
func (e *Element) Opacity() float64 {
	raw := strings.TrimSpace(e.Style("opacity", "1"))
	if strings.HasSuffix(raw, "%") {
		if pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64); err == nil {
			return clamp(pct/100, 0, 1)
		}
		return 1
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1
	}
	return clamp(v, 0, 1)
}

// Hidden reports whether the element's own computed styles hide it:
// display none, visibility hidden or collapse, or opacity exactly zero.
// Ancestor and box checks live with the caller.
func (e *Element) Hidden() bool {
	if e.Display() == "none" {
		return true
	}
	switch e.Style("visibility", "visible") {
	case "hidden", "collapse":
		return true
	}
	return e.Opacity() == 0
}

// BackgroundAlpha returns the alpha channel of the computed background color
// and whether a color was parsed at all.
func (e *Element) BackgroundAlpha() (float64, bool) {
	raw := strings.ToLower(strings.TrimSpace(e.Style("background-color", e.Style("background", ""))))
	if raw == "" {
		return 0, false
	}
	if raw == "transparent" {
		return 0, true
	}
	if strings.HasPrefix(raw, "rgba(") || strings.HasPrefix(raw, "hsla(") {
		inner := strings.TrimSuffix(raw[5:], ")")
		parts := strings.FieldsFunc(inner, func(r rune) bool {
			return r == ',' || r == ' ' || r == '/'
		})
		if len(parts) >= 4 {
			last := parts[len(parts)-1]
			if strings.HasSuffix(last, "%") {
				if pct, err := strconv.ParseFloat(strings.TrimSuffix(last, "%"), 64); err == nil {
					return clamp(pct/100, 0, 1), true
				}
			}
			if a, err := strconv.ParseFloat(last, 64); err == nil {
				return clamp(a, 0, 1), true
			}
		}
		return 1, true
	}
	if strings.HasPrefix(raw, "#") {
		hex := raw[1:]
		switch len(hex) {
		case 4:
			if v, err := strconv.ParseUint(hex[3:4], 16, 8); err == nil {
				return float64(v*17) / 255, true
			}
		case 8:
			if v, err := strconv.ParseUint(hex[6:8], 16, 8); err == nil {
				return float64(v) / 255, true
			}
		}
		return 1, true
	}
	// Named colors and rgb() are fully opaque.
	return 1, true
}

func defaultDisplay(tag string) string {
	switch tag {
	case "html", "body", "div", "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "form", "header", "footer", "section", "article",
		"nav", "main", "aside", "dialog", "table", "fieldset", "figure",
		"address", "blockquote", "pre", "hr":
		return "block"
	case "input", "button", "textarea", "select", "img", "iframe":
		return "inline-block"
	case "script", "style", "template", "noscript", "head", "meta", "link", "title":
		return "none"
	default:
		return "inline"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
