// File: internal/page/page.go

// Package page models a captured HTML document as a styled, geometry-annotated
// element tree. It is the substrate the detection heuristics run against: the
// same tree can be built from a live browser capture or from a static fixture,
// so every heuristic stays testable without a browser attached.
package page

import (
	"errors"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// ErrCrossOrigin is returned when a frame's document cannot be inspected
// because it belongs to a different origin.
var ErrCrossOrigin = errors.New("page: frame content is cross-origin")

// Options controls how a snapshot is built.
type Options struct {
	// URL is the document location, used for frame origin checks.
	URL string
	// ViewportW and ViewportH default to 1280x800 when zero.
	ViewportW float64
	ViewportH float64
}

func (o Options) viewport() Rect {
	w, h := o.ViewportW, o.ViewportH
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 800
	}
	return Rect{W: w, H: h}
}

// Snapshot is an immutable styled view of one document. Build a new snapshot
// after any page mutation; nothing here tracks live DOM changes.
type Snapshot struct {
	Root     *Element
	Body     *Element
	URL      string
	Viewport Rect

	host   *url.URL
	byNode map[*html.Node]*Element
	byID   map[string]*Element
	all    []*Element
}

// Element is one element node with its computed styles and estimated box.
type Element struct {
	Node       *html.Node
	Parent     *Element
	Children   []*Element
	ShadowRoot *Element

	styles     map[Property]Value
	box        Rect
	snap       *Snapshot
	inShadow   bool
	shadowMode ShadowMode

	frameDoc    *Snapshot
	frameErr    error
	frameParsed bool
}

// Parse builds a snapshot from an HTML stream.
func Parse(r io.Reader, opts Options) (*Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return build(doc, opts), nil
}

// ParseString builds a snapshot from HTML source.
func ParseString(src string, opts Options) (*Snapshot, error) {
	return Parse(strings.NewReader(src), opts)
}

// ParseFile builds a snapshot from an HTML file on disk.
func ParseFile(path string, opts Options) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, opts)
}

func build(doc *html.Node, opts Options) *Snapshot {
	s := &Snapshot{
		URL:      opts.URL,
		Viewport: opts.viewport(),
		byNode:   make(map[*html.Node]*Element),
		byID:     make(map[string]*Element),
	}
	if opts.URL != "" {
		if u, err := url.Parse(opts.URL); err == nil {
			s.host = u
		}
	}

	var htmlNode *html.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "html") {
			htmlNode = c
			break
		}
	}
	if htmlNode == nil {
		return s
	}

	sheets := collectSheets(doc)
	s.Root = s.buildElement(htmlNode, nil, sheets, false)

	for _, e := range s.all {
		if e.Tag() == "body" && !e.inShadow {
			s.Body = e
			break
		}
	}

	s.layoutTree()
	return s
}

// buildElement materializes one element, its shadow root if declared, and its
// light children.
func (s *Snapshot) buildElement(n *html.Node, parent *Element, sheets []StyleSheet, inShadow bool) *Element {
	e := &Element{
		Node:     n,
		Parent:   parent,
		snap:     s,
		inShadow: inShadow,
		styles:   computeStyles(n, sheets),
	}
	e.inheritFrom(parent)
	s.byNode[n] = e
	s.all = append(s.all, e)
	if id := attrValue(n, "id"); id != "" {
		if _, taken := s.byID[id]; !taken {
			s.byID[id] = e
		}
	}

	tpl, mode := shadowTemplate(n)
	if tpl != nil {
		shadowSheets := collectSheets(templateContent(tpl))
		root := &Element{
			Node:       tpl,
			Parent:     e,
			snap:       s,
			inShadow:   true,
			shadowMode: mode,
			styles:     map[Property]Value{"display": "block"},
		}
		root.inheritFrom(e)
		s.byNode[tpl] = root
		for c := tpl.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				root.Children = append(root.Children, s.buildElement(c, root, shadowSheets, true))
			}
		}
		e.ShadowRoot = root
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c == tpl || c.Type != html.ElementNode {
			continue
		}
		e.Children = append(e.Children, s.buildElement(c, e, sheets, inShadow))
	}
	return e
}

// inheritFrom copies the inherited properties the heuristics care about from
// the parent when the element does not set them itself.
func (e *Element) inheritFrom(parent *Element) {
	if parent == nil {
		return
	}
	for _, p := range [...]Property{"visibility", "font-size", "color"} {
		if _, ok := e.styles[p]; ok {
			continue
		}
		if v, ok := parent.styles[p]; ok {
			e.styles[p] = v
		}
	}
}

// ElementFor returns the element wrapping the given parse node, or nil.
func (s *Snapshot) ElementFor(n *html.Node) *Element {
	return s.byNode[n]
}

// ByID returns the element with the given id attribute, or nil.
func (s *Snapshot) ByID(id string) *Element { return s.byID[id] }

// Elements returns every element in document order, shadow content included.
func (s *Snapshot) Elements() []*Element { return s.all }

// Walk visits every element depth-first, descending into shadow roots. The
// visitor returning false prunes the subtree.
func (s *Snapshot) Walk(fn func(*Element) bool) {
	if s.Root != nil {
		s.Root.Walk(fn)
	}
}

// Walk visits the element and its subtree, shadow root first.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	if e.ShadowRoot != nil {
		for _, c := range e.ShadowRoot.Children {
			c.Walk(fn)
		}
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// QueryAll returns every descendant (self included) matching any selector in
// the comma-separated list. Shadow roots are pierced; closed mode is not
// honored because a captured document has already serialized its contents.
func (e *Element) QueryAll(selectors string) []*Element {
	list := ParseSelectorList(selectors)
	if len(list) == 0 {
		return nil
	}
	var out []*Element
	e.Walk(func(el *Element) bool {
		for _, sel := range list {
			if nodeMatches(el.Node, sel) {
				out = append(out, el)
				break
			}
		}
		return true
	})
	return out
}

// Query returns the first match of QueryAll, or nil.
func (e *Element) Query(selectors string) *Element {
	matches := e.QueryAll(selectors)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// QueryAll matches against the whole document.
func (s *Snapshot) QueryAll(selectors string) []*Element {
	if s.Root == nil {
		return nil
	}
	return s.Root.QueryAll(selectors)
}

// Query returns the first document-wide match, or nil.
func (s *Snapshot) Query(selectors string) *Element {
	if s.Root == nil {
		return nil
	}
	return s.Root.Query(selectors)
}

// -- Element accessors --

// Tag returns the lowercase tag name.
func (e *Element) Tag() string { return strings.ToLower(e.Node.Data) }

// Attr returns the value of an attribute, empty when absent.
func (e *Element) Attr(name string) string { return attrValue(e.Node, name) }

// HasAttr reports whether the attribute is present at all.
func (e *Element) HasAttr(name string) bool {
	for _, a := range e.Node.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

// ID returns the element's id attribute.
func (e *Element) ID() string { return e.Attr("id") }

// Classes returns the element's class list.
func (e *Element) Classes() []string { return strings.Fields(e.Attr("class")) }

// Box returns the estimated border box.
func (e *Element) Box() Rect { return e.box }

// Document returns the snapshot the element belongs to.
func (e *Element) Document() *Snapshot { return e.snap }

// InShadow reports whether the element lives inside a shadow root.
func (e *Element) InShadow() bool { return e.inShadow }

// IsIframe reports whether the element is a frame host.
func (e *Element) IsIframe() bool {
	t := e.Tag()
	return t == "iframe" || t == "frame"
}

// ownText returns the direct text content, untrimmed.
func (e *Element) ownText() string {
	var b strings.Builder
	for c := e.Node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// fullText returns the subtree's text, shadow content included, with script
// and style text excluded.
func (e *Element) fullText() string {
	var b strings.Builder
	var walk func(el *Element)
	walk = func(el *Element) {
		switch el.Tag() {
		case "script", "style", "noscript":
			return
		}
		for c := el.Node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
				b.WriteByte(' ')
			}
		}
		if el.ShadowRoot != nil {
			for _, sc := range el.ShadowRoot.Children {
				walk(sc)
			}
		}
		for _, ch := range el.Children {
			walk(ch)
		}
	}
	walk(e)
	return b.String()
}

// Text returns the subtree's text with whitespace collapsed.
func (e *Element) Text() string {
	return strings.Join(strings.Fields(e.fullText()), " ")
}

// AccessibleText returns the element's accessible name: aria-label, then
// aria-labelledby resolution, then the title or value attributes, then the
// visible text.
func (e *Element) AccessibleText() string {
	if label := strings.TrimSpace(e.Attr("aria-label")); label != "" {
		return label
	}
	if ids := strings.Fields(e.Attr("aria-labelledby")); len(ids) > 0 && e.snap != nil {
		var parts []string
		for _, id := range ids {
			if ref := e.snap.ByID(id); ref != nil {
				if t := ref.Text(); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if title := strings.TrimSpace(e.Attr("title")); title != "" {
		return title
	}
	if value := strings.TrimSpace(e.Attr("value")); value != "" {
		return value
	}
	return e.Text()
}

// FrameDocument returns the parsed document of a frame element. Inline srcdoc
// frames parse directly. Same-origin src frames return (nil, nil) because a
// static capture carries no frame body. Cross-origin frames return
// ErrCrossOrigin.
func (e *Element) FrameDocument() (*Snapshot, error) {
	if !e.IsIframe() {
		return nil, nil
	}
	if e.frameParsed {
		return e.frameDoc, e.frameErr
	}
	e.frameParsed = true

	if srcdoc := e.Attr("srcdoc"); srcdoc != "" {
		box := e.Box()
		sub, err := ParseString(srcdoc, Options{
			URL:       e.snapURL(),
			ViewportW: box.W,
			ViewportH: box.H,
		})
		e.frameDoc, e.frameErr = sub, err
		return sub, err
	}

	src := strings.TrimSpace(e.Attr("src"))
	if src == "" || strings.HasPrefix(src, "about:") {
		return nil, nil
	}
	if e.snap != nil && e.snap.host != nil {
		if ref, err := url.Parse(src); err == nil {
			abs := e.snap.host.ResolveReference(ref)
			if abs.Host != "" && !strings.EqualFold(abs.Host, e.snap.host.Host) {
				e.frameErr = ErrCrossOrigin
				return nil, ErrCrossOrigin
			}
		}
	}
	return nil, nil
}

// SetFrameContent attaches a captured frame body to a frame element. Live
// capture uses this to inline same-origin subdocuments that a static parse
// cannot fetch. The body is parsed against the frame's own box as viewport.
func (e *Element) SetFrameContent(src string) error {
	box := e.Box()
	sub, err := ParseString(src, Options{
		URL:       e.snapURL(),
		ViewportW: box.W,
		ViewportH: box.H,
	})
	e.frameParsed = true
	e.frameDoc, e.frameErr = sub, err
	return err
}

func (e *Element) snapURL() string {
	if e.snap == nil {
		return ""
	}
	return e.snap.URL
}
