// File: internal/page/shadow.go
package page

import (
	"strings"

	"golang.org/x/net/html"
)

// ShadowMode is the declared mode of a shadow root.
type ShadowMode string

const (
	ShadowOpen   ShadowMode = "open"
	ShadowClosed ShadowMode = "closed"
)

// shadowTemplate returns the declarative shadow root template of a host
// element, or nil. Serialized DOM carries shadow roots as
// <template shadowrootmode="open|closed"> children; older captures use the
// shadowroot attribute.
func shadowTemplate(node *html.Node) (*html.Node, ShadowMode) {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !strings.EqualFold(c.Data, "template") {
			continue
		}
		mode := attrValue(c, "shadowrootmode")
		if mode == "" {
			mode = attrValue(c, "shadowroot")
		}
		switch strings.ToLower(strings.TrimSpace(mode)) {
		case "open":
			return c, ShadowOpen
		case "closed":
			return c, ShadowClosed
		}
	}
	return nil, ""
}

// templateContent returns the node whose children are the template's parsed
// content. x/net/html parses template contents into the template node itself.
func templateContent(tpl *html.Node) *html.Node {
	return tpl
}

// collectSheets parses every <style> element in the subtree rooted at node
// into stylesheets, skipping nested shadow templates so each root keeps its
// own scope.
func collectSheets(node *html.Node) []StyleSheet {
	var sheets []StyleSheet
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if strings.EqualFold(n.Data, "style") {
				var css strings.Builder
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						css.WriteString(c.Data)
					}
				}
				if sheet := ParseStyleSheet(css.String()); len(sheet.Rules) > 0 {
					sheets = append(sheets, sheet)
				}
				return
			}
			if tpl, _ := shadowTemplate(n); tpl != nil {
				// Children of this host still cascade with the outer scope,
				// but the template's own styles belong to the shadow root.
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c != tpl {
						walk(c)
					}
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return sheets
}
