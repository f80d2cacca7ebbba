// File: internal/browser/snapshot.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/page"
)

// captureScript serializes the rendered document in one evaluation round
// trip. getHTML keeps declarative shadow roots in the markup when the target
// supports it; external stylesheet text and same-origin frame bodies come
// back alongside because neither survives outerHTML.
const captureScript = `(() => {
	const serialize = () => {
		const root = document.documentElement;
		if (!root) { return ''; }
		if (root.getHTML) {
			try { return root.getHTML({serializableShadowRoots: true}); } catch (e) {}
		}
		return root.outerHTML;
	};
	const sheets = [];
	for (const sheet of document.styleSheets) {
		if (!sheet.href) { continue; }
		try {
			let text = '';
			for (const rule of sheet.cssRules) { text += rule.cssText + '\n'; }
			if (text) { sheets.push(text); }
		} catch (e) { /* cross-origin stylesheet */ }
	}
	const frames = [];
	const nodes = document.querySelectorAll('iframe');
	for (let i = 0; i < nodes.length; i++) {
		try {
			const doc = nodes[i].contentDocument;
			if (doc && doc.documentElement) {
				frames.push({index: i, html: doc.documentElement.outerHTML});
			}
		} catch (e) { /* cross-origin frame */ }
	}
	return {url: document.location.href, html: serialize(), sheets: sheets, frames: frames};
})()`

type capturedFrame struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

type capturedPage struct {
	URL    string          `json:"url"`
	HTML   string          `json:"html"`
	Sheets []string        `json:"sheets"`
	Frames []capturedFrame `json:"frames"`
}

// Snapshot captures the rendered document into the static page model. The
// detector consumes this method as its snapshot source.
func (s *Session) Snapshot(ctx context.Context) (*page.Snapshot, error) {
	var doc capturedPage
	if err := s.run(ctx, chromedp.Evaluate(captureScript, &doc)); err != nil {
		return nil, fmt.Errorf("browser: capturing document: %w", err)
	}
	if doc.HTML == "" {
		return nil, fmt.Errorf("browser: capture produced an empty document")
	}

	width, height := s.cfg.ViewportWidth, s.cfg.ViewportHeight
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 800
	}

	snap, err := page.ParseString(injectSheets(doc.HTML, doc.Sheets), page.Options{
		URL:       doc.URL,
		ViewportW: float64(width),
		ViewportH: float64(height),
	})
	if err != nil {
		return nil, fmt.Errorf("browser: parsing captured document: %w", err)
	}
	attachFrames(snap, doc.Frames, s.log)
	return snap, nil
}

// injectSheets splices external stylesheet text back into the document so
// the cascade sees it the way the renderer did.
func injectSheets(src string, sheets []string) string {
	if len(sheets) == 0 {
		return src
	}
	var b strings.Builder
	for _, css := range sheets {
		if strings.TrimSpace(css) == "" {
			continue
		}
		b.WriteString("<style>")
		b.WriteString(css)
		b.WriteString("</style>")
	}
	if b.Len() == 0 {
		return src
	}
	if i := strings.Index(strings.ToLower(src), "</head>"); i >= 0 {
		return src[:i] + b.String() + src[i:]
	}
	return b.String() + src
}

// attachFrames pairs captured frame bodies with iframe elements by document
// order. Shadow-hosted iframes never appear in the capture list, so only
// light-tree frames participate on both sides.
func attachFrames(snap *page.Snapshot, frames []capturedFrame, log *zap.Logger) {
	if len(frames) == 0 {
		return
	}
	var hosts []*page.Element
	for _, e := range snap.Elements() {
		if e.Tag() == "iframe" && !e.InShadow() {
			hosts = append(hosts, e)
		}
	}
	for _, f := range frames {
		if f.HTML == "" || f.Index < 0 || f.Index >= len(hosts) {
			continue
		}
		host := hosts[f.Index]
		if host.Attr("srcdoc") != "" {
			continue
		}
		if err := host.SetFrameContent(f.HTML); err != nil {
			log.Debug("Captured frame body failed to parse.",
				zap.Int("frame_index", f.Index), zap.Error(err))
		}
	}
}
