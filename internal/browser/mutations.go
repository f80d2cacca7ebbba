// File: internal/browser/mutations.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// WatchMutations registers a listener that invokes bump whenever the DOM
// changes or the frame navigates. The CDP DOM domain only streams node
// events for documents it has walked, so the full tree is requested up
// front and again after every document swap.
func (s *Session) WatchMutations(bump func()) error {
	if err := s.requestDocument(s.ctx); err != nil {
		return fmt.Errorf("browser: subscribing to DOM events: %w", err)
	}

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev.(type) {
		case *dom.EventDocumentUpdated:
			// The old node table is gone; re-walk so events keep flowing.
			// Listener callbacks must not block, hence the goroutine.
			go func() {
				if err := s.requestDocument(s.ctx); err != nil && s.ctx.Err() == nil {
					s.log.Debug("DOM re-walk after document swap failed.", zap.Error(err))
				}
			}()
			bump()
		case *dom.EventChildNodeInserted,
			*dom.EventChildNodeRemoved,
			*dom.EventChildNodeCountUpdated,
			*dom.EventAttributeModified,
			*dom.EventAttributeRemoved,
			*dom.EventCharacterDataModified,
			*cdppage.EventFrameNavigated:
			bump()
		}
	})
	return nil
}

func (s *Session) requestDocument(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		_, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(c)
		return err
	}))
}
