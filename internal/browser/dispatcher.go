// File: internal/browser/dispatcher.go
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/consentry/internal/actuate"
)

// Dispatcher delivers the actuator's pointer sequence to the live target
// through the CDP input domain.
type Dispatcher struct {
	session *Session
}

var _ actuate.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher wires a dispatcher to an open session.
func NewDispatcher(s *Session) *Dispatcher {
	return &Dispatcher{session: s}
}

// DispatchMouseEvent sends one raw pointer event.
func (d *Dispatcher) DispatchMouseEvent(ctx context.Context, ev actuate.MouseEvent) error {
	return d.session.run(ctx, mouseParams(ev))
}

// Sleep pauses between pointer events without blocking the tab.
func (d *Dispatcher) Sleep(ctx context.Context, dur time.Duration) error {
	return d.session.run(ctx, chromedp.Sleep(dur))
}

func mouseParams(ev actuate.MouseEvent) *input.DispatchMouseEventParams {
	p := input.DispatchMouseEvent(input.MouseType(ev.Type), ev.X, ev.Y)
	if ev.Button != "" {
		p = p.WithButton(input.MouseButton(ev.Button))
	}
	if ev.ClickCount > 0 {
		p = p.WithClickCount(int64(ev.ClickCount))
	}
	return p
}
