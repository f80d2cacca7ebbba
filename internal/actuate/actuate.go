// File: internal/actuate/actuate.go

// Package actuate consumes a detection verdict and clicks the banner control
// matching the requested polarity, simulating a realistic pointer sequence.
package actuate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/notify"
	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

var (
	// ErrNoBanner means actuation was requested without a detected banner.
	ErrNoBanner = errors.New("actuate: no banner detected")
	// ErrNoControl means no clickable control matched the requested polarity.
	ErrNoControl = errors.New("actuate: no control found for requested polarity")
)

// MouseEvent is one step of a simulated pointer sequence.
type MouseEvent struct {
	Type       string // mouseMoved, mousePressed, mouseReleased
	X, Y       float64
	Button     string // none, left
	ClickCount int
}

// Dispatcher delivers pointer events to whatever renders the page. The live
// substrate forwards to the devtools input domain; the synthetic recorder
// just captures the sequence.
type Dispatcher interface {
	DispatchMouseEvent(ctx context.Context, ev MouseEvent) error
	Sleep(ctx context.Context, d time.Duration) error
}

// CacheClearer is the slice of the detector the actuator needs: clicking
// mutates the page, so the cached verdict must die with it.
type CacheClearer interface {
	ClearCache()
}

// Outcome describes a completed actuation.
type Outcome struct {
	Polarity patterns.Polarity
	// Fallback is set when a deny request was served by the accept control.
	Fallback bool
	Control  *page.Element
}

// Actuator locates and clicks banner controls.
type Actuator struct {
	db       *patterns.Database
	disp     Dispatcher
	cache    CacheClearer
	notifier notify.Notifier
	cfg      config.ActuatorConfig
	log      *zap.Logger
	rng      *rand.Rand
}

// New builds an actuator. cache and notifier may be nil.
func New(db *patterns.Database, disp Dispatcher, cache CacheClearer, notifier notify.Notifier, cfg config.ActuatorConfig, log *zap.Logger) *Actuator {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Actuator{
		db:       db,
		disp:     disp,
		cache:    cache,
		notifier: notifier,
		cfg:      cfg,
		log:      log.Named("actuator"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Actuate resolves the control for the requested polarity and clicks it.
// A deny request with no reject control falls back to the accept control
// unless strict_reject is configured; the fallback unblocks the page at the
// cost of the stricter preference and is reported as such.
func (a *Actuator) Actuate(ctx context.Context, res *detect.Result, polarity patterns.Polarity) (*Outcome, error) {
	if res == nil || res.Banner == nil {
		return nil, ErrNoBanner
	}

	outcome := &Outcome{Polarity: polarity}
	control := a.findControl(res, polarity)
	if control == nil && polarity == patterns.PolarityReject && !a.cfg.StrictReject {
		control = a.findControl(res, patterns.PolarityAccept)
		outcome.Fallback = control != nil
	}
	if control == nil {
		return nil, ErrNoControl
	}
	outcome.Control = control

	if err := a.click(ctx, control); err != nil {
		return nil, fmt.Errorf("actuate: clicking control: %w", err)
	}

	if a.cache != nil {
		a.cache.ClearCache()
	}
	a.notifier.BannerActuated(ctx, notify.BannerActuated{
		ID:       uuid.New(),
		Time:     time.Now(),
		URL:      res.Banner.Document().URL,
		Polarity: string(polarity),
		Fallback: outcome.Fallback,
	})
	a.log.Debug("Actuated banner control.",
		zap.String("polarity", string(polarity)),
		zap.Bool("fallback", outcome.Fallback),
		zap.String("control", control.Tag()),
	)
	return outcome, nil
}

// findControl tries the verdict's CMP selectors first, scoped to the banner
// and then document-wide, then falls back to label matching across every
// configured language.
func (a *Actuator) findControl(res *detect.Result, polarity patterns.Polarity) *page.Element {
	selectors := res.AcceptSelectors
	if polarity == patterns.PolarityReject {
		selectors = res.RejectSelectors
	}

	for _, sel := range selectors {
		if e := firstRendered(res.Banner.QueryAll(sel)); e != nil {
			return e
		}
	}
	if doc := res.Banner.Document(); doc != nil {
		for _, sel := range selectors {
			if e := firstRendered(doc.QueryAll(sel)); e != nil {
				return e
			}
		}
	}

	scope := res.Banner
	controls := detect.FindControls(scope)
	if len(controls) == 0 {
		if doc := res.Banner.Document(); doc != nil && doc.Root != nil {
			controls = detect.FindControls(doc.Root)
		}
	}
	for _, fragment := range a.db.Fragments(polarity) {
		for _, ctl := range controls {
			if strings.Contains(strings.ToLower(ctl.AccessibleText()), fragment) {
				return ctl
			}
		}
	}
	return nil
}

func firstRendered(matches []*page.Element) *page.Element {
	for _, e := range matches {
		if detect.IsRendered(e) {
			return e
		}
	}
	return nil
}

// click runs the pointer sequence: move to the control's center, press, hold
// for a randomized interval, release.
func (a *Actuator) click(ctx context.Context, control *page.Element) error {
	box := control.Box()
	x := box.X + box.W/2
	y := box.Y + box.H/2

	if err := a.disp.DispatchMouseEvent(ctx, MouseEvent{Type: "mouseMoved", X: x, Y: y, Button: "none"}); err != nil {
		return err
	}
	if err := a.disp.Sleep(ctx, a.holdDuration()/2); err != nil {
		return err
	}
	if err := a.disp.DispatchMouseEvent(ctx, MouseEvent{Type: "mousePressed", X: x, Y: y, Button: "left", ClickCount: 1}); err != nil {
		return err
	}
	if err := a.disp.Sleep(ctx, a.holdDuration()); err != nil {
		return err
	}
	return a.disp.DispatchMouseEvent(ctx, MouseEvent{Type: "mouseReleased", X: x, Y: y, Button: "left", ClickCount: 1})
}

// holdDuration picks a press length inside the configured range so repeated
// clicks do not land with robotic regularity.
func (a *Actuator) holdDuration() time.Duration {
	lo, hi := a.cfg.ClickHoldMinMs, a.cfg.ClickHoldMaxMs
	if lo <= 0 {
		lo = 35
	}
	if hi <= lo {
		hi = lo + 1
	}
	return time.Duration(lo+a.rng.Intn(hi-lo)) * time.Millisecond
}

// Recorder is a synthetic dispatcher for the snapshot substrate and tests:
// it records the event sequence and skips real waits.
type Recorder struct {
	Events []MouseEvent
	Slept  []time.Duration
}

func (r *Recorder) DispatchMouseEvent(_ context.Context, ev MouseEvent) error {
	r.Events = append(r.Events, ev)
	return nil
}

func (r *Recorder) Sleep(_ context.Context, d time.Duration) error {
	r.Slept = append(r.Slept, d)
	return nil
}
