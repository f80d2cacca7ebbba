// File: internal/browser/session.go

// Package browser drives a live Chrome target through chromedp. It is the
// second substrate behind the detection core: it captures the rendered
// document into the static page model, forwards DOM mutation signals to the
// rescan scheduler, and replays pointer input during actuation.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/config"
)

// Session owns one Chrome target and its allocator. All operations run
// against the tab context so the CDP connection values survive; callers pass
// their own context to bound individual operations.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	cfg config.BrowserConfig
	log *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

// NewSession launches Chrome and connects a fresh tab. The returned session
// must be closed by the caller.
func NewSession(ctx context.Context, cfg config.BrowserConfig, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 800
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(width, height),
		// Stability flags for containerized runs.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	for _, arg := range cfg.Args {
		name, value, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if value == "" {
			opts = append(opts, chromedp.Flag(name, true))
		} else {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         tabCtx,
		cancel:      tabCancel,
		cfg:         cfg,
		log:         log.Named("browser"),
	}

	// Establish the target and enable the event domains the session listens
	// on. This is also where a missing Chrome binary surfaces.
	if err := chromedp.Run(tabCtx, network.Enable(), dom.Enable()); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: starting chrome: %w", err)
	}

	s.log.Debug("Chrome session established.",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", width),
		zap.Int("viewport_height", height))
	return s, nil
}

// Context returns the tab context, mainly for registering event listeners.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Navigate loads the URL and waits for the body to be ready. The navigation
// timeout from config bounds the load itself, not the caller's context.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	s.log.Debug("Navigating.", zap.String("url", url))
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("browser: navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("browser: navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("browser: navigating to %q: %w", url, err)
	}

	if err := chromedp.Run(opCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		// Not fatal; some pages never settle. Capture works regardless.
		s.log.Debug("WaitReady failed after navigation.", zap.Error(err))
	}
	return nil
}

// Location reports the tab's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()

	var url string
	if err := chromedp.Run(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("browser: reading location: %w", err)
	}
	return url, nil
}

// Close tears the tab and the allocator down. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return
	}
	s.isClosed = true
	s.log.Debug("Closing browser session.")
	s.cancel()
	s.allocCancel()
}

// run executes chromedp actions respecting both the session lifetime and the
// caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()
	return chromedp.Run(opCtx, actions...)
}

// combineContext derives a context from primary that is canceled when either
// input is. The primary carries the CDP connection values, the secondary the
// operational deadline.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
