// File: internal/monitor/monitor.go

// Package monitor schedules detection rescans off page-mutation signals. A
// single pending timer coalesces mutation bursts; only the most recent
// scheduling request survives, and a limiter bounds how often bursts can
// translate into full detection passes.
package monitor

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/consentry/internal/config"
)

// Monitor owns the debounce timer. The rescan callback runs on the timer
// goroutine and is expected to tolerate a busy detector by simply dropping
// the request.
type Monitor struct {
	debounce time.Duration
	limiter  *rate.Limiter
	rescan   func()
	log      *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New builds a monitor around the rescan callback.
func New(cfg config.MonitorConfig, rescan func(), log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 400 * time.Millisecond
	}
	perMinute := cfg.MaxRescansPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Monitor{
		debounce: debounce,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		rescan:   rescan,
		log:      log.Named("monitor"),
	}
}

// Bump records a mutation signal. It resets the pending timer, so a stream
// of mutations produces exactly one rescan, one debounce interval after the
// stream quiets down.
func (m *Monitor) Bump() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if m.timer == nil {
		m.timer = time.AfterFunc(m.debounce, m.fire)
		return
	}
	m.timer.Reset(m.debounce)
}

func (m *Monitor) fire() {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	if !m.limiter.Allow() {
		m.log.Debug("Rescan suppressed by rate limit.")
		return
	}
	m.rescan()
}

// Stop cancels any pending rescan. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
}
