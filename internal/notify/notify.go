// File: internal/notify/notify.go

// Package notify carries the outbound event surface: banner sightings and
// actuations reported to whoever listens. Delivery is best-effort and
// fire-and-forget; a failing sink never aborts detection or actuation.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BannerObserved reports one detection verdict.
type BannerObserved struct {
	ID         uuid.UUID `json:"id"`
	Time       time.Time `json:"time"`
	URL        string    `json:"url,omitempty"`
	Method     string    `json:"method"`
	CMPName    string    `json:"cmpName,omitempty"`
	Confidence float64   `json:"confidence"`
}

// BannerActuated reports one successful click.
type BannerActuated struct {
	ID       uuid.UUID `json:"id"`
	Time     time.Time `json:"time"`
	URL      string    `json:"url,omitempty"`
	Polarity string    `json:"polarity"`
	// Fallback marks a deny request that was served by the accept control.
	Fallback bool `json:"fallback,omitempty"`
}

// Notifier receives events. Implementations must be non-blocking enough to
// sit on the actuation path and must swallow their own delivery failures.
type Notifier interface {
	BannerObserved(ctx context.Context, ev BannerObserved)
	BannerActuated(ctx context.Context, ev BannerActuated)
}

// Multi fans events out to several sinks.
type Multi []Notifier

func (m Multi) BannerObserved(ctx context.Context, ev BannerObserved) {
	for _, n := range m {
		n.BannerObserved(ctx, ev)
	}
}

func (m Multi) BannerActuated(ctx context.Context, ev BannerActuated) {
	for _, n := range m {
		n.BannerActuated(ctx, ev)
	}
}

// Logger writes events to the structured log.
type Logger struct {
	log *zap.Logger
}

// NewLogger wraps a zap logger as a notification sink.
func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("events")}
}

func (l *Logger) BannerObserved(_ context.Context, ev BannerObserved) {
	l.log.Info("Banner observed.",
		zap.String("event_id", ev.ID.String()),
		zap.String("url", ev.URL),
		zap.String("method", ev.Method),
		zap.String("cmp", ev.CMPName),
		zap.Float64("confidence", ev.Confidence),
	)
}

func (l *Logger) BannerActuated(_ context.Context, ev BannerActuated) {
	l.log.Info("Banner actuated.",
		zap.String("event_id", ev.ID.String()),
		zap.String("url", ev.URL),
		zap.String("polarity", ev.Polarity),
		zap.Bool("fallback", ev.Fallback),
	)
}

// Nop discards everything.
type Nop struct{}

func (Nop) BannerObserved(context.Context, BannerObserved) {}
func (Nop) BannerActuated(context.Context, BannerActuated) {}
