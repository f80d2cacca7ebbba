// File: internal/store/store.go

// Package store persists banner events to Postgres for statistics. It sits
// behind the notification surface, so everything here is best-effort: a dead
// database costs event history, never a detection or a click.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/notify"
)

// DBPool abstracts the pgx pool for mockability in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS banner_events (
	id          UUID PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	method      TEXT NOT NULL DEFAULT '',
	cmp         TEXT NOT NULL DEFAULT '',
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	polarity    TEXT NOT NULL DEFAULT '',
	fallback    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_banner_events_recorded_at ON banner_events (recorded_at);
`

const insertEventSQL = `INSERT INTO banner_events
	(id, recorded_at, url, kind, method, cmp, confidence, polarity, fallback)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// flushThreshold bounds how many events buffer before a batch write.
const flushThreshold = 16

type eventRow struct {
	id         uuid.UUID
	recordedAt time.Time
	url        string
	kind       string
	method     string
	cmp        string
	confidence float64
	polarity   string
	fallback   bool
}

// Store buffers banner events and writes them in batches. It implements
// notify.Notifier.
type Store struct {
	pool DBPool
	log  *zap.Logger

	mu      sync.Mutex
	pending []eventRow
}

// New wraps an existing pool.
func New(pool DBPool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log.Named("store")}
}

// Connect opens a pool against the configured DSN and verifies the schema.
func Connect(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: connecting to %q: %w", cfg.URL, err)
	}
	s := New(pool, log)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the event table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: ensuring schema: %w", err)
	}
	return nil
}

// BannerObserved buffers a detection event.
func (s *Store) BannerObserved(ctx context.Context, ev notify.BannerObserved) {
	s.enqueue(ctx, eventRow{
		id:         ev.ID,
		recordedAt: ev.Time,
		url:        ev.URL,
		kind:       "observed",
		method:     ev.Method,
		cmp:        ev.CMPName,
		confidence: ev.Confidence,
	})
}

// BannerActuated buffers an actuation event.
func (s *Store) BannerActuated(ctx context.Context, ev notify.BannerActuated) {
	s.enqueue(ctx, eventRow{
		id:         ev.ID,
		recordedAt: ev.Time,
		url:        ev.URL,
		kind:       "actuated",
		polarity:   ev.Polarity,
		fallback:   ev.Fallback,
	})
}

func (s *Store) enqueue(ctx context.Context, row eventRow) {
	if row.id == uuid.Nil {
		row.id = uuid.New()
	}
	if row.recordedAt.IsZero() {
		row.recordedAt = time.Now()
	}
	s.mu.Lock()
	s.pending = append(s.pending, row)
	full := len(s.pending) >= flushThreshold
	s.mu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			s.log.Warn("Event flush failed; events dropped.", zap.Error(err))
		}
	}
}

// Flush writes all buffered events in one batch.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range pending {
		batch.Queue(insertEventSQL,
			row.id, row.recordedAt, row.url, row.kind,
			row.method, row.cmp, row.confidence, row.polarity, row.fallback)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range pending {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: batch insert: %w", err)
		}
	}
	return nil
}

// Close flushes whatever is buffered and releases the pool.
func (s *Store) Close(ctx context.Context) {
	if err := s.Flush(ctx); err != nil {
		s.log.Warn("Final event flush failed.", zap.Error(err))
	}
	s.pool.Close()
}
