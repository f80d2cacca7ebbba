// File: internal/detect/detector.go
package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

// SnapshotFunc produces the current page snapshot for one detection cycle.
// The live substrate captures the browser document; tests and file mode
// return a parsed fixture.
type SnapshotFunc func(ctx context.Context) (*page.Snapshot, error)

// Detector is the aggregator: it owns the classifier registry, the one-slot
// verdict cache, and the in-flight guard. Exactly one instance exists per
// page context.
type Detector struct {
	classifiers []Classifier
	snapshot    SnapshotFunc
	freshness   time.Duration
	debug       bool
	log         *zap.Logger

	mu        sync.Mutex
	inFlight  bool
	cached    *Result
	cachedAt  time.Time
	haveCache bool
}

// New builds a detector with the standard classifier registry over the given
// pattern database.
func New(snapshot SnapshotFunc, db *patterns.Database, cfg config.DetectorConfig, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	freshness := cfg.Freshness
	if freshness <= 0 {
		freshness = 2 * time.Second
	}
	return &Detector{
		classifiers: []Classifier{
			knownCMPClassifier{db: db},
			ariaClassifier{db: db},
			keywordClassifier{db: db},
			cssPatternClassifier{db: db},
			backdropClassifier{db: db},
			genericClassifier{db: db},
			shadowDOMClassifier{db: db},
		},
		snapshot:  snapshot,
		freshness: freshness,
		debug:     cfg.Debug,
		log:       log.Named("detector"),
	}
}

// Detect returns the current verdict: the cached one while it is fresh,
// otherwise a freshly computed reduction over all classifiers. A nil result
// with a nil error means no banner; that outcome is cached too. A call
// arriving while a cycle is in flight returns ErrBusy; the caller drops the
// request rather than queueing it.
func (d *Detector) Detect(ctx context.Context) (*Result, error) {
	d.mu.Lock()
	if d.haveCache && time.Since(d.cachedAt) < d.freshness {
		res := d.cached
		d.mu.Unlock()
		return res, nil
	}
	if d.inFlight {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.inFlight = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect: capturing snapshot: %w", err)
	}

	best := d.runClassifiers(ctx, snap)

	d.mu.Lock()
	d.cached = best
	d.cachedAt = time.Now()
	d.haveCache = true
	d.mu.Unlock()
	return best, nil
}

// runClassifiers fans the registry out over one immutable snapshot and
// reduces the non-nil results to the highest confidence, ties broken by
// method priority. Every classifier is side-effect-free, so they run
// concurrently; a failure or panic in one never suppresses the others.
func (d *Detector) runClassifiers(ctx context.Context, snap *page.Snapshot) *Result {
	results := make([]*Result, len(d.classifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range d.classifiers {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.log.Debug("Classifier panicked; verdict discarded.",
						zap.String("method", string(c.Method())),
						zap.Any("panic", r))
				}
			}()
			res, err := c.Classify(gctx, snap)
			if err != nil {
				d.log.Debug("Classifier failed; verdict discarded.",
					zap.String("method", string(c.Method())),
					zap.Error(err))
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	d.mu.Lock()
	debug := d.debug
	d.mu.Unlock()

	var best *Result
	for i, res := range results {
		if debug {
			d.logVerdict(d.classifiers[i].Method(), res)
		}
		if res != nil && res.outranks(best) {
			best = res
		}
	}
	return best
}

func (d *Detector) logVerdict(m Method, res *Result) {
	if res == nil {
		d.log.Debug("Classifier verdict.", zap.String("method", string(m)), zap.Bool("hit", false))
		return
	}
	d.log.Debug("Classifier verdict.",
		zap.String("method", string(m)),
		zap.Bool("hit", true),
		zap.Float64("confidence", res.Confidence),
		zap.String("cmp", res.CMPName),
	)
}

// SetDebug toggles per-classifier verdict logging at runtime. The control
// surface flips this on a running session.
func (d *Detector) SetDebug(on bool) {
	d.mu.Lock()
	d.debug = on
	d.mu.Unlock()
}

// ClearCache forces the next Detect to recompute regardless of freshness.
// The actuator calls this after any successful click, since clicking is
// expected to mutate or remove the banner.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	d.haveCache = false
	d.cached = nil
	d.mu.Unlock()
}
