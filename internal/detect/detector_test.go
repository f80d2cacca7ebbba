// File: internal/detect/detector_test.go
package detect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

func countingSnapshot(t *testing.T, src string) (SnapshotFunc, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	return func(ctx context.Context) (*page.Snapshot, error) {
		calls.Add(1)
		return page.ParseString(src, page.Options{
			URL:       "https://site.example/",
			ViewportW: 1280,
			ViewportH: 800,
		})
	}, &calls
}

func newTestDetector(t *testing.T, src string, cfg config.DetectorConfig) (*Detector, *atomic.Int32) {
	t.Helper()
	snapFn, calls := countingSnapshot(t, src)
	return New(snapFn, patterns.Default(), cfg, zaptest.NewLogger(t)), calls
}

func TestDetectKnownCMP(t *testing.T) {
	det, _ := newTestDetector(t, oneTrustFixture, config.DetectorConfig{Freshness: time.Second})

	res, err := det.Detect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodKnownCMP, res.Method)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, "onetrust", res.CMPName)
}

func TestDetectGenericFooterBanner(t *testing.T) {
	det, _ := newTestDetector(t, `<html><body>
		<div id="footer-consent" style="position:fixed;bottom:0;left:0;width:100%;height:90px;z-index:9999">
			<p>We use cookies to improve your experience. Accept | Decline</p>
			<button>Accept</button><button>Decline</button>
		</div>
	</body></html>`, config.DetectorConfig{Freshness: time.Second})

	res, err := det.Detect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.GreaterOrEqual(t, res.Confidence, 0.7)
	assert.Equal(t, "footer-consent", res.Banner.ID())
}

func TestDetectNothingOnCleanPage(t *testing.T) {
	det, calls := newTestDetector(t, `<html><body>
		<nav><a href="/">Home</a></nav>
		<main><h1>Weather report</h1><p>Sunny all week.</p></main>
	</body></html>`, config.DetectorConfig{Freshness: time.Minute})

	res, err := det.Detect(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)

	// The null verdict is cached like any other.
	res, err = det.Detect(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDetectIdempotentWithinFreshness(t *testing.T) {
	det, calls := newTestDetector(t, oneTrustFixture, config.DetectorConfig{Freshness: time.Minute})

	first, err := det.Detect(context.Background())
	require.NoError(t, err)
	second, err := det.Detect(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second, "a fresh cache hit returns the identical result, not an equivalent")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDetectRecomputesAfterFreshnessWindow(t *testing.T) {
	det, calls := newTestDetector(t, oneTrustFixture, config.DetectorConfig{Freshness: 20 * time.Millisecond})

	_, err := det.Detect(context.Background())
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = det.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestClearCacheForcesRecompute(t *testing.T) {
	det, calls := newTestDetector(t, oneTrustFixture, config.DetectorConfig{Freshness: time.Minute})

	_, err := det.Detect(context.Background())
	require.NoError(t, err)
	det.ClearCache()
	_, err = det.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestDetectDropsOverlappingRequests(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	snapFn := func(ctx context.Context) (*page.Snapshot, error) {
		close(started)
		<-release
		return page.ParseString(oneTrustFixture, page.Options{ViewportW: 1280, ViewportH: 800})
	}
	det := New(snapFn, patterns.Default(), config.DetectorConfig{Freshness: time.Minute}, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() {
		_, err := det.Detect(context.Background())
		done <- err
	}()
	<-started

	_, err := det.Detect(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestDetectPriorityLaw(t *testing.T) {
	// Both a database fingerprint and a keyword-rich generic overlay exist;
	// the database hit must win regardless of what the others score.
	det, _ := newTestDetector(t, `<html><body>
		<div id="onetrust-banner-sdk" style="position:fixed;bottom:0;left:0;width:100%;height:120px;z-index:2000">
			<p>We use cookies with your consent under gdpr for privacy and tracking.</p>
			<button id="onetrust-accept-btn-handler">Accept All</button>
			<button>Decline</button>
		</div>
	</body></html>`, config.DetectorConfig{Freshness: time.Second})

	res, err := det.Detect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, MethodKnownCMP, res.Method)
}

func TestResultTieBreakByPriority(t *testing.T) {
	order := []Method{
		MethodKnownCMP, MethodARIA, MethodBackdrop, MethodShadowDOM,
		MethodKeyword, MethodGeneric, MethodCSSPattern,
	}
	for i := 1; i < len(order); i++ {
		stronger := &Result{Method: order[i-1], Confidence: 0.8}
		weaker := &Result{Method: order[i], Confidence: 0.8}
		assert.True(t, stronger.outranks(weaker), "%s must outrank %s on equal confidence", order[i-1], order[i])
		assert.False(t, weaker.outranks(stronger))
	}

	higher := &Result{Method: MethodCSSPattern, Confidence: 0.9}
	lower := &Result{Method: MethodKnownCMP, Confidence: 0.8}
	assert.True(t, higher.outranks(lower), "confidence beats priority when unequal")
}

func TestDetectSnapshotFailure(t *testing.T) {
	wantErr := errors.New("target detached")
	det := New(func(ctx context.Context) (*page.Snapshot, error) {
		return nil, wantErr
	}, patterns.Default(), config.DetectorConfig{}, zaptest.NewLogger(t))

	_, err := det.Detect(context.Background())
	assert.ErrorIs(t, err, wantErr)
}
