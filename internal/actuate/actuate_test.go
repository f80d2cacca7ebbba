// File: internal/actuate/actuate_test.go
package actuate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/detect"
	"github.com/xkilldash9x/consentry/internal/notify"
	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type capturingNotifier struct {
	observed []notify.BannerObserved
	actuated []notify.BannerActuated
}

func (c *capturingNotifier) BannerObserved(_ context.Context, ev notify.BannerObserved) {
	c.observed = append(c.observed, ev)
}

func (c *capturingNotifier) BannerActuated(_ context.Context, ev notify.BannerActuated) {
	c.actuated = append(c.actuated, ev)
}

type fakeCache struct{ cleared int }

func (f *fakeCache) ClearCache() { f.cleared++ }

func snapFixture(t *testing.T, src string) *page.Snapshot {
	t.Helper()
	snap, err := page.ParseString(src, page.Options{
		URL:       "https://site.example/",
		ViewportW: 1280,
		ViewportH: 800,
	})
	require.NoError(t, err)
	return snap
}

func detectOn(t *testing.T, snap *page.Snapshot) *detect.Result {
	t.Helper()
	det := detect.New(func(context.Context) (*page.Snapshot, error) { return snap, nil },
		patterns.Default(), config.DetectorConfig{Freshness: time.Minute}, zaptest.NewLogger(t))
	res, err := det.Detect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func newTestActuator(t *testing.T, cfg config.ActuatorConfig) (*Actuator, *Recorder, *fakeCache, *capturingNotifier) {
	t.Helper()
	rec := &Recorder{}
	cache := &fakeCache{}
	sink := &capturingNotifier{}
	a := New(patterns.Default(), rec, cache, sink, cfg, zaptest.NewLogger(t))
	return a, rec, cache, sink
}

func TestActuateClicksCMPAcceptControl(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="onetrust-banner-sdk" style="position:fixed;bottom:0;left:0;width:100%;height:150px;z-index:2000">
			<p>We use cookies to personalise content.</p>
			<button id="onetrust-accept-btn-handler">Accept All</button>
		</div>
	</body></html>`)
	res := detectOn(t, snap)
	a, rec, cache, sink := newTestActuator(t, config.ActuatorConfig{})

	outcome, err := a.Actuate(context.Background(), res, patterns.PolarityAccept)
	require.NoError(t, err)

	assert.Equal(t, "onetrust-accept-btn-handler", outcome.Control.ID(), "the CMP selector picks that exact element")
	assert.False(t, outcome.Fallback)

	require.Len(t, rec.Events, 3)
	assert.Equal(t, "mouseMoved", rec.Events[0].Type)
	assert.Equal(t, "mousePressed", rec.Events[1].Type)
	assert.Equal(t, "mouseReleased", rec.Events[2].Type)

	box := outcome.Control.Box()
	assert.InDelta(t, box.X+box.W/2, rec.Events[1].X, 0.01)
	assert.InDelta(t, box.Y+box.H/2, rec.Events[1].Y, 0.01)

	assert.Equal(t, 1, cache.cleared, "a successful click invalidates the verdict cache")
	require.Len(t, sink.actuated, 1)
	assert.Equal(t, "accept", sink.actuated[0].Polarity)
}

func TestActuateDenyByButtonText(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="footer-consent" style="position:fixed;bottom:0;left:0;width:100%;height:90px;z-index:9999">
			<p>We use cookies to improve your experience. Accept | Decline</p>
			<button id="yes">Accept</button><button id="no">Decline</button>
		</div>
	</body></html>`)
	res := detectOn(t, snap)
	a, rec, _, _ := newTestActuator(t, config.ActuatorConfig{})

	outcome, err := a.Actuate(context.Background(), res, patterns.PolarityReject)
	require.NoError(t, err)

	assert.Equal(t, "no", outcome.Control.ID(), "text fallback matches the configured reject fragment")
	assert.False(t, outcome.Fallback)
	assert.Len(t, rec.Events, 3)
}

func TestActuateWithoutBanner(t *testing.T) {
	a, rec, _, sink := newTestActuator(t, config.ActuatorConfig{})

	_, err := a.Actuate(context.Background(), nil, patterns.PolarityAccept)
	assert.ErrorIs(t, err, ErrNoBanner)
	assert.Empty(t, rec.Events)
	assert.Empty(t, sink.actuated)
}

func TestActuateDenyFallsBackToAccept(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="banner" style="position:fixed;bottom:0;left:0;width:100%;height:90px;z-index:9999">
			<p>Cookies keep your consent preferences.</p>
			<button id="only-accept">Accept all</button>
		</div>
	</body></html>`)
	res := detectOn(t, snap)
	a, _, _, sink := newTestActuator(t, config.ActuatorConfig{})

	outcome, err := a.Actuate(context.Background(), res, patterns.PolarityReject)
	require.NoError(t, err, "a deny request with no reject control succeeds via the accept fallback")

	assert.True(t, outcome.Fallback)
	assert.Equal(t, "only-accept", outcome.Control.ID())
	require.Len(t, sink.actuated, 1)
	assert.Equal(t, "reject", sink.actuated[0].Polarity)
	assert.True(t, sink.actuated[0].Fallback, "the event reports the substitution")
}

func TestActuateStrictRejectRefusesFallback(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="banner" style="position:fixed;bottom:0;left:0;width:100%;height:90px;z-index:9999">
			<p>Cookies keep your consent preferences.</p>
			<button id="only-accept">Accept all</button>
		</div>
	</body></html>`)
	res := detectOn(t, snap)
	a, rec, cache, _ := newTestActuator(t, config.ActuatorConfig{StrictReject: true})

	_, err := a.Actuate(context.Background(), res, patterns.PolarityReject)
	assert.ErrorIs(t, err, ErrNoControl)
	assert.Empty(t, rec.Events, "nothing is clicked when strict reject finds no control")
	assert.Zero(t, cache.cleared)
}

func TestActuateHiddenControlIsSkipped(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="onetrust-banner-sdk" style="position:fixed;bottom:0;left:0;width:100%;height:150px;z-index:2000">
			<p>We use cookies.</p>
			<button id="onetrust-accept-btn-handler" style="display:none">Accept All</button>
			<button id="visible-accept">Accept</button>
		</div>
	</body></html>`)
	res := detectOn(t, snap)
	a, _, _, _ := newTestActuator(t, config.ActuatorConfig{})

	outcome, err := a.Actuate(context.Background(), res, patterns.PolarityAccept)
	require.NoError(t, err)
	assert.Equal(t, "visible-accept", outcome.Control.ID(),
		"hidden selector matches fall through to the text fallback")
}
