// File: internal/detect/classifiers_test.go
package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/consentry/internal/page"
	"github.com/xkilldash9x/consentry/internal/patterns"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func snapFixture(t *testing.T, src string) *page.Snapshot {
	t.Helper()
	snap, err := page.ParseString(src, page.Options{
		URL:       "https://site.example/",
		ViewportW: 1280,
		ViewportH: 800,
	})
	require.NoError(t, err)
	require.NotNil(t, snap.Body)
	return snap
}

const oneTrustFixture = `<html><body>
	<main><p>Article body text.</p></main>
	<div id="onetrust-banner-sdk" style="position:fixed;bottom:0;left:0;width:100%;height:150px;z-index:2000">
		<p>We use cookies to personalise content.</p>
		<button id="onetrust-accept-btn-handler">Accept All</button>
	</div>
</body></html>`

func TestKnownCMPMatcher(t *testing.T) {
	snap := snapFixture(t, oneTrustFixture)
	c := knownCMPClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodKnownCMP, res.Method)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, "onetrust", res.CMPName)
	assert.Equal(t, "onetrust-banner-sdk", res.Banner.ID())
	assert.Contains(t, res.AcceptSelectors, "#onetrust-accept-btn-handler")
	assert.NotEmpty(t, res.RejectSelectors)
}

func TestKnownCMPMatcherIgnoresHiddenBanner(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="onetrust-banner-sdk" style="display:none">
			<button id="onetrust-accept-btn-handler">Accept All</button>
		</div>
	</body></html>`)
	c := knownCMPClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestARIAMatcher(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div role="dialog" aria-modal="true" aria-label="Cookie consent"
			style="position:fixed;top:200px;left:300px;width:600px;height:300px;z-index:100">
			<p>Choose your privacy settings.</p>
			<button>Agree</button>
		</div>
	</body></html>`)
	c := ariaClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodARIA, res.Method)
	assert.Equal(t, 0.85, res.Confidence)
	assert.NotEmpty(t, res.MatchedKeywords)
}

func TestARIAMatcherNeedsControl(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div role="dialog" style="width:600px;height:300px">
			<p>We use cookies.</p>
		</div>
	</body></html>`)
	c := ariaClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res, "a consent dialog without any actionable control is not a banner")
}

func keywordBannerFixture(text string) string {
	return `<html><body>
		<div id="kb" style="position:fixed;bottom:0;left:0;width:100%;height:100px;z-index:5000">
			<p>` + text + `</p>
			<button>Accept</button><button>Decline</button>
		</div>
	</body></html>`
}

func TestKeywordMatcherConfidence(t *testing.T) {
	c := keywordClassifier{db: patterns.Default()}

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"two hits", "This site uses cookies with your consent.", 0.8},
		{"four hits", "Cookies and consent under gdpr protect your privacy.", 0.9},
		{"many hits capped", "cookies consent gdpr privacy tracking analytics advertising", 0.9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := snapFixture(t, keywordBannerFixture(tc.text))
			res, err := c.Classify(context.Background(), snap)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, MethodKeyword, res.Method)
			assert.InDelta(t, tc.want, res.Confidence, 0.001)
			assert.Equal(t, "kb", res.Banner.ID())
		})
	}
}

func TestKeywordMatcherMonotonicity(t *testing.T) {
	c := keywordClassifier{db: patterns.Default()}
	prev := 0.0
	for _, text := range []string{
		"cookies consent",
		"cookies consent gdpr",
		"cookies consent gdpr privacy",
		"cookies consent gdpr privacy tracking analytics advertising",
	} {
		snap := snapFixture(t, keywordBannerFixture(text))
		res, err := c.Classify(context.Background(), snap)
		require.NoError(t, err)
		require.NotNil(t, res, "text %q", text)
		assert.GreaterOrEqual(t, res.Confidence, prev, "more matches never lower confidence")
		assert.LessOrEqual(t, res.Confidence, 0.9)
		prev = res.Confidence
	}
}

func TestKeywordMatcherRespectsWordBoundaries(t *testing.T) {
	c := keywordClassifier{db: patterns.Default()}
	snap := snapFixture(t, keywordBannerFixture("cookiebotx consentx gdprx nothing here"))

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res, "substrings must not count as lexicon hits")
}

func TestKeywordMatcherRequiresTwoHits(t *testing.T) {
	c := keywordClassifier{db: patterns.Default()}
	snap := snapFixture(t, keywordBannerFixture("This mentions cookies once, nothing else."))

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCSSPatternMatcher(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div class="cookie-banner" style="width:100%;height:60px">
			<span>This site uses tracking technologies.</span>
			<button>OK</button>
		</div>
	</body></html>`)
	c := cssPatternClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodCSSPattern, res.Method)
	assert.Equal(t, 0.6, res.Confidence)
}

func TestCSSPatternMatcherNeedsStructure(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div class="cookie-banner" style="width:100%;height:60px">
			<span>Recipe: butter cookies for the holidays.</span>
		</div>
	</body></html>`)
	c := cssPatternClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res, "a selector hit without any control is not a banner")
}

func TestBackdropMatcher(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="dim" style="position:fixed;top:0;left:0;width:100%;height:100%;background-color:rgba(0,0,0,0.5)">
			<div id="modal" style="width:600px;height:300px">
				<p>Manage your cookie preferences.</p>
				<button>Accept</button>
			</div>
		</div>
	</body></html>`)
	c := backdropClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodBackdrop, res.Method)
	assert.Equal(t, 0.75, res.Confidence)
	assert.Equal(t, "modal", res.Banner.ID(), "the backdrop points at a descendant, never itself")
}

func TestBackdropMatcherIgnoresOpaqueLayers(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div style="position:fixed;top:0;left:0;width:100%;height:100%;background-color:rgb(255,255,255)">
			<p>Splash screen, cookies mentioned, and a <button>button</button>.</p>
		</div>
	</body></html>`)
	c := backdropClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res, "a fully opaque layer is not a dimming backdrop")
}

func TestGenericScorer(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="gb" style="position:fixed;bottom:0;left:0;width:100%;height:120px;z-index:9999">
			<p>We use cookies to improve your experience.</p>
			<input type="checkbox"> <span>Analytics</span>
			<button>Accept</button><button>Decline</button>
		</div>
	</body></html>`)
	c := genericClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodGeneric, res.Method)
	assert.Equal(t, "gb", res.Banner.ID())
	// base 0.4 + keywords + control pair 0.2 + both fragments 0.1 +
	// size 0.05 + fixed 0.1 + checkbox 0.05
	assert.GreaterOrEqual(t, res.Confidence, 0.7)
	assert.LessOrEqual(t, res.Confidence, 0.95)
}

func TestGenericScorerRequiresConsentText(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div style="position:fixed;bottom:0;left:0;width:100%;height:80px;z-index:9999">
			<span>Breaking news ticker.</span>
			<button>Read more</button><button>Dismiss</button>
		</div>
	</body></html>`)
	c := genericClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res, "an overlay without consent vocabulary is never scored")
}

func TestIframeSubCheck(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<iframe id="consent-frame" style="width:600px;height:300px"
			srcdoc='<div>We use cookies for analytics. <button>Accept</button></div>'></iframe>
	</body></html>`)
	c := genericClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodGeneric, res.Method)
	assert.True(t, res.IsIframe)
	assert.Equal(t, 0.65, res.Confidence)
}

func TestIframeSubCheckSkipsCrossOrigin(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<iframe style="width:600px;height:300px" src="https://cmp.vendor.example/consent"></iframe>
	</body></html>`)
	c := genericClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res, "cross-origin frames fail silently")
}

func TestShadowDOMMatcherNested(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="outer-host"><template shadowrootmode="open">
			<div id="level1"><template shadowrootmode="open">
				<div id="deep-banner">
					<p>We store cookies to remember your consent.</p>
					<button>Got it</button>
				</div>
			</template></div>
		</template></div>
	</body></html>`)
	c := shadowDOMClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, MethodShadowDOM, res.Method)
	assert.Equal(t, 0.7, res.Confidence)
	assert.Equal(t, "deep-banner", res.Banner.ID(), "the verdict names the nested element itself")
	assert.True(t, res.Banner.InShadow())
}

func TestShadowDOMMatcherRequiresTwoHits(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div><template shadowrootmode="open">
			<div><p>Only cookies here.</p><button>OK</button></div>
		</template></div>
	</body></html>`)
	c := shadowDOMClassifier{db: patterns.Default()}

	res, err := c.Classify(context.Background(), snap)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestOverlayFinderOrdering(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="low" style="position:fixed;top:0;left:0;width:400px;height:60px;z-index:100"><p>x</p></div>
		<div id="high" style="position:fixed;bottom:0;left:0;width:400px;height:60px;z-index:9000"><p>y</p></div>
		<div id="flow" style="width:400px;height:60px"><p>plain flow content</p></div>
		<div id="fullpage" style="position:fixed;top:0;left:0;width:100%;height:100%"><p>modal backdrop</p></div>
	</body></html>`)

	overlays := findOverlays(snap, nil)
	require.Len(t, overlays, 2, "flow content and full-viewport layers are excluded")
	assert.Equal(t, "high", overlays[0].ID())
	assert.Equal(t, "low", overlays[1].ID())
}

func TestOverlayFinderAbsoluteNeedsZIndex(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="bare" style="position:absolute;top:0;left:0;width:400px;height:60px"><p>x</p></div>
		<div id="stacked" style="position:absolute;top:0;left:0;width:400px;height:60px;z-index:15"><p>x</p></div>
	</body></html>`)

	overlays := findOverlays(snap, nil)
	require.Len(t, overlays, 1)
	assert.Equal(t, "stacked", overlays[0].ID())
}

func TestIsRenderedLaw(t *testing.T) {
	snap := snapFixture(t, `<html><body>
		<div id="none" style="display:none"><span id="inside">x</span></div>
		<div id="invis" style="visibility:hidden;width:100px;height:100px">x</div>
		<div id="clear" style="opacity:0;width:100px;height:100px">x</div>
		<div id="flat" style="width:100px;height:0">x</div>
		<div id="ok" style="width:100px;height:100px">x</div>
	</body></html>`)

	for _, id := range []string{"none", "inside", "invis", "clear", "flat"} {
		assert.False(t, IsRendered(snap.ByID(id)), "element %q must not count as rendered", id)
	}
	assert.True(t, IsRendered(snap.ByID("ok")))
	assert.False(t, IsRendered(nil))
}
