// File: internal/page/page_test.go
package page

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustParse(t *testing.T, src string, opts Options) *Snapshot {
	t.Helper()
	snap, err := ParseString(src, opts)
	require.NoError(t, err)
	require.NotNil(t, snap.Root)
	require.NotNil(t, snap.Body)
	return snap
}

func TestCascadePrecedence(t *testing.T) {
	snap := mustParse(t, `<html><head><style>
		div { color: blue; }
		#a { color: red; }
		#c { color: red !important; }
	</style></head><body>
		<div id="a">by id</div>
		<div id="b" style="color: green">inline wins</div>
		<div id="c" style="color: green">important wins</div>
	</body></html>`, Options{})

	assert.Equal(t, "red", snap.ByID("a").Style("color", ""))
	assert.Equal(t, "green", snap.ByID("b").Style("color", ""))
	assert.Equal(t, "red", snap.ByID("c").Style("color", ""))
}

func TestHiddenStyles(t *testing.T) {
	snap := mustParse(t, `<html><head><style>
		.gone { display: none; }
	</style></head><body>
		<div id="none" class="gone">a</div>
		<div id="invis" style="visibility: hidden"><span id="child">b</span></div>
		<div id="clear" style="opacity: 0">c</div>
		<div id="shown">d</div>
	</body></html>`, Options{})

	assert.True(t, snap.ByID("none").Hidden())
	assert.True(t, snap.ByID("invis").Hidden())
	assert.True(t, snap.ByID("child").Hidden(), "visibility inherits")
	assert.True(t, snap.ByID("clear").Hidden())
	assert.False(t, snap.ByID("shown").Hidden())

	assert.True(t, snap.ByID("none").Box().Empty(), "display none takes no space")
}

func TestFixedBannerGeometry(t *testing.T) {
	snap := mustParse(t, `<html><head><style>
		#banner {
			position: fixed; bottom: 0; left: 0;
			width: 100%; height: 120px; z-index: 5000;
			background-color: rgba(0, 0, 0, 0.9);
		}
	</style></head><body>
		<div id="banner"><p>We value your privacy</p><button id="ok">Accept All</button></div>
	</body></html>`, Options{ViewportW: 1280, ViewportH: 800})

	banner := snap.ByID("banner")
	require.NotNil(t, banner)

	assert.Equal(t, PositionFixed, banner.Position())
	z, ok := banner.ZIndex()
	require.True(t, ok)
	assert.Equal(t, 5000, z)

	box := banner.Box()
	assert.InDelta(t, 0, box.X, 0.01)
	assert.InDelta(t, 680, box.Y, 0.01)
	assert.InDelta(t, 1280, box.W, 0.01)
	assert.InDelta(t, 120, box.H, 0.01)

	alpha, ok := banner.BackgroundAlpha()
	require.True(t, ok)
	assert.InDelta(t, 0.9, alpha, 0.001)

	button := snap.ByID("ok")
	require.NotNil(t, button)
	assert.False(t, button.Box().Empty())
}

func TestBackgroundAlphaFormats(t *testing.T) {
	snap := mustParse(t, `<html><body>
		<div id="t" style="background-color: transparent">x</div>
		<div id="hex" style="background-color: #00000080">x</div>
		<div id="named" style="background-color: black">x</div>
		<div id="unset">x</div>
	</body></html>`, Options{})

	a, ok := snap.ByID("t").BackgroundAlpha()
	require.True(t, ok)
	assert.Zero(t, a)

	a, ok = snap.ByID("hex").BackgroundAlpha()
	require.True(t, ok)
	assert.InDelta(t, 0.502, a, 0.01)

	a, ok = snap.ByID("named").BackgroundAlpha()
	require.True(t, ok)
	assert.Equal(t, 1.0, a)

	_, ok = snap.ByID("unset").BackgroundAlpha()
	assert.False(t, ok)
}

func TestDeclarativeShadowRoot(t *testing.T) {
	snap := mustParse(t, `<html><body>
		<div id="host"><template shadowrootmode="open">
			<style>.inner { position: fixed; }</style>
			<div class="inner">Shadow consent text</div>
		</template></div>
		<div class="inner">outside scope</div>
	</body></html>`, Options{})

	host := snap.ByID("host")
	require.NotNil(t, host)
	require.NotNil(t, host.ShadowRoot)
	assert.Equal(t, ShadowOpen, host.ShadowRoot.shadowMode)

	inner := host.Query(".inner")
	require.NotNil(t, inner)
	assert.True(t, inner.InShadow())
	assert.Equal(t, PositionFixed, inner.Position(), "shadow styles stay scoped to the root")
	assert.Contains(t, inner.Text(), "Shadow consent text")

	outside := snap.Body.Children[1]
	assert.Equal(t, PositionStatic, outside.Position(), "shadow styles must not leak out")
	assert.Contains(t, host.Text(), "Shadow consent text", "text pierces the shadow boundary")
}

func TestFrameDocuments(t *testing.T) {
	snap := mustParse(t, `<html><body>
		<iframe id="inline" srcdoc="&lt;p&gt;frame cookies&lt;/p&gt;" style="width:400px;height:200px"></iframe>
		<iframe id="foreign" src="https://tracker.example/consent"></iframe>
		<iframe id="local" src="/widget.html"></iframe>
	</body></html>`, Options{URL: "https://news.example/article"})

	sub, err := snap.ByID("inline").FrameDocument()
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Contains(t, sub.Body.Text(), "frame cookies")

	_, err = snap.ByID("foreign").FrameDocument()
	assert.True(t, errors.Is(err, ErrCrossOrigin))

	sub, err = snap.ByID("local").FrameDocument()
	assert.NoError(t, err)
	assert.Nil(t, sub, "same-origin src frames carry no body in a capture")
}

func TestQueriesAndAccessibleText(t *testing.T) {
	snap := mustParse(t, `<html><body>
		<div id="dlg" role="dialog" aria-modal="true">
			<span id="lbl">Reject optional cookies</span>
			<button id="labelled" aria-labelledby="lbl">x</button>
			<button id="direct" aria-label="Accept everything">OK</button>
			<button id="plain">Manage settings</button>
		</div>
	</body></html>`, Options{})

	matches := snap.QueryAll(`div[role=dialog]`)
	require.Len(t, matches, 1)
	assert.Equal(t, "dlg", matches[0].ID())

	assert.Len(t, snap.QueryAll("button"), 3)
	assert.Equal(t, "Accept everything", snap.ByID("direct").AccessibleText())
	assert.Equal(t, "Reject optional cookies", snap.ByID("labelled").AccessibleText())
	assert.Equal(t, "Manage settings", snap.ByID("plain").AccessibleText())
}
