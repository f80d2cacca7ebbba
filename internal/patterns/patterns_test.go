// File: internal/patterns/patterns_test.go
package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultIsComplete(t *testing.T) {
	db := Default()

	require.NotEmpty(t, db.KnownCMPs)
	for _, cmp := range db.KnownCMPs {
		assert.NotEmpty(t, cmp.Name)
		assert.NotEmpty(t, cmp.Selectors.Banner, "cmp %s has no banner selectors", cmp.Name)
		assert.NotEmpty(t, cmp.Selectors.AcceptButton, "cmp %s has no accept selectors", cmp.Name)
	}
	assert.Equal(t, "onetrust", db.KnownCMPs[0].Name, "list order is matching precedence")

	assert.NotEmpty(t, db.CSSPatterns.Banner)
	assert.NotEmpty(t, db.CSSPatterns.Overlay)
	for _, lang := range []string{"en", "de", "fr", "es"} {
		assert.NotEmpty(t, db.Keywords[lang], "no keywords for %s", lang)
		assert.NotEmpty(t, db.ButtonPatterns.Accept[lang], "no accept wording for %s", lang)
		assert.NotEmpty(t, db.ButtonPatterns.Reject[lang], "no reject wording for %s", lang)
	}
}

func TestFallbackIsMinimalButUsable(t *testing.T) {
	db := Fallback()

	assert.Empty(t, db.KnownCMPs)
	assert.NotEmpty(t, db.Keywords["en"])
	assert.NotEmpty(t, db.ButtonPatterns.Accept["en"])
	assert.NotEmpty(t, db.ButtonPatterns.Reject["en"])
	assert.NotEmpty(t, db.CSSPatterns.Banner)
}

func TestAllKeywordsDeduplicates(t *testing.T) {
	db := &Database{Keywords: map[string][]string{
		"en": {"Cookie", "consent"},
		"de": {"cookie", "datenschutz"},
	}}

	assert.ElementsMatch(t, []string{"cookie", "consent", "datenschutz"}, db.AllKeywords())
}

func TestFragmentsByPolarity(t *testing.T) {
	db := &Database{ButtonPatterns: ButtonPatterns{
		Accept: map[string][]string{"en": {"Accept All", "accept"}, "de": {"akzeptieren"}},
		Reject: map[string][]string{"en": {"decline"}},
	}}

	assert.ElementsMatch(t, []string{"accept all", "accept", "akzeptieren"}, db.Fragments(PolarityAccept))
	assert.ElementsMatch(t, []string{"decline"}, db.Fragments(PolarityReject))
}

func TestLoadParsesWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"knownCMPs": [{
			"name": "custom",
			"selectors": {
				"banner": ["#my-banner"],
				"acceptButton": ["#my-accept"],
				"rejectButton": ["#my-reject"]
			}
		}],
		"buttonPatterns": {"accept": {"en": ["yes"]}, "reject": {"en": ["no"]}},
		"cssPatterns": {"banner": [".b"], "overlay": [".o"]},
		"keywords": {"en": ["cookie"]}
	}`), 0o600))

	db, err := Load(path)
	require.NoError(t, err)

	want := &Database{
		KnownCMPs: []KnownCMP{{
			Name: "custom",
			Selectors: SelectorSet{
				Banner:       []string{"#my-banner"},
				AcceptButton: []string{"#my-accept"},
				RejectButton: []string{"#my-reject"},
			},
		}},
		ButtonPatterns: ButtonPatterns{
			Accept: map[string][]string{"en": {"yes"}},
			Reject: map[string][]string{"en": {"no"}},
		},
		CSSPatterns: CSSPatterns{Banner: []string{".b"}, Overlay: []string{".o"}},
		Keywords:    map[string][]string{"en": {"cookie"}},
	}
	if diff := cmp.Diff(want, db); diff != "" {
		t.Errorf("loaded database mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	db, err := Load("")
	require.NoError(t, err)
	assert.Len(t, db.KnownCMPs, len(Default().KnownCMPs))
}

func TestLoadOrFallbackDegrades(t *testing.T) {
	logger := zaptest.NewLogger(t)

	db := LoadOrFallback(filepath.Join(t.TempDir(), "missing.json"), logger)
	assert.Empty(t, db.KnownCMPs, "missing file degrades to the fallback set")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	db = LoadOrFallback(bad, logger)
	assert.Empty(t, db.KnownCMPs, "corrupt file degrades to the fallback set")
	assert.NotEmpty(t, db.Keywords["en"])
}
