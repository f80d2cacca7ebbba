// File: internal/patterns/patterns.go

// Package patterns holds the fingerprint database the detection heuristics
// match against: consent-platform selectors, button wording per language, and
// generic banner selectors.
package patterns

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Polarity is the requested action direction.
type Polarity string

const (
	PolarityAccept Polarity = "accept"
	PolarityReject Polarity = "reject"
)

// KnownCMP fingerprints one consent management platform. List order encodes
// precedence: the first platform whose banner selector matches wins.
type KnownCMP struct {
	Name      string      `json:"name"`
	Selectors SelectorSet `json:"selectors"`
}

// SelectorSet locates a platform's banner container and its controls.
type SelectorSet struct {
	Banner       []string `json:"banner"`
	AcceptButton []string `json:"acceptButton"`
	RejectButton []string `json:"rejectButton"`
}

// ButtonPatterns maps polarity to per-language lowercase text fragments.
type ButtonPatterns struct {
	Accept map[string][]string `json:"accept"`
	Reject map[string][]string `json:"reject"`
}

// CSSPatterns holds generic selectors for banner containers and for elements
// that should be treated as overlay candidates even without elevated styling.
type CSSPatterns struct {
	Banner  []string `json:"banner"`
	Overlay []string `json:"overlay"`
}

// Database is the full pattern set, immutable for the page lifetime.
type Database struct {
	KnownCMPs      []KnownCMP          `json:"knownCMPs"`
	ButtonPatterns ButtonPatterns      `json:"buttonPatterns"`
	CSSPatterns    CSSPatterns         `json:"cssPatterns"`
	Keywords       map[string][]string `json:"keywords"`
}

// AllKeywords returns every keyword across all languages, lowercased and
// deduplicated.
func (db *Database) AllKeywords() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range db.Keywords {
		for _, k := range list {
			k = strings.ToLower(k)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Fragments returns the button-text fragments for a polarity across every
// language, lowercased and deduplicated, language by language.
func (db *Database) Fragments(p Polarity) []string {
	byLang := db.ButtonPatterns.Accept
	if p == PolarityReject {
		byLang = db.ButtonPatterns.Reject
	}
	var out []string
	seen := make(map[string]struct{})
	for _, list := range byLang {
		for _, f := range list {
			f = strings.ToLower(f)
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// Load reads and parses a database file. An empty path returns the shipped
// default set.
func Load(path string) (*Database, error) {
	if path == "" {
		return Default(), nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("patterns: expanding path %q: %w", path, err)
	}
	raw, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("patterns: reading %q: %w", expanded, err)
	}
	var db Database
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("patterns: parsing %q: %w", expanded, err)
	}
	return &db, nil
}

// LoadOrFallback loads the configured database, degrading to the minimal
// fallback set when the file is missing or malformed. The failure is logged
// at debug only so the agent stays quiet on pages it runs inside.
func LoadOrFallback(path string, logger *zap.Logger) *Database {
	db, err := Load(path)
	if err != nil {
		if logger != nil {
			logger.Debug("Pattern database unavailable; using built-in fallback.",
				zap.String("path", path), zap.Error(err))
		}
		return Fallback()
	}
	return db
}

// Fallback returns the minimal built-in set used when the configured database
// cannot be loaded: no platform fingerprints, a small English vocabulary, one
// generic cookie-class selector. Detection degrades rather than failing.
func Fallback() *Database {
	return &Database{
		ButtonPatterns: ButtonPatterns{
			Accept: map[string][]string{
				"en": {"accept all", "accept", "allow all", "agree", "got it", "ok"},
			},
			Reject: map[string][]string{
				"en": {"reject all", "reject", "decline", "refuse", "deny", "only necessary"},
			},
		},
		CSSPatterns: CSSPatterns{
			Banner: []string{`[class*=cookie]`},
		},
		Keywords: map[string][]string{
			"en": {"cookie", "cookies", "consent", "gdpr", "privacy"},
		},
	}
}

// Default returns the shipped database. Callers may mutate the result.
func Default() *Database {
	return &Database{
		KnownCMPs: []KnownCMP{
			{
				Name: "onetrust",
				Selectors: SelectorSet{
					Banner:       []string{"#onetrust-banner-sdk", "#onetrust-consent-sdk"},
					AcceptButton: []string{"#onetrust-accept-btn-handler", ".onetrust-accept-btn-handler"},
					RejectButton: []string{"#onetrust-reject-all-handler", ".ot-pc-refuse-all-handler"},
				},
			},
			{
				Name: "cookiebot",
				Selectors: SelectorSet{
					Banner:       []string{"#CybotCookiebotDialog"},
					AcceptButton: []string{"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll", "#CybotCookiebotDialogBodyButtonAccept"},
					RejectButton: []string{"#CybotCookiebotDialogBodyLevelButtonLevelOptinDeclineAll", "#CybotCookiebotDialogBodyButtonDecline"},
				},
			},
			{
				Name: "quantcast",
				Selectors: SelectorSet{
					Banner:       []string{".qc-cmp2-container", "#qc-cmp2-container"},
					AcceptButton: []string{".qc-cmp2-summary-buttons button[mode=primary]"},
					RejectButton: []string{".qc-cmp2-summary-buttons button[mode=secondary]"},
				},
			},
			{
				Name: "didomi",
				Selectors: SelectorSet{
					Banner:       []string{"#didomi-host", "#didomi-popup"},
					AcceptButton: []string{"#didomi-notice-agree-button"},
					RejectButton: []string{"#didomi-notice-disagree-button", ".didomi-continue-without-agreeing"},
				},
			},
			{
				Name: "trustarc",
				Selectors: SelectorSet{
					Banner:       []string{"#truste-consent-track", ".truste_box_overlay"},
					AcceptButton: []string{"#truste-consent-button"},
					RejectButton: []string{"#truste-consent-required"},
				},
			},
			{
				Name: "usercentrics",
				Selectors: SelectorSet{
					Banner:       []string{"#usercentrics-root", "#usercentrics-cmp-ui"},
					AcceptButton: []string{"[data-testid=uc-accept-all-button]"},
					RejectButton: []string{"[data-testid=uc-deny-all-button]"},
				},
			},
			{
				Name: "complianz",
				Selectors: SelectorSet{
					Banner:       []string{"#cmplz-cookiebanner-container", ".cmplz-cookiebanner"},
					AcceptButton: []string{".cmplz-accept"},
					RejectButton: []string{".cmplz-deny"},
				},
			},
			{
				Name: "cookieyes",
				Selectors: SelectorSet{
					Banner:       []string{".cky-consent-container"},
					AcceptButton: []string{".cky-btn-accept"},
					RejectButton: []string{".cky-btn-reject"},
				},
			},
			{
				Name: "sourcepoint",
				Selectors: SelectorSet{
					Banner:       []string{".sp_message_container", "#sp_message_container"},
					AcceptButton: []string{".sp_choice_type_11"},
					RejectButton: []string{".sp_choice_type_13"},
				},
			},
			{
				Name: "klaro",
				Selectors: SelectorSet{
					Banner:       []string{".klaro .cookie-notice", ".klaro .cm-modal"},
					AcceptButton: []string{".cm-btn-success", ".cm-btn-accept-all"},
					RejectButton: []string{".cm-btn-danger", ".cm-btn-decline"},
				},
			},
		},
		ButtonPatterns: ButtonPatterns{
			Accept: map[string][]string{
				"en": {"accept all", "accept cookies", "allow all", "i agree", "agree", "got it", "allow cookies", "accept", "ok"},
				"de": {"alle akzeptieren", "alles akzeptieren", "akzeptieren", "zustimmen", "einverstanden"},
				"fr": {"tout accepter", "accepter et fermer", "accepter les cookies", "j'accepte", "accepter"},
				"es": {"aceptar todo", "aceptar cookies", "de acuerdo", "aceptar"},
			},
			Reject: map[string][]string{
				"en": {"reject all", "reject cookies", "only necessary", "necessary only", "continue without accepting", "decline", "refuse", "deny", "reject"},
				"de": {"alle ablehnen", "nur notwendige", "nur erforderliche", "ohne zustimmung fortfahren", "ablehnen"},
				"fr": {"tout refuser", "continuer sans accepter", "refuser les cookies", "refuser"},
				"es": {"rechazar todo", "solo necesarias", "rechazar cookies", "rechazar"},
			},
		},
		CSSPatterns: CSSPatterns{
			Banner: []string{
				"#cookie-banner", "#cookie-consent", "#cookie-notice", "#cookie-law-info-bar",
				"#cookieConsent", "#gdpr-banner", "#consent-banner",
				".cookie-banner", ".cookie-consent", ".cookie-notice", ".consent-banner",
				".gdpr-banner", ".cc-window", ".cc-banner",
			},
			Overlay: []string{
				`[class*=cookiebar]`, `[id*=cookiebar]`,
				`[class*=cookie-banner]`, `[id*=cookie-banner]`,
				`[class*=consent-banner]`, `[id*=consent-banner]`,
			},
		},
		Keywords: map[string][]string{
			"en": {
				"cookie", "cookies", "consent", "gdpr", "privacy", "tracking",
				"personal data", "third party", "advertising", "analytics",
				"legitimate interest",
			},
			"de": {
				"cookie", "cookies", "einwilligung", "zustimmung", "datenschutz",
				"dsgvo", "tracking", "personenbezogene daten", "werbung", "drittanbieter",
			},
			"fr": {
				"cookie", "cookies", "consentement", "rgpd", "confidentialite",
				"donnees personnelles", "traceurs", "publicite",
			},
			"es": {
				"cookie", "cookies", "consentimiento", "rgpd", "privacidad",
				"datos personales", "publicidad",
			},
		},
	}
}
