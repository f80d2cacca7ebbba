// File: internal/policy/policy.go

// Package policy resolves the per-domain allow/deny lists into an actuation
// decision. The detector stays domain-agnostic; callers consult the policy
// before clicking anything.
package policy

import (
	"strings"

	"github.com/xkilldash9x/consentry/internal/config"
)

// Verdict is what the configured lists say about a host.
type Verdict int

const (
	// Follow applies the globally configured mode.
	Follow Verdict = iota
	// ForceAccept actuates accept regardless of mode.
	ForceAccept
	// Skip leaves the page untouched.
	Skip
)

func (v Verdict) String() string {
	switch v {
	case ForceAccept:
		return "force-accept"
	case Skip:
		return "skip"
	default:
		return "follow"
	}
}

// Decide matches the host against the deny list first, then the allow list.
// List entries match the host itself and any subdomain of it.
func Decide(host string, cfg config.PolicyConfig) Verdict {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return Follow
	}
	if matches(host, cfg.Deny) {
		return Skip
	}
	if matches(host, cfg.Allow) {
		return ForceAccept
	}
	return Follow
}

func matches(host string, entries []string) bool {
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
