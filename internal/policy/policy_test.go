// File: internal/policy/policy_test.go
package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/consentry/internal/config"
)

func TestDecide(t *testing.T) {
	cfg := config.PolicyConfig{
		Allow: []string{"news.example", "Shop.Example"},
		Deny:  []string{"bank.example"},
	}

	tests := []struct {
		name string
		host string
		want Verdict
	}{
		{"unlisted host follows mode", "blog.example", Follow},
		{"allow entry forces accept", "news.example", ForceAccept},
		{"allow matches subdomains", "www.news.example", ForceAccept},
		{"allow entries are case insensitive", "shop.example", ForceAccept},
		{"deny entry skips", "bank.example", Skip},
		{"deny matches subdomains", "login.bank.example", Skip},
		{"suffix without dot boundary is not a match", "fakenews.example", Follow},
		{"empty host follows mode", "", Follow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.host, cfg))
		})
	}
}

func TestDenyBeatsAllow(t *testing.T) {
	cfg := config.PolicyConfig{
		Allow: []string{"example"},
		Deny:  []string{"tracker.example"},
	}
	assert.Equal(t, Skip, Decide("tracker.example", cfg))
	assert.Equal(t, ForceAccept, Decide("other.example", cfg))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "follow", Follow.String())
	assert.Equal(t, "force-accept", ForceAccept.String())
	assert.Equal(t, "skip", Skip.String())
}
