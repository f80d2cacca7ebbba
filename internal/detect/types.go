// File: internal/detect/types.go

// Package detect implements the banner detection engine: a cascade of
// independent heuristics over a page snapshot, reduced to a single
// confidence-ranked verdict by the aggregator.
package detect

import (
	"context"
	"errors"

	"github.com/xkilldash9x/consentry/internal/page"
)

// ErrBusy is returned when a detection request arrives while another cycle is
// already in flight. The request is dropped, not queued; a trailing rescan
// will cover any page change that motivated it.
var ErrBusy = errors.New("detect: detection cycle already in flight")

// Method identifies which heuristic produced a result.
type Method string

const (
	MethodKnownCMP   Method = "knownCMP"
	MethodARIA       Method = "aria"
	MethodKeyword    Method = "keyword"
	MethodCSSPattern Method = "cssPattern"
	MethodBackdrop   Method = "backdrop"
	MethodGeneric    Method = "generic"
	MethodShadowDOM  Method = "shadowDOM"
)

// priority breaks confidence ties, reflecting each method's baseline
// reliability. Higher wins.
func (m Method) priority() int {
	switch m {
	case MethodKnownCMP:
		return 7
	case MethodARIA:
		return 6
	case MethodBackdrop:
		return 5
	case MethodShadowDOM:
		return 4
	case MethodKeyword:
		return 3
	case MethodGeneric:
		return 2
	case MethodCSSPattern:
		return 1
	default:
		return 0
	}
}

// Result is one detection verdict. The banner element is owned by its
// snapshot; results are never retained across navigations.
type Result struct {
	Method     Method        `json:"method"`
	Banner     *page.Element `json:"-"`
	Confidence float64       `json:"confidence"`

	CMPName         string   `json:"cmpName,omitempty"`
	AcceptSelectors []string `json:"acceptSelectors,omitempty"`
	RejectSelectors []string `json:"rejectSelectors,omitempty"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
	IsIframe        bool     `json:"isIframe,omitempty"`
}

// outranks reports whether r beats other under the max-confidence,
// priority-tie-break reduction.
func (r *Result) outranks(other *Result) bool {
	if other == nil {
		return true
	}
	if r.Confidence != other.Confidence {
		return r.Confidence > other.Confidence
	}
	return r.Method.priority() > other.Method.priority()
}

// Classifier is one stateless heuristic. Classify returns (nil, nil) when the
// snapshot holds nothing it recognizes; at most one result per invocation.
type Classifier interface {
	Method() Method
	Classify(ctx context.Context, snap *page.Snapshot) (*Result, error)
}
