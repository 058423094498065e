// Package prize implements the probability-weighted reward draw used
// by gamified campaign types (spin-to-win, scratch cards). The draw
// runs server-side only; client-submitted prize ids are never trusted.
package prize

import (
	"errors"
	"math/rand/v2"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// ErrNoSegments is returned when a draw is requested with no segments.
var ErrNoSegments = errors.New("no wheel segments configured")

// Selector performs weighted single draws. The zero value is not
// usable; construct with New.
type Selector struct {
	// randFloat returns a value in [0,1). Injectable for tests.
	randFloat func() float64
}

// New creates a Selector using the shared math/rand source.
func New() *Selector {
	return &Selector{randFloat: rand.Float64}
}

// NewWithRand creates a Selector with a fixed random source. Test hook.
func NewWithRand(randFloat func() float64) *Selector {
	return &Selector{randFloat: randFloat}
}

// Select draws one segment with probability proportional to its
// weight. Weights need not sum to 1; negative weights count as zero.
// A zero-probability segment is never selected. When all weights are
// zero, or a floating-point edge leaves the draw unconsumed, the first
// segment is the defined fallback.
func (s *Selector) Select(segments []campaign.WheelSegment) (campaign.WheelSegment, error) {
	if len(segments) == 0 {
		return campaign.WheelSegment{}, ErrNoSegments
	}

	total := 0.0
	for _, seg := range segments {
		if seg.Probability > 0 {
			total += seg.Probability
		}
	}
	if total <= 0 {
		return segments[0], nil
	}

	r := s.randFloat() * total
	for _, seg := range segments {
		if seg.Probability <= 0 {
			continue
		}
		r -= seg.Probability
		if r <= 0 {
			return seg, nil
		}
	}
	return segments[0], nil
}
