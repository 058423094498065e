package prize

import (
	"testing"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

func segs(probs ...float64) []campaign.WheelSegment {
	out := make([]campaign.WheelSegment, len(probs))
	for i, p := range probs {
		out[i] = campaign.WheelSegment{ID: string(rune('a' + i)), Probability: p}
	}
	return out
}

func TestSelect_EmptySegments(t *testing.T) {
	if _, err := New().Select(nil); err != ErrNoSegments {
		t.Fatalf("Expected ErrNoSegments, got %v", err)
	}
}

func TestSelect_ZeroProbabilityNeverWins(t *testing.T) {
	segments := segs(1, 0)
	s := New()
	for i := 0; i < 1000; i++ {
		seg, err := s.Select(segments)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if seg.ID != "a" {
			t.Fatalf("Selected zero-probability segment %q", seg.ID)
		}
	}
}

func TestSelect_AllZeroFallsBackToFirst(t *testing.T) {
	seg, err := New().Select(segs(0, 0, 0))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if seg.ID != "a" {
		t.Fatalf("Expected first segment as fallback, got %q", seg.ID)
	}
}

func TestSelect_NegativeWeightsTreatedAsZero(t *testing.T) {
	seg, err := New().Select(segs(-5, 2))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if seg.ID != "b" {
		t.Fatalf("Expected the only positive-weight segment, got %q", seg.ID)
	}
}

func TestSelect_FixedRandPicksExpectedSegment(t *testing.T) {
	segments := segs(0.2, 0.3, 0.5)
	cases := []struct {
		r    float64
		want string
	}{
		{0.0, "a"},
		{0.19, "a"},
		{0.21, "b"},
		{0.49, "b"},
		{0.51, "c"},
		{0.99, "c"},
	}
	for _, tc := range cases {
		s := NewWithRand(func() float64 { return tc.r })
		seg, err := s.Select(segments)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if seg.ID != tc.want {
			t.Errorf("r=%v: expected %q, got %q", tc.r, tc.want, seg.ID)
		}
	}
}

func TestSelect_WeightsNeedNotSumToOne(t *testing.T) {
	// Weights 30/70 out of 100. r=0.5 lands in the second segment.
	s := NewWithRand(func() float64 { return 0.5 })
	seg, err := s.Select(segs(30, 70))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if seg.ID != "b" {
		t.Fatalf("Expected the heavier segment, got %q", seg.ID)
	}
}

func TestSelect_DistributionRoughlyMatchesWeights(t *testing.T) {
	segments := segs(0.5, 0.5)
	s := New()
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		seg, err := s.Select(segments)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		counts[seg.ID]++
	}
	ratio := float64(counts["a"]) / n
	if ratio < 0.45 || ratio > 0.55 {
		t.Fatalf("Expected roughly even split, got %v", counts)
	}
}
