package pipeline

import (
	"testing"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

func TestRank_PriorityDescending(t *testing.T) {
	in := []campaign.Campaign{
		{ID: "c", Priority: 1},
		{ID: "a", Priority: 10},
		{ID: "b", Priority: 5},
	}
	got := Rank(in, TieBreakID)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("Position %d: expected %q, got %q", i, id, got[i].ID)
		}
	}
	if in[0].ID != "c" {
		t.Error("Expected input slice untouched")
	}
}

func TestRank_TieBreakByID(t *testing.T) {
	in := []campaign.Campaign{
		{ID: "zeta", Priority: 5},
		{ID: "alpha", Priority: 5},
	}
	got := Rank(in, TieBreakID)
	if got[0].ID != "alpha" || got[1].ID != "zeta" {
		t.Fatalf("Expected id ascending on ties, got %q then %q", got[0].ID, got[1].ID)
	}
}

func TestRank_TieBreakByCreatedAt(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	in := []campaign.Campaign{
		{ID: "alpha", Priority: 5, CreatedAt: newer},
		{ID: "zeta", Priority: 5, CreatedAt: older},
	}
	got := Rank(in, TieBreakCreatedAt)
	if got[0].ID != "zeta" {
		t.Fatalf("Expected oldest first, got %q", got[0].ID)
	}

	// Identical timestamps fall back to id ascending.
	in[0].CreatedAt = older
	got = Rank(in, TieBreakCreatedAt)
	if got[0].ID != "alpha" {
		t.Fatalf("Expected id fallback on equal timestamps, got %q", got[0].ID)
	}
}

func TestRank_Deterministic(t *testing.T) {
	in := []campaign.Campaign{
		{ID: "b", Priority: 3},
		{ID: "a", Priority: 3},
		{ID: "d", Priority: 7},
		{ID: "c", Priority: 3},
	}
	first := Rank(in, TieBreakID)
	for i := 0; i < 10; i++ {
		again := Rank(in, TieBreakID)
		for j := range first {
			if again[j].ID != first[j].ID {
				t.Fatalf("Run %d: order changed at %d", i, j)
			}
		}
	}
}
