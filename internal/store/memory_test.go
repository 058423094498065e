package store

import (
	"context"
	"sync"
	"testing"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := campaign.Campaign{ID: "camp-1", StoreID: "shop-1", Name: "Welcome", Status: campaign.StatusActive}
	if err := s.UpsertCampaign(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.CampaignByID(ctx, "camp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Welcome" {
		t.Errorf("Expected name Welcome, got %q", got.Name)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be stamped")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.CampaignByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpsertPreservesCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := campaign.Campaign{ID: "camp-1", StoreID: "shop-1", Name: "v1"}
	if err := s.UpsertCampaign(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	first, _ := s.CampaignByID(ctx, "camp-1")

	c.Name = "v2"
	if err := s.UpsertCampaign(ctx, c); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	second, _ := s.CampaignByID(ctx, "camp-1")

	if second.Name != "v2" {
		t.Errorf("Expected updated name, got %q", second.Name)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("Expected CreatedAt to survive updates")
	}
}

func TestMemoryStore_ActiveCampaignsFiltersStatusAndStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seed := []campaign.Campaign{
		{ID: "a", StoreID: "shop-1", Status: campaign.StatusActive},
		{ID: "b", StoreID: "shop-1", Status: campaign.StatusPaused},
		{ID: "c", StoreID: "shop-2", Status: campaign.StatusActive},
	}
	for _, c := range seed {
		if err := s.UpsertCampaign(ctx, c); err != nil {
			t.Fatalf("upsert %s: %v", c.ID, err)
		}
	}

	active, err := s.ActiveCampaigns(ctx, "shop-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "a" {
		t.Fatalf("Expected only campaign a, got %v", active)
	}

	all, err := s.ListCampaigns(ctx, "shop-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 campaigns for shop-1, got %d", len(all))
	}
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertCampaign(ctx, campaign.Campaign{ID: "camp-1", StoreID: "shop-1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.DeleteCampaign(ctx, "camp-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteCampaign(ctx, "camp-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.CampaignByID(ctx, "camp-1"); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = s.UpsertCampaign(ctx, campaign.Campaign{
				ID:      "camp-" + string(rune('a'+n%26)),
				StoreID: "shop-1",
				Status:  campaign.StatusActive,
			})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.ActiveCampaigns(ctx, "shop-1")
		}()
	}
	wg.Wait()

	got, err := s.ActiveCampaigns(ctx, "shop-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(got) != 26 {
		t.Fatalf("Expected 26 campaigns, got %d", len(got))
	}
}
