package store

import (
	"context"
	"sync"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent
// access. Suitable for development, testing, or single-instance
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]campaign.Campaign // id -> Campaign
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]campaign.Campaign),
	}
}

// ActiveCampaigns retrieves all ACTIVE campaigns for the store.
func (m *MemoryStore) ActiveCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]campaign.Campaign, 0, len(m.campaigns)/2)
	for _, c := range m.campaigns {
		if c.StoreID == storeID && c.Status == campaign.StatusActive {
			result = append(result, c)
		}
	}
	return result, nil
}

// CampaignByID retrieves a single campaign by its id.
func (m *MemoryStore) CampaignByID(ctx context.Context, id string) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.campaigns[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &c, nil
}

// ListCampaigns retrieves all campaigns for the store, any status.
func (m *MemoryStore) ListCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]campaign.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		if c.StoreID == storeID {
			result = append(result, c)
		}
	}
	return result, nil
}

// UpsertCampaign creates or updates a campaign in memory.
func (m *MemoryStore) UpsertCampaign(ctx context.Context, c campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.campaigns[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = time.Now().UTC()

	m.campaigns[c.ID] = c
	return nil
}

// DeleteCampaign removes a campaign from memory.
func (m *MemoryStore) DeleteCampaign(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.campaigns, id)

	// Idempotent: no error if campaign doesn't exist
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error { return nil }
