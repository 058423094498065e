// Package store provides campaign persistence. The admission pipeline
// only reads from it; the admin API writes through it.
package store

import (
	"context"
	"errors"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// ErrNotFound is returned when a campaign does not exist.
var ErrNotFound = errors.New("campaign not found")

// Store defines the interface for campaign persistence operations.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// ActiveCampaigns retrieves all ACTIVE campaigns for the store.
	// Returns an empty slice if none are found.
	ActiveCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error)

	// CampaignByID retrieves a single campaign regardless of status.
	// Returns ErrNotFound if it does not exist.
	CampaignByID(ctx context.Context, id string) (*campaign.Campaign, error)

	// ListCampaigns retrieves all campaigns for the store, any status.
	ListCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error)

	// UpsertCampaign creates or updates a campaign keyed by ID.
	UpsertCampaign(ctx context.Context, c campaign.Campaign) error

	// DeleteCampaign removes a campaign by ID. Deleting a missing
	// campaign is not an error (idempotent).
	DeleteCampaign(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
