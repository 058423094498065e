package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Structured fields (target rules, capping, wheel segments) are stored
// as jsonb.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id            text PRIMARY KEY,
    store_id      text NOT NULL,
    name          text NOT NULL DEFAULT '',
    priority      int  NOT NULL DEFAULT 0,
    status        text NOT NULL DEFAULT 'DRAFT',
    template_type text NOT NULL DEFAULT '',
    target_rules  jsonb NOT NULL DEFAULT '{}',
    experiment_id text NOT NULL DEFAULT '',
    variant_key   text NOT NULL DEFAULT '',
    capping       jsonb NOT NULL DEFAULT '{}',
    segments      jsonb NOT NULL DEFAULT '[]',
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS campaigns_store_status_idx ON campaigns (store_id, status);
`

// EnsureSchema creates the campaigns table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const selectColumns = `id, store_id, name, priority, status, template_type,
    target_rules, experiment_id, variant_key, capping, segments, created_at, updated_at`

// ActiveCampaigns retrieves all ACTIVE campaigns for the store.
func (p *PostgresStore) ActiveCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM campaigns WHERE store_id = $1 AND status = $2 ORDER BY priority DESC, id`,
		storeID, string(campaign.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("active campaigns: %w", err)
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// CampaignByID retrieves a single campaign by its id.
func (p *PostgresStore) CampaignByID(ctx context.Context, id string) (*campaign.Campaign, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("campaign by id: %w", err)
	}
	return &c, nil
}

// ListCampaigns retrieves all campaigns for the store, any status.
func (p *PostgresStore) ListCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM campaigns WHERE store_id = $1 ORDER BY priority DESC, id`, storeID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// UpsertCampaign creates or updates a campaign keyed by id.
func (p *PostgresStore) UpsertCampaign(ctx context.Context, c campaign.Campaign) error {
	rulesJSON, err := json.Marshal(c.TargetRules)
	if err != nil {
		return fmt.Errorf("marshal target rules: %w", err)
	}
	cappingJSON, err := json.Marshal(c.Capping)
	if err != nil {
		return fmt.Errorf("marshal capping: %w", err)
	}
	segmentsJSON, err := json.Marshal(c.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
INSERT INTO campaigns (id, store_id, name, priority, status, template_type,
    target_rules, experiment_id, variant_key, capping, segments, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
ON CONFLICT (id) DO UPDATE SET
    store_id = EXCLUDED.store_id,
    name = EXCLUDED.name,
    priority = EXCLUDED.priority,
    status = EXCLUDED.status,
    template_type = EXCLUDED.template_type,
    target_rules = EXCLUDED.target_rules,
    experiment_id = EXCLUDED.experiment_id,
    variant_key = EXCLUDED.variant_key,
    capping = EXCLUDED.capping,
    segments = EXCLUDED.segments,
    updated_at = now()`,
		c.ID, c.StoreID, c.Name, c.Priority, string(c.Status), c.TemplateType,
		rulesJSON, c.ExperimentID, c.VariantKey, cappingJSON, segmentsJSON)
	if err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}
	return nil
}

// DeleteCampaign removes a campaign. Idempotent.
func (p *PostgresStore) DeleteCampaign(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func scanCampaigns(rows pgx.Rows) ([]campaign.Campaign, error) {
	campaigns := make([]campaign.Campaign, 0, 8)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func scanCampaign(row pgx.Row) (campaign.Campaign, error) {
	var (
		c            campaign.Campaign
		status       string
		rulesJSON    []byte
		cappingJSON  []byte
		segmentsJSON []byte
		createdAt    time.Time
		updatedAt    time.Time
	)
	err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Priority, &status, &c.TemplateType,
		&rulesJSON, &c.ExperimentID, &c.VariantKey, &cappingJSON, &segmentsJSON, &createdAt, &updatedAt)
	if err != nil {
		return campaign.Campaign{}, err
	}
	c.Status = campaign.Status(status)
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &c.TargetRules); err != nil {
			return campaign.Campaign{}, fmt.Errorf("unmarshal target rules: %w", err)
		}
	}
	if len(cappingJSON) > 0 {
		if err := json.Unmarshal(cappingJSON, &c.Capping); err != nil {
			return campaign.Campaign{}, fmt.Errorf("unmarshal capping: %w", err)
		}
	}
	if len(segmentsJSON) > 0 {
		if err := json.Unmarshal(segmentsJSON, &c.Segments); err != nil {
			return campaign.Campaign{}, fmt.Errorf("unmarshal segments: %w", err)
		}
	}
	return c, nil
}
