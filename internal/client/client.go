// Package client is an HTTP client for the campaign-engine API, used
// by the popctl CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// Client is an HTTP client for the campaign-engine API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UpsertCampaign creates or updates a campaign.
func (c *Client) UpsertCampaign(ctx context.Context, cmp campaign.Campaign) error {
	body, err := json.Marshal(cmp)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/admin/campaigns", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

type listResponse struct {
	Campaigns []campaign.Campaign `json:"campaigns"`
}

// ListCampaigns retrieves all campaigns for a store.
func (c *Client) ListCampaigns(ctx context.Context, storeID string) ([]campaign.Campaign, error) {
	u, err := url.Parse(c.BaseURL + "/v1/admin/campaigns")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("store", storeID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Campaigns, nil
}

// GetCampaign retrieves a single campaign by id.
func (c *Client) GetCampaign(ctx context.Context, storeID, id string) (*campaign.Campaign, error) {
	campaigns, err := c.ListCampaigns(ctx, storeID)
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		if campaigns[i].ID == id {
			return &campaigns[i], nil
		}
	}
	return nil, fmt.Errorf("campaign %q not found", id)
}

// DeleteCampaign removes a campaign by id.
func (c *Client) DeleteCampaign(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/v1/admin/campaigns/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// EvalResult is one campaign returned by a dry-run admission request.
type EvalResult struct {
	ID           string `json:"id"`
	TemplateType string `json:"templateType"`
	Priority     int    `json:"priority"`
	ExperimentID string `json:"experimentId,omitempty"`
	VariantKey   string `json:"variantKey,omitempty"`
}

type evalResponse struct {
	Campaigns []EvalResult `json:"campaigns"`
	VisitorID string       `json:"visitorId"`
}

// Evaluate runs the widget admission endpoint for a synthetic context
// and returns the admitted campaigns in rank order.
func (c *Client) Evaluate(ctx context.Context, params map[string]string) ([]EvalResult, error) {
	u, err := url.Parse(c.BaseURL + "/v1/campaigns/active")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var out evalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Campaigns, nil
}
