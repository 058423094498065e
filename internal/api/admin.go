package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/popsmart/campaign-engine/internal/audit"
	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/store"
	"github.com/popsmart/campaign-engine/internal/targeting"
	"github.com/popsmart/campaign-engine/internal/webhook"
)

// handleListCampaigns returns all campaigns for a store, any status.
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	storeID := strings.TrimSpace(r.URL.Query().Get("store"))
	if storeID == "" {
		writeError(w, http.StatusBadRequest, "store query parameter is required")
		return
	}
	campaigns, err := s.store.ListCampaigns(r.Context(), storeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing campaigns failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

// handleUpsertCampaign creates or updates a campaign.
func (s *Server) handleUpsertCampaign(w http.ResponseWriter, r *http.Request) {
	var c campaign.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := validateCampaign(c); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var before *campaign.Campaign
	if existing, err := s.store.CampaignByID(r.Context(), c.ID); err == nil {
		before = existing
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "campaign lookup failed")
		return
	}

	if err := s.store.UpsertCampaign(r.Context(), c); err != nil {
		s.log.Error().Err(err).Str("campaign", c.ID).Msg("upsert failed")
		writeError(w, http.StatusInternalServerError, "upsert failed")
		return
	}

	action := audit.ActionCreated
	eventType := webhook.EventCampaignCreated
	if before != nil {
		action = audit.ActionUpdated
		eventType = webhook.EventCampaignUpdated
	}
	s.recordAudit(audit.Entry{
		Action:     action,
		StoreID:    c.StoreID,
		CampaignID: c.ID,
		Actor:      "api_key",
		RequestID:  middleware.GetReqID(r.Context()),
		IPAddress:  r.RemoteAddr,
		Before:     campaignState(before),
		After:      campaignState(&c),
	})
	s.dispatchEvent(webhook.Event{
		Type:     eventType,
		StoreID:  c.StoreID,
		Resource: webhook.Resource{Type: "campaign", ID: c.ID},
		Data:     webhook.EventData{Before: campaignState(before), After: campaignState(&c)},
		Metadata: webhook.Metadata{RequestID: middleware.GetReqID(r.Context()), IPAddress: r.RemoteAddr},
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleDeleteCampaign removes a campaign. Idempotent.
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var before *campaign.Campaign
	if existing, err := s.store.CampaignByID(r.Context(), id); err == nil {
		before = existing
	}

	if err := s.store.DeleteCampaign(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	// Deleting an id that never existed audits nothing.
	if before != nil {
		s.recordAudit(audit.Entry{
			Action:     audit.ActionDeleted,
			StoreID:    before.StoreID,
			CampaignID: id,
			Actor:      "api_key",
			RequestID:  middleware.GetReqID(r.Context()),
			IPAddress:  r.RemoteAddr,
			Before:     campaignState(before),
		})
		s.dispatchEvent(webhook.Event{
			Type:     webhook.EventCampaignDeleted,
			StoreID:  before.StoreID,
			Resource: webhook.Resource{Type: "campaign", ID: id},
			Data:     webhook.EventData{Before: campaignState(before)},
			Metadata: webhook.Metadata{RequestID: middleware.GetReqID(r.Context()), IPAddress: r.RemoteAddr},
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// campaignState projects a campaign into the generic map shape used in
// audit entries and webhook payloads.
func campaignState(c *campaign.Campaign) map[string]any {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil
	}
	return state
}

func validateCampaign(c campaign.Campaign) string {
	if c.ID == "" {
		return "id is required"
	}
	if c.StoreID == "" {
		return "storeId is required"
	}
	switch c.Status {
	case campaign.StatusActive, campaign.StatusPaused, campaign.StatusDraft, campaign.StatusArchived:
	default:
		return "status must be one of ACTIVE, PAUSED, DRAFT, ARCHIVED"
	}
	if c.ExperimentID != "" && c.VariantKey == "" {
		return "variantKey is required for experiment campaigns"
	}
	if expr := c.TargetRules.Audience.Expression; expr != "" {
		if err := targeting.ValidateExpression(expr); err != nil {
			return "audience expression: " + err.Error()
		}
	}
	for _, seg := range c.Segments {
		if seg.Probability < 0 {
			return "segment probabilities must be non-negative"
		}
	}
	return ""
}
