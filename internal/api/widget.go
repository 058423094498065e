package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/store"
	"github.com/popsmart/campaign-engine/internal/telemetry"
	"github.com/popsmart/campaign-engine/internal/webhook"
)

// visitorCookie is the server-issued fallback identity for visitors
// whose widget did not generate its own id.
const visitorCookie = "ps_vid"

type activeCampaignsResponse struct {
	Campaigns   []clientCampaign `json:"campaigns"`
	VisitorID   string           `json:"visitorId"`
	EvaluatedAt string           `json:"evaluatedAt"`
}

// handleActiveCampaigns answers the widget's per-page-view question:
// which campaigns may this visitor see right now. It always responds
// 200 with a list; an unresolvable shop yields an empty one.
func (s *Server) handleActiveCampaigns(w http.ResponseWriter, r *http.Request) {
	rc := s.requestContext(w, r)

	if rc.IsPreview() {
		s.respondPreview(w, r, rc)
		return
	}

	if rc.StoreID == "" {
		s.respondCampaigns(w, rc, nil)
		return
	}

	active, err := s.store.ActiveCampaigns(r.Context(), rc.StoreID)
	if err != nil {
		// Campaign source failure degrades to an empty list rather than
		// a 5xx the widget would choke on.
		s.log.Error().Err(err).Str("store", rc.StoreID).Msg("loading active campaigns failed")
		s.respondCampaigns(w, rc, nil)
		return
	}
	telemetry.ActiveCampaigns.Set(float64(len(active)))

	winners := s.pipe.Filter(r.Context(), active, rc)
	s.respondCampaigns(w, rc, winners)
}

// respondPreview returns the previewed campaign regardless of status,
// targeting or caps, as a singleton list.
func (s *Server) respondPreview(w http.ResponseWriter, r *http.Request, rc campaign.RequestContext) {
	c, err := s.store.CampaignByID(r.Context(), rc.PreviewID)
	if err != nil || (rc.StoreID != "" && c.StoreID != rc.StoreID) {
		s.respondCampaigns(w, rc, nil)
		return
	}
	preview := *c
	preview.Preview = true
	s.respondCampaigns(w, rc, []campaign.Campaign{preview})
}

func (s *Server) respondCampaigns(w http.ResponseWriter, rc campaign.RequestContext, campaigns []campaign.Campaign) {
	writeJSON(w, http.StatusOK, activeCampaignsResponse{
		Campaigns:   toClientCampaigns(campaigns),
		VisitorID:   rc.VisitorID,
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

type shownRequest struct {
	VisitorID string `json:"visitorId"`
	SessionID string `json:"sessionId"`
}

// handleShown records an actual popup render against the campaign's
// frequency budget. The widget calls it after the popup is on screen,
// which keeps "may be admitted" separate from "was in fact shown".
func (s *Server) handleShown(w http.ResponseWriter, r *http.Request) {
	var req shownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.VisitorID == "" {
		if cookie, err := r.Cookie(visitorCookie); err == nil {
			req.VisitorID = cookie.Value
		}
	}
	if req.VisitorID == "" {
		writeError(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	c, err := s.store.CampaignByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "campaign lookup failed")
		return
	}

	rc := campaign.RequestContext{
		StoreID:   c.StoreID,
		VisitorID: req.VisitorID,
		SessionID: req.SessionID,
	}
	if err := s.pipe.RecordShown(r.Context(), *c, rc); err != nil {
		// Recording against an unreachable counter store is the same
		// degradation as a failed-open check: log it, tell the widget ok.
		s.log.Warn().Err(err).Str("campaign", c.ID).Msg("record shown failed")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type claimRequest struct {
	VisitorID string `json:"visitorId"`
	Email     string `json:"email"`
}

type claimResponse struct {
	PrizeID    string `json:"prizeId"`
	PrizeLabel string `json:"prizeLabel"`
	Code       string `json:"code,omitempty"`
}

// handleClaim runs the server-side weighted prize draw for a gamified
// campaign and, when the prize carries a discount, issues a code
// through the commerce collaborator. The client never chooses the
// prize.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := s.store.CampaignByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "campaign lookup failed")
		return
	}
	if !c.IsGamified() || len(c.Segments) == 0 {
		writeError(w, http.StatusBadRequest, "campaign has no prizes")
		return
	}

	// A repeated claim must not re-roll the wheel: the code issuer is
	// idempotent per claimant, so a fresh draw could pair one prize's
	// label with another prize's code.
	claimant := req.Email
	if claimant == "" {
		claimant = req.VisitorID
	}
	cacheKey := c.ID + "|" + claimant
	if claimant != "" {
		s.claimMu.Lock()
		prior, ok := s.claims[cacheKey]
		s.claimMu.Unlock()
		if ok {
			writeJSON(w, http.StatusOK, prior)
			return
		}
	}

	seg, err := s.prizes.Select(c.Segments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "campaign has no prizes")
		return
	}
	telemetry.PrizeDraws.WithLabelValues(c.TemplateType).Inc()

	resp := claimResponse{PrizeID: seg.ID, PrizeLabel: seg.Label}
	if seg.Discount != nil && s.issuer != nil && req.Email != "" {
		code, err := s.issuer.IssueCode(r.Context(), issueRequest(*c, req.Email, *seg.Discount))
		if err != nil {
			s.log.Error().Err(err).Str("campaign", c.ID).Msg("discount code issuance failed")
		} else {
			resp.Code = code
		}
	}
	if claimant != "" {
		s.claimMu.Lock()
		s.claims[cacheKey] = resp
		s.claimMu.Unlock()
	}

	s.dispatchEvent(webhook.Event{
		Type:     webhook.EventPrizeClaimed,
		StoreID:  c.StoreID,
		Resource: webhook.Resource{Type: "campaign", ID: c.ID},
		Data: webhook.EventData{After: map[string]any{
			"prizeId":    seg.ID,
			"prizeLabel": seg.Label,
			"codeIssued": resp.Code != "",
		}},
	})
	if req.Email != "" {
		s.dispatchEvent(webhook.Event{
			Type:     webhook.EventLeadCaptured,
			StoreID:  c.StoreID,
			Resource: webhook.Resource{Type: "lead", ID: req.VisitorID},
			Data: webhook.EventData{After: map[string]any{
				"campaignId": c.ID,
				"email":      req.Email,
			}},
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// requestContext assembles the per-request visitor context from query
// parameters and the visitor cookie, issuing a cookie id on first
// contact.
func (s *Server) requestContext(w http.ResponseWriter, r *http.Request) campaign.RequestContext {
	q := r.URL.Query()

	visitorID := strings.TrimSpace(q.Get("visitorId"))
	if visitorID == "" {
		if cookie, err := r.Cookie(visitorCookie); err == nil {
			visitorID = cookie.Value
		} else {
			visitorID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookie,
				Value:    visitorID,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				SameSite: http.SameSiteLaxMode,
			})
		}
	}

	var segments []string
	if raw := q.Get("segments"); raw != "" {
		segments = strings.Split(raw, ",")
	}

	return campaign.RequestContext{
		StoreID:    strings.TrimSpace(q.Get("shop")),
		VisitorID:  visitorID,
		SessionID:  q.Get("sessionId"),
		PageType:   q.Get("pageType"),
		PageURL:    q.Get("pageUrl"),
		DeviceType: q.Get("deviceType"),
		Segments:   segments,
		PreviewID:  q.Get("previewId"),
	}
}
