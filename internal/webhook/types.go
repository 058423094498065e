package webhook

import (
	"time"
)

// Event types delivered to subscribed endpoints.
const (
	EventCampaignCreated = "campaign.created"
	EventCampaignUpdated = "campaign.updated"
	EventCampaignDeleted = "campaign.deleted"
	EventLeadCaptured    = "lead.captured"
	EventPrizeClaimed    = "prize.claimed"
)

// Event is the payload sent to subscribed webhook endpoints.
type Event struct {
	Type      string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	StoreID   string    `json:"storeId"`
	Resource  Resource  `json:"resource"`
	Data      EventData `json:"data,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// Resource identifies what the event is about.
type Resource struct {
	Type string `json:"type"` // "campaign" or "lead"
	ID   string `json:"id"`
}

// EventData carries the before/after state for mutation events and the
// captured fields for lead events.
type EventData struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// Metadata carries request context for traceability.
type Metadata struct {
	RequestID string `json:"requestId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// Subscription is one configured webhook endpoint.
type Subscription struct {
	URL            string
	Secret         string
	Events         []string // empty means all
	MaxRetries     int
	TimeoutSeconds int
}

// Wants reports whether the subscription is interested in the event type.
func (s Subscription) Wants(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
