// Package frequency implements the shared-counter store behind
// per-visitor frequency caps. Counters (session count, day count, last
// shown timestamp) are addressed by (storeID, visitorID, dedupKey) and
// expire via TTL.
//
// The cap check is split in two: CheckAndReserve only reads counters
// and decides admissibility; RecordShown performs all increments and is
// called once the campaign is actually rendered, not merely eligible.
// Under a double-fired request this can overcount by one, which is the
// tolerated direction; undercounting is never allowed.
package frequency

import (
	"context"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// Key addresses one visitor's counters for one dedup identity.
// SessionID scopes the session counter; when empty the session counter
// degrades to a visitor-scoped rolling window.
type Key struct {
	StoreID   string
	VisitorID string
	DedupKey  string
	SessionID string
}

// Counters is a read-only snapshot of one key's frequency state.
type Counters struct {
	Session     int       `json:"session"`
	Day         int       `json:"day"`
	LastShownAt time.Time `json:"lastShownAt"`
}

// Deny reasons reported on Decision.
const (
	DenySessionCap = "session_cap"
	DenyDayCap     = "day_cap"
	DenyCooldown   = "cooldown"
)

// Decision is the outcome of a cap check. Degraded is set when the
// backing store was unreachable and the check failed open.
type Decision struct {
	Allowed  bool
	Degraded bool
	Reason   string
	Counters Counters
}

// Store is the shared-counter contract. Implementations must be safe
// for concurrent use; increments must be atomic so that concurrent
// requests for the same key never undercount.
//
// CheckAndReserve never returns an error: when the backend is
// unreachable it fails open (Allowed=true, Degraded=true), preferring
// to over-show rather than block all campaigns store-wide.
type Store interface {
	CheckAndReserve(ctx context.Context, key Key, caps campaign.FrequencyCapping) Decision
	RecordShown(ctx context.Context, key Key, caps campaign.FrequencyCapping) error

	// VisitorImpressions returns the visitor's store-wide impression
	// count within the current day window, for global impression caps.
	VisitorImpressions(ctx context.Context, storeID, visitorID string) (int, error)

	Close() error
}

// DayWindow selects how the day counter resets.
type DayWindow string

const (
	// DayWindowRolling expires day counters 24h after first admission.
	DayWindowRolling DayWindow = "rolling"
	// DayWindowCalendar expires day counters at the next UTC midnight.
	DayWindowCalendar DayWindow = "calendar"
)

// TTL returns the remaining lifetime for a day counter created at now.
func (w DayWindow) TTL(now time.Time) time.Duration {
	if w == DayWindowCalendar {
		midnight := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		return midnight.Sub(now.UTC())
	}
	return 24 * time.Hour
}

// Evaluate applies the cap configuration to a counter snapshot. It is
// the single source of truth for admissibility; both store
// implementations read counters and delegate here.
func Evaluate(caps campaign.FrequencyCapping, counters Counters, now time.Time) Decision {
	if !caps.Enabled {
		return Decision{Allowed: true, Counters: counters}
	}
	if caps.MaxTriggersPerSession > 0 && counters.Session >= caps.MaxTriggersPerSession {
		return Decision{Reason: DenySessionCap, Counters: counters}
	}
	if caps.MaxTriggersPerDay > 0 && counters.Day >= caps.MaxTriggersPerDay {
		return Decision{Reason: DenyDayCap, Counters: counters}
	}
	if caps.CooldownSeconds > 0 && !counters.LastShownAt.IsZero() {
		cooldown := time.Duration(caps.CooldownSeconds) * time.Second
		if now.Sub(counters.LastShownAt) < cooldown {
			return Decision{Reason: DenyCooldown, Counters: counters}
		}
	}
	return Decision{Allowed: true, Counters: counters}
}
