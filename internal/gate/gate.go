// Package gate mirrors the admission invariants on the widget side of
// the network boundary. The storefront fetches a candidate list once,
// then re-checks locally between renders: a single popup may be active,
// dismissed campaigns stay hidden, and closed campaigns enter a local
// cooldown. State is keyed by experiment id when present so sibling
// variants share one local budget, and persists across page loads
// through an injectable storage backend.
package gate

import (
	"sort"
	"sync"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// State of one campaign in the gate's lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateShowing   State = "showing"
	StateDismissed State = "dismissed"
	StateCooldown  State = "cooldown"
)

// Record is the persisted gate state: one record per browser, keyed by
// campaign-or-experiment id.
type Record struct {
	Dismissed []string             `json:"dismissed"`
	Cooldowns map[string]time.Time `json:"cooldowns"`
}

// Storage persists the gate record across page loads. Implementations
// model browser local storage; see MemoryStorage for tests.
type Storage interface {
	Load() (Record, error)
	Save(Record) error
}

// Option configures a Gate.
type Option func(*Gate)

// WithCallbacks sets the show/close side-effect hooks.
func WithCallbacks(onShow, onClose func(campaign.Campaign)) Option {
	return func(g *Gate) {
		g.onShow = onShow
		g.onClose = onClose
	}
}

// WithCooldown sets the local cooldown applied when a popup is closed.
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) { g.cooldown = d }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate enforces the single-active-popup invariant and local
// dismiss/cooldown sets. The page event loop is single-threaded, but
// the gate still locks so embedded use from multiple goroutines stays
// correct.
type Gate struct {
	mu      sync.Mutex
	storage Storage
	rec     Record

	active    string // gate key of the campaign currently showing
	activeCmp campaign.Campaign

	cooldown time.Duration
	onShow   func(campaign.Campaign)
	onClose  func(campaign.Campaign)
	now      func() time.Time
}

// New creates a Gate backed by the given storage. A load failure
// starts the gate empty rather than blocking the page.
func New(storage Storage, opts ...Option) *Gate {
	g := &Gate{
		storage:  storage,
		cooldown: 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	rec, err := storage.Load()
	if err == nil {
		g.rec = rec
	}
	if g.rec.Cooldowns == nil {
		g.rec.Cooldowns = make(map[string]time.Time)
	}
	return g
}

// Key returns the identity a campaign is gated under: experiment id
// when present, campaign id otherwise.
func Key(c campaign.Campaign) string {
	if c.ExperimentID != "" {
		return c.ExperimentID
	}
	return c.ID
}

// StateOf reports the campaign's current gate state.
func (g *Gate) StateOf(c campaign.Campaign) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateOf(Key(c))
}

func (g *Gate) stateOf(key string) State {
	if g.active == key {
		return StateShowing
	}
	for _, d := range g.rec.Dismissed {
		if d == key {
			return StateDismissed
		}
	}
	if until, ok := g.rec.Cooldowns[key]; ok && g.now().Before(until) {
		return StateCooldown
	}
	return StateIdle
}

// CanDisplay reports whether the campaign may be rendered right now.
// Preview campaigns always may; otherwise the campaign must be Idle
// and no other campaign may be showing.
func (g *Gate) CanDisplay(c campaign.Campaign) bool {
	if c.Preview {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != "" {
		return false
	}
	return g.stateOf(Key(c)) == StateIdle
}

// Show transitions the campaign to Showing and fires the onShow hook.
// It returns false, leaving the current popup untouched, if another
// campaign is already active or the campaign is dismissed or cooling
// down.
func (g *Gate) Show(c campaign.Campaign) bool {
	g.mu.Lock()
	if !c.Preview {
		if g.active != "" || g.stateOf(Key(c)) != StateIdle {
			g.mu.Unlock()
			return false
		}
	} else if g.active != "" {
		g.mu.Unlock()
		return false
	}
	g.active = Key(c)
	g.activeCmp = c
	onShow := g.onShow
	g.mu.Unlock()

	if onShow != nil {
		onShow(c)
	}
	return true
}

// Close dismisses the active campaign, records its dismissal and
// cooldown, persists the record, and fires the onClose hook. Closing
// with nothing active is a no-op.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.active == "" {
		g.mu.Unlock()
		return
	}
	key := g.active
	closed := g.activeCmp
	g.active = ""
	g.activeCmp = campaign.Campaign{}

	if !closed.Preview {
		g.rec.Dismissed = appendUnique(g.rec.Dismissed, key)
		g.rec.Cooldowns[key] = g.now().Add(g.cooldown)
		// Persistence is best-effort: a storage failure must not break
		// the page, the in-memory state already reflects the dismissal.
		_ = g.storage.Save(g.rec)
	}
	onClose := g.onClose
	g.mu.Unlock()

	if onClose != nil {
		onClose(closed)
	}
}

// AvailableCampaigns filters the fetched candidate list by CanDisplay
// and orders it by priority descending, a local mirror of the server
// ranking that stays correct as dismissals accumulate within the page
// session.
func (g *Gate) AvailableCampaigns(list []campaign.Campaign) []campaign.Campaign {
	available := make([]campaign.Campaign, 0, len(list))
	for _, c := range list {
		if g.CanDisplay(c) {
			available = append(available, c)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].Priority != available[j].Priority {
			return available[i].Priority > available[j].Priority
		}
		return available[i].ID < available[j].ID
	})
	return available
}

func appendUnique(list []string, s string) []string {
	for _, item := range list {
		if item == s {
			return list
		}
	}
	return append(list, s)
}
