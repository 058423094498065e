package frequency

import (
	"context"
	"sync"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses maps guarded by a mutex and is suitable for development,
// testing, or single-instance deployments where counter state may be
// lost on restart.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]*expiringCount
	days       map[string]*expiringCount
	lastShown  map[string]expiringTime
	totals     map[string]*expiringCount
	sessionTTL time.Duration
	dayWindow  DayWindow

	// now is injectable for tests.
	now func() time.Time
}

type expiringCount struct {
	n         int
	expiresAt time.Time
}

type expiringTime struct {
	at        time.Time
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory counter store.
func NewMemoryStore(sessionTTL time.Duration, window DayWindow) *MemoryStore {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &MemoryStore{
		sessions:   make(map[string]*expiringCount),
		days:       make(map[string]*expiringCount),
		lastShown:  make(map[string]expiringTime),
		totals:     make(map[string]*expiringCount),
		sessionTTL: sessionTTL,
		dayWindow:  window,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (m *MemoryStore) SetClock(now func() time.Time) { m.now = now }

// CheckAndReserve reads the key's counters and evaluates the caps.
// The memory store has no unreachable failure mode, so Degraded is
// never set.
func (m *MemoryStore) CheckAndReserve(_ context.Context, key Key, caps campaign.FrequencyCapping) Decision {
	if !caps.Enabled {
		return Decision{Allowed: true}
	}
	m.mu.Lock()
	counters := m.snapshot(key)
	m.mu.Unlock()
	return Evaluate(caps, counters, m.now())
}

// RecordShown atomically increments the key's counters.
func (m *MemoryStore) RecordShown(_ context.Context, key Key, caps campaign.FrequencyCapping) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if caps.Enabled {
		m.bump(m.sessions, sessionKey(key), now, m.sessionTTL)
		m.bump(m.days, dayKey(key), now, m.dayWindow.TTL(now))
		// Last-shown must outlive both the day window and the cooldown,
		// matching the Redis store's TTL rule.
		ttl := m.dayWindow.TTL(now)
		if cd := time.Duration(caps.CooldownSeconds) * time.Second; cd > ttl {
			ttl = cd
		}
		m.lastShown[lastKey(key)] = expiringTime{at: now, expiresAt: now.Add(ttl)}
	}
	m.bump(m.totals, totalKey(key.StoreID, key.VisitorID), now, m.dayWindow.TTL(now))
	return nil
}

// VisitorImpressions returns the visitor's store-wide impression count.
func (m *MemoryStore) VisitorImpressions(_ context.Context, storeID, visitorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.totals[totalKey(storeID, visitorID)]; ok && m.now().Before(c.expiresAt) {
		return c.n, nil
	}
	return 0, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }

// Sweep drops expired counters. Counters otherwise expire lazily on
// read; Sweep exists for long-running processes that want to bound
// memory.
func (m *MemoryStore) Sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, counts := range []map[string]*expiringCount{m.sessions, m.days, m.totals} {
		for k, c := range counts {
			if !now.Before(c.expiresAt) {
				delete(counts, k)
			}
		}
	}
	for k, t := range m.lastShown {
		if !now.Before(t.expiresAt) {
			delete(m.lastShown, k)
		}
	}
}

// snapshot must be called with the lock held.
func (m *MemoryStore) snapshot(key Key) Counters {
	now := m.now()
	var counters Counters
	if c, ok := m.sessions[sessionKey(key)]; ok && now.Before(c.expiresAt) {
		counters.Session = c.n
	}
	if c, ok := m.days[dayKey(key)]; ok && now.Before(c.expiresAt) {
		counters.Day = c.n
	}
	if t, ok := m.lastShown[lastKey(key)]; ok && now.Before(t.expiresAt) {
		counters.LastShownAt = t.at
	}
	return counters
}

// bump must be called with the lock held. TTL is anchored at first
// increment so a rolling window does not extend itself.
func (m *MemoryStore) bump(counts map[string]*expiringCount, k string, now time.Time, ttl time.Duration) {
	if c, ok := counts[k]; ok && now.Before(c.expiresAt) {
		c.n++
		return
	}
	counts[k] = &expiringCount{n: 1, expiresAt: now.Add(ttl)}
}

func sessionKey(key Key) string {
	sid := key.SessionID
	if sid == "" {
		sid = "visitor"
	}
	return key.StoreID + ":" + key.VisitorID + ":" + key.DedupKey + ":s:" + sid
}

func dayKey(key Key) string {
	return key.StoreID + ":" + key.VisitorID + ":" + key.DedupKey + ":d"
}

func lastKey(key Key) string {
	return key.StoreID + ":" + key.VisitorID + ":" + key.DedupKey + ":t"
}

func totalKey(storeID, visitorID string) string {
	return storeID + ":" + visitorID + ":total"
}
