package frequency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

var testKey = Key{StoreID: "shop-1", VisitorID: "visitor-1", DedupKey: "camp-1", SessionID: "sess-1"}

func cappedOnce() campaign.FrequencyCapping {
	return campaign.FrequencyCapping{Enabled: true, MaxTriggersPerSession: 1}
}

func TestMemoryStore_DisabledCapsAlwaysAllowed(t *testing.T) {
	m := NewMemoryStore(time.Minute, DayWindowRolling)
	caps := campaign.FrequencyCapping{Enabled: false}

	for i := 0; i < 10; i++ {
		d := m.CheckAndReserve(context.Background(), testKey, caps)
		if !d.Allowed {
			t.Fatal("disabled caps must always allow")
		}
	}
}

func TestMemoryStore_SessionCap(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowRolling)
	ctx := context.Background()
	caps := campaign.FrequencyCapping{Enabled: true, MaxTriggersPerSession: 2}

	for i := 0; i < 2; i++ {
		if d := m.CheckAndReserve(ctx, testKey, caps); !d.Allowed {
			t.Fatalf("show %d should be allowed", i+1)
		}
		if err := m.RecordShown(ctx, testKey, caps); err != nil {
			t.Fatalf("record shown: %v", err)
		}
	}

	d := m.CheckAndReserve(ctx, testKey, caps)
	if d.Allowed {
		t.Error("Expected session cap to deny third show")
	}
	if d.Reason != DenySessionCap {
		t.Errorf("Expected reason %q, got %q", DenySessionCap, d.Reason)
	}
}

func TestMemoryStore_DayCap(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowRolling)
	ctx := context.Background()
	caps := campaign.FrequencyCapping{Enabled: true, MaxTriggersPerDay: 1}

	// Different sessions, same day window.
	k1 := testKey
	k1.SessionID = "sess-1"
	k2 := testKey
	k2.SessionID = "sess-2"

	if d := m.CheckAndReserve(ctx, k1, caps); !d.Allowed {
		t.Fatal("first show should be allowed")
	}
	if err := m.RecordShown(ctx, k1, caps); err != nil {
		t.Fatalf("record shown: %v", err)
	}

	d := m.CheckAndReserve(ctx, k2, caps)
	if d.Allowed {
		t.Error("Expected day cap to span sessions")
	}
	if d.Reason != DenyDayCap {
		t.Errorf("Expected reason %q, got %q", DenyDayCap, d.Reason)
	}
}

func TestMemoryStore_CooldownWindow(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowRolling)
	ctx := context.Background()
	caps := campaign.FrequencyCapping{Enabled: true, CooldownSeconds: 60}

	now := time.Unix(1_700_000_000, 0)
	m.SetClock(func() time.Time { return now })

	if err := m.RecordShown(ctx, testKey, caps); err != nil {
		t.Fatalf("record shown: %v", err)
	}

	// Inside the window: denied.
	now = now.Add(30 * time.Second)
	d := m.CheckAndReserve(ctx, testKey, caps)
	if d.Allowed {
		t.Error("Expected denial inside cooldown")
	}
	if d.Reason != DenyCooldown {
		t.Errorf("Expected reason %q, got %q", DenyCooldown, d.Reason)
	}

	// Just past the window: allowed again.
	now = now.Add(30*time.Second + time.Second)
	if d := m.CheckAndReserve(ctx, testKey, caps); !d.Allowed {
		t.Error("Expected allowance after cooldown elapsed")
	}
}

func TestMemoryStore_SessionWindowExpires(t *testing.T) {
	m := NewMemoryStore(10*time.Minute, DayWindowRolling)
	ctx := context.Background()
	caps := cappedOnce()

	now := time.Unix(1_700_000_000, 0)
	m.SetClock(func() time.Time { return now })

	_ = m.RecordShown(ctx, testKey, caps)
	if d := m.CheckAndReserve(ctx, testKey, caps); d.Allowed {
		t.Fatal("Expected session cap to deny")
	}

	// A new session window starts after the TTL.
	now = now.Add(11 * time.Minute)
	if d := m.CheckAndReserve(ctx, testKey, caps); !d.Allowed {
		t.Error("Expected allowance after session window expired")
	}
}

func TestMemoryStore_SweepReclaimsLastShown(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowRolling)
	ctx := context.Background()
	caps := campaign.FrequencyCapping{Enabled: true, CooldownSeconds: 60}

	now := time.Unix(1_700_000_000, 0)
	m.SetClock(func() time.Time { return now })

	if err := m.RecordShown(ctx, testKey, caps); err != nil {
		t.Fatalf("record shown: %v", err)
	}

	// Both the day window and the cooldown have long elapsed.
	now = now.Add(48 * time.Hour)
	m.Sweep()

	m.mu.Lock()
	remaining := len(m.lastShown)
	m.mu.Unlock()
	if remaining != 0 {
		t.Errorf("Expected Sweep to reclaim last-shown entries, %d remain", remaining)
	}
}

func TestMemoryStore_LastShownOutlivesDayWindowDuringCooldown(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowCalendar)
	ctx := context.Background()
	// Cooldown longer than the time left in the calendar day.
	caps := campaign.FrequencyCapping{Enabled: true, CooldownSeconds: 3600}

	// 23:30 UTC: 30 minutes to midnight.
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	if err := m.RecordShown(ctx, testKey, caps); err != nil {
		t.Fatalf("record shown: %v", err)
	}

	// Past midnight but still inside the cooldown.
	now = now.Add(45 * time.Minute)
	d := m.CheckAndReserve(ctx, testKey, caps)
	if d.Allowed {
		t.Error("Expected cooldown to deny across the day boundary")
	}
	if d.Reason != DenyCooldown {
		t.Errorf("Expected reason %q, got %q", DenyCooldown, d.Reason)
	}
}

func TestMemoryStore_ConcurrentRecordNeverUndercounts(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowRolling)
	ctx := context.Background()
	caps := campaign.FrequencyCapping{Enabled: true, MaxTriggersPerSession: 1000}

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = m.RecordShown(ctx, testKey, caps)
		}()
	}
	wg.Wait()

	d := m.CheckAndReserve(ctx, testKey, caps)
	if d.Counters.Session != n {
		t.Errorf("Expected %d recorded shows, got %d", n, d.Counters.Session)
	}
}

func TestMemoryStore_VisitorImpressions(t *testing.T) {
	m := NewMemoryStore(30*time.Minute, DayWindowRolling)
	ctx := context.Background()

	// Store-wide total counts even for uncapped campaigns.
	_ = m.RecordShown(ctx, testKey, campaign.FrequencyCapping{Enabled: false})
	_ = m.RecordShown(ctx, testKey, cappedOnce())

	total, err := m.VisitorImpressions(ctx, "shop-1", "visitor-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 impressions, got %d", total)
	}

	other, _ := m.VisitorImpressions(ctx, "shop-1", "someone-else")
	if other != 0 {
		t.Errorf("Expected 0 impressions for unseen visitor, got %d", other)
	}
}

func TestDayWindow_CalendarTTL(t *testing.T) {
	// 23:30 UTC: calendar window has 30 minutes left.
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	ttl := DayWindowCalendar.TTL(now)
	if ttl != 30*time.Minute {
		t.Errorf("Expected 30m to midnight, got %v", ttl)
	}

	if DayWindowRolling.TTL(now) != 24*time.Hour {
		t.Error("Expected rolling window TTL of 24h")
	}
}

func TestEvaluate_CapPrecedence(t *testing.T) {
	caps := campaign.FrequencyCapping{
		Enabled:               true,
		MaxTriggersPerSession: 1,
		MaxTriggersPerDay:     2,
	}
	now := time.Now()

	d := Evaluate(caps, Counters{Session: 1, Day: 1}, now)
	if d.Allowed || d.Reason != DenySessionCap {
		t.Errorf("Expected session cap denial, got %+v", d)
	}

	d = Evaluate(caps, Counters{Session: 0, Day: 2}, now)
	if d.Allowed || d.Reason != DenyDayCap {
		t.Errorf("Expected day cap denial, got %+v", d)
	}

	d = Evaluate(caps, Counters{}, now)
	if !d.Allowed {
		t.Errorf("Expected fresh counters to be allowed, got %+v", d)
	}
}
