package frequency

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// RedisStore is the production Store implementation backed by a shared
// Redis. Counter increments use INCR, which is atomic server-side, so
// concurrent requests for one key can overcount by at most the number
// of in-flight renders but never undercount.
type RedisStore struct {
	rdb        *redis.Client
	sessionTTL time.Duration
	dayWindow  DayWindow
	log        zerolog.Logger

	now func() time.Time
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(rdb *redis.Client, sessionTTL time.Duration, window DayWindow, log zerolog.Logger) *RedisStore {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &RedisStore{
		rdb:        rdb,
		sessionTTL: sessionTTL,
		dayWindow:  window,
		log:        log,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *RedisStore) SetClock(now func() time.Time) { r.now = now }

// CheckAndReserve reads the key's counters in one pipeline round trip
// and evaluates the caps. If Redis is unreachable the check fails open:
// Allowed=true with Degraded set, so a counter-store outage degrades
// capping rather than blanking every storefront.
func (r *RedisStore) CheckAndReserve(ctx context.Context, key Key, caps campaign.FrequencyCapping) Decision {
	if !caps.Enabled {
		return Decision{Allowed: true}
	}

	pipe := r.rdb.Pipeline()
	sessionCmd := pipe.Get(ctx, r.key(sessionKey(key)))
	dayCmd := pipe.Get(ctx, r.key(dayKey(key)))
	lastCmd := pipe.Get(ctx, r.key(lastKey(key)))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		r.log.Warn().Err(err).Str("dedupKey", key.DedupKey).Msg("counter store unreachable, failing open")
		return Decision{Allowed: true, Degraded: true}
	}

	counters := Counters{
		Session: intResult(sessionCmd),
		Day:     intResult(dayCmd),
	}
	if unix := int64Result(lastCmd); unix > 0 {
		counters.LastShownAt = time.Unix(unix, 0)
	}
	return Evaluate(caps, counters, r.now())
}

// RecordShown increments the key's counters. TTLs are set only when the
// counter is created (NX) so windows are anchored at first admission.
func (r *RedisStore) RecordShown(ctx context.Context, key Key, caps campaign.FrequencyCapping) error {
	now := r.now()
	dayTTL := r.dayWindow.TTL(now)

	pipe := r.rdb.TxPipeline()
	if caps.Enabled {
		sk := r.key(sessionKey(key))
		dk := r.key(dayKey(key))
		pipe.Incr(ctx, sk)
		pipe.ExpireNX(ctx, sk, r.sessionTTL)
		pipe.Incr(ctx, dk)
		pipe.ExpireNX(ctx, dk, dayTTL)

		lastTTL := dayTTL
		if cooldown := time.Duration(caps.CooldownSeconds) * time.Second; cooldown > lastTTL {
			lastTTL = cooldown
		}
		pipe.Set(ctx, r.key(lastKey(key)), now.Unix(), lastTTL)
	}
	tk := r.key(totalKey(key.StoreID, key.VisitorID))
	pipe.Incr(ctx, tk)
	pipe.ExpireNX(ctx, tk, dayTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record shown: %w", err)
	}
	return nil
}

// VisitorImpressions returns the visitor's store-wide impression count
// for the current day window.
func (r *RedisStore) VisitorImpressions(ctx context.Context, storeID, visitorID string) (int, error) {
	val, err := r.rdb.Get(ctx, r.key(totalKey(storeID, visitorID))).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("visitor impressions: %w", err)
	}
	n, _ := strconv.Atoi(val)
	return n, nil
}

// Close releases the underlying Redis client.
func (r *RedisStore) Close() error { return r.rdb.Close() }

func (r *RedisStore) key(suffix string) string { return "freq:" + suffix }

func intResult(cmd *redis.StringCmd) int {
	val, err := cmd.Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(val)
	return n
}

func int64Result(cmd *redis.StringCmd) int64 {
	val, err := cmd.Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseInt(val, 10, 64)
	return n
}
