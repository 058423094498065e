// Package webhook delivers campaign lifecycle and lead capture events
// to subscribed endpoints. Deliveries are signed with HMAC-SHA256,
// queued off the request path, and retried with exponential backoff.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// queueSize bounds the in-flight event queue. A full queue drops
	// events rather than blocking request handlers.
	queueSize = 1000

	// maxResponseBodySize limits how much of a delivery response is
	// logged (1KB).
	maxResponseBodySize = 1024
)

// Dispatcher fans events out to the configured subscriptions from a
// background worker.
type Dispatcher struct {
	subs   []Subscription
	client *http.Client
	queue  chan Event
	done   chan struct{}
	closed int32
	log    zerolog.Logger

	// sleep is injectable so tests skip real backoff waits.
	sleep func(time.Duration)
}

// NewDispatcher creates a dispatcher over the given subscriptions.
func NewDispatcher(subs []Subscription, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   subs,
		client: &http.Client{Timeout: 10 * time.Second},
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
		log:    log,
		sleep:  time.Sleep,
	}
}

// Start begins processing events from the queue.
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close drains the queue and stops the worker. Safe to call more than
// once; implements io.Closer.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	close(d.queue)
	<-d.done
	return nil
}

// Dispatch queues an event for delivery. Non-blocking: when the queue
// is full the event is dropped and logged.
func (d *Dispatcher) Dispatch(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case d.queue <- event:
	default:
		d.log.Error().
			Str("event", event.Type).
			Str("resource", event.Resource.ID).
			Msg("webhook queue full, dropping event")
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for event := range d.queue {
		for _, sub := range d.subs {
			if sub.Wants(event.Type) {
				d.deliverWithRetry(context.Background(), sub, event)
			}
		}
	}
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, sub Subscription, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error().Err(err).Str("event", event.Type).Msg("marshal webhook payload failed")
		return
	}

	signature := ComputeHMAC(payload, sub.Secret)
	deliveryID := uuid.NewString()
	timeout := time.Duration(sub.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	for attempt := 0; attempt <= sub.MaxRetries; attempt++ {
		start := time.Now()
		statusCode, errMsg := d.deliverOnce(ctx, sub, payload, signature, deliveryID, event.Type, timeout)
		duration := time.Since(start)

		if statusCode >= 200 && statusCode < 300 {
			d.log.Info().
				Str("event", event.Type).
				Str("url", sub.URL).
				Int("status", statusCode).
				Dur("duration", duration).
				Int("attempt", attempt+1).
				Msg("webhook delivered")
			return
		}

		log := d.log.Warn().
			Str("event", event.Type).
			Str("url", sub.URL).
			Int("status", statusCode).
			Str("error", errMsg).
			Int("attempt", attempt+1)
		if attempt < sub.MaxRetries {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			log.Dur("retry_in", backoffDuration).Msg("webhook delivery failed, retrying")
			d.sleep(backoffDuration)
		} else {
			log.Msg("webhook delivery failed permanently")
		}
	}
}

func (d *Dispatcher) deliverOnce(ctx context.Context, sub Subscription, payload []byte, signature, deliveryID, eventType string, timeout time.Duration) (int, string) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Popsmart-Signature", signature)
	req.Header.Set("X-Popsmart-Event", eventType)
	req.Header.Set("X-Popsmart-Delivery", deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
	return resp.StatusCode, ""
}
