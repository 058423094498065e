// Package audit records who changed which campaign and how. Entries
// flow through an async service so admin handlers never block on the
// sink, and sensitive values are redacted before they leave the
// process.
package audit

import (
	"sync/atomic"
	"time"
)

// Actions recorded against campaigns.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	StoreID    string         `json:"storeId"`
	CampaignID string         `json:"campaignId"`
	Actor      string         `json:"actor"`
	RequestID  string         `json:"requestId,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
}

// Sink receives completed audit entries.
type Sink interface {
	Write(Entry)
}

// Service buffers entries and hands them to the sink from a background
// worker. A full buffer drops entries, mutations must never wait on
// audit I/O.
type Service struct {
	sink    Sink
	queue   chan Entry
	done    chan struct{}
	closed  int32
	dropped atomic.Int64

	now func() time.Time
}

// NewService creates a started audit service over the sink.
func NewService(sink Sink) *Service {
	s := &Service{
		sink:  sink,
		queue: make(chan Entry, 256),
		done:  make(chan struct{}),
		now:   time.Now,
	}
	go s.worker()
	return s
}

// Record queues an entry. Non-blocking.
func (s *Service) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	e.Before = redact(e.Before)
	e.After = redact(e.After)
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many entries were discarded due to a full buffer.
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// Close drains the buffer and stops the worker. Safe to call more than
// once; implements io.Closer.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.queue)
	<-s.done
	return nil
}

func (s *Service) worker() {
	defer close(s.done)
	for e := range s.queue {
		s.sink.Write(e)
	}
}

// sensitiveKeys are redacted from before/after snapshots.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apiKey":        true,
	"authorization": true,
	"cookie":        true,
	"email":         true,
}

func redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if sensitiveKeys[k] {
			out[k] = "[REDACTED]"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}
