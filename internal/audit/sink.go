package audit

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogSink writes audit entries as structured log events. The default
// sink: durable enough for most installs, and log shippers already
// know where to find it.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink over the given logger.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(e Entry) {
	s.log.Info().
		Str("audit_action", e.Action).
		Str("store", e.StoreID).
		Str("campaign", e.CampaignID).
		Str("actor", e.Actor).
		Str("request_id", e.RequestID).
		Str("ip", e.IPAddress).
		Interface("before", e.Before).
		Interface("after", e.After).
		Time("at", e.Timestamp).
		Msg("admin audit")
}

// MemorySink collects entries for tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(e Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

// Entries returns a copy of everything written so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
