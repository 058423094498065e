package gate

import (
	"encoding/json"
	"sync"
)

// MemoryStorage is an in-memory Storage implementation. It serializes
// the record through JSON the same way a localStorage-backed
// implementation would, so persistence bugs show up in tests.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

// Load returns the stored record, or an empty record when nothing has
// been saved yet.
func (m *MemoryStorage) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(m.data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Save stores the record.
func (m *MemoryStorage) Save(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = b
	m.mu.Unlock()
	return nil
}
