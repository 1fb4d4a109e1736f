package ratelimit

// Store holds attempt records by key. Implementations are not required to be
// safe for concurrent use; the Limiter serialises access.
type Store interface {
	Get(key string) (AttemptRecord, bool)
	Set(key string, rec AttemptRecord)
	Delete(key string)
	Clear()
}

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	records map[string]AttemptRecord
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]AttemptRecord)}
}

// Get returns the record for key and whether one exists.
func (s *MemoryStore) Get(key string) (AttemptRecord, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Set replaces the record for key.
func (s *MemoryStore) Set(key string, rec AttemptRecord) {
	s.records[key] = rec
}

// Delete removes key; unknown keys are ignored.
func (s *MemoryStore) Delete(key string) {
	delete(s.records, key)
}

// Clear removes every record.
func (s *MemoryStore) Clear() {
	s.records = make(map[string]AttemptRecord)
}
