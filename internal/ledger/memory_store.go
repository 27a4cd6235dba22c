package ledger

import (
	"slices"
	"sync"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
)

// MemoryStore keeps the ledger in process memory only.
type MemoryStore struct {
	mu      sync.Mutex
	records []model.VerificationRecord
	// base is read until the first Save; it is never written.
	base  Store
	saved bool
}

// NewMemoryStore returns a MemoryStore seeded with records (newest first).
func NewMemoryStore(records ...model.VerificationRecord) *MemoryStore {
	return &MemoryStore{records: slices.Clone(records)}
}

// NewOverlayStore returns a MemoryStore that loads from base but keeps every
// Save in memory. Load errors from base pass through unchanged.
func NewOverlayStore(base Store) *MemoryStore {
	return &MemoryStore{base: base}
}

// Load returns a copy of the stored records.
func (s *MemoryStore) Load() ([]model.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil && !s.saved {
		return s.base.Load()
	}
	return slices.Clone(s.records), nil
}

// Save replaces the stored records with a copy of records.
func (s *MemoryStore) Save(records []model.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.Clone(records)
	s.saved = true
	return nil
}
