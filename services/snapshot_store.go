package services

import (
	"sync"
	"time"

	"cart-recovery-service/models"
)

// SnapshotStore holds the latest snapshot for API readers.
type SnapshotStore struct {
	mu         sync.RWMutex
	snapshot   models.Snapshot
	receivedAt time.Time
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) Set(snapshot models.Snapshot, at time.Time) {
	cp := make(models.Snapshot, len(snapshot))
	copy(cp, snapshot)

	s.mu.Lock()
	s.snapshot = cp
	s.receivedAt = at
	s.mu.Unlock()
}

// Get returns a copy of the slice; records share item slices with the stored
// snapshot and must not be mutated.
func (s *SnapshotStore) Get() (models.Snapshot, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(models.Snapshot, len(s.snapshot))
	copy(cp, s.snapshot)
	return cp, s.receivedAt
}
