// Package store holds the expiration-record store. Each instance is parameterized by
// item kind so listing and request records never mix.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// InMemoryStore keeps at most one record per item.
type InMemoryStore struct {
	kind    itemmodels.Kind
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
	byItem  map[id.ItemID]id.RecordID
}

func NewInMemory(kind itemmodels.Kind) *InMemoryStore {
	return &InMemoryStore{
		kind:    kind,
		records: make(map[id.RecordID]*models.Record),
		byItem:  make(map[id.ItemID]id.RecordID),
	}
}

func (s *InMemoryStore) Kind() itemmodels.Kind {
	return s.kind
}

// Allocate creates the item's record, or retargets the existing one.
func (s *InMemoryStore) Allocate(ctx context.Context, itemID id.ItemID, expiresAt time.Time) (*models.Record, error) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if recordID, ok := s.byItem[itemID]; ok {
		rec := s.records[recordID]
		rec.ExpiresAt = expiresAt.UTC()
		rec.UpdatedAt = now
		clone := *rec
		return &clone, nil
	}
	rec := &models.Record{
		ID:        id.NewRecordID(),
		Kind:      s.kind,
		ItemID:    itemID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[rec.ID] = rec
	s.byItem[itemID] = rec.ID
	clone := *rec
	return &clone, nil
}

func (s *InMemoryStore) FindByItem(_ context.Context, itemID id.ItemID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recordID, ok := s.byItem[itemID]
	if !ok {
		return nil, fmt.Errorf("%s expiration for %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	clone := *s.records[recordID]
	return &clone, nil
}

func (s *InMemoryStore) Edit(ctx context.Context, recordID id.RecordID, expiresAt time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("%s expiration %s: %w", s.kind, recordID, sentinel.ErrNotFound)
	}
	rec.ExpiresAt = expiresAt.UTC()
	rec.UpdatedAt = requestcontext.Now(ctx)
	clone := *rec
	return &clone, nil
}

func (s *InMemoryStore) Delete(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("%s expiration %s: %w", s.kind, recordID, sentinel.ErrNotFound)
	}
	delete(s.records, recordID)
	delete(s.byItem, rec.ItemID)
	return nil
}

// ListExpired returns records whose target is at or before now, oldest first.
func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0)
	for _, rec := range s.records {
		if rec.IsExpired(now) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}
