// Package store holds tag associations between items and free-form labels.
package store

import (
	"context"
	"sort"
	"sync"

	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
)

type itemKey struct {
	kind   itemmodels.Kind
	itemID id.ItemID
}

type InMemoryStore struct {
	mu     sync.RWMutex
	labels map[itemKey]map[string]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{labels: make(map[itemKey]map[string]struct{})}
}

// Associate adds labels to the item. Existing associations are kept.
func (s *InMemoryStore) Associate(_ context.Context, kind itemmodels.Kind, itemID id.ItemID, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := itemKey{kind, itemID}
	set, ok := s.labels[key]
	if !ok {
		set = make(map[string]struct{}, len(labels))
		s.labels[key] = set
	}
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return nil
}

func (s *InMemoryStore) ListByItem(_ context.Context, kind itemmodels.Kind, itemID id.ItemID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.labels[itemKey{kind, itemID}]
	out := make([]string, 0, len(set))
	for label := range set {
		out = append(out, label)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryStore) RemoveAllForItem(_ context.Context, kind itemmodels.Kind, itemID id.ItemID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := itemKey{kind, itemID}
	n := len(s.labels[key])
	delete(s.labels, key)
	return n, nil
}
