// Package store holds the Listing and Request concept stores. One implementation serves
// both kinds; each instance is bound to a single kind and never sees the other's records.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// InMemoryStore is a thread-safe in-memory item store for one kind.
type InMemoryStore struct {
	kind  models.Kind
	mu    sync.RWMutex
	items map[id.ItemID]*models.Item
}

// NewInMemory creates an empty store for kind.
func NewInMemory(kind models.Kind) *InMemoryStore {
	return &InMemoryStore{
		kind:  kind,
		items: make(map[id.ItemID]*models.Item),
	}
}

func (s *InMemoryStore) Kind() models.Kind {
	return s.kind
}

func (s *InMemoryStore) Create(ctx context.Context, owner id.UserID, fields models.Fields) (*models.Item, error) {
	item, err := models.NewItem(id.NewItemID(), s.kind, owner, fields, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	clone := *item
	return &clone, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	clone := *item
	return &clone, nil
}

func (s *InMemoryStore) ListByAuthor(_ context.Context, owner id.UserID) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Item, 0)
	for _, item := range s.items {
		if item.OwnerID == owner {
			clone := *item
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Edit(ctx context.Context, itemID id.ItemID, patch models.Patch) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	next := *item
	if err := next.Apply(patch, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	*item = next
	return &next, nil
}

func (s *InMemoryStore) Delete(_ context.Context, itemID id.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	delete(s.items, itemID)
	return nil
}

// SetHidden hides the item. Hiding an already hidden item is a no-op.
func (s *InMemoryStore) SetHidden(ctx context.Context, itemID id.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	item.Hide(requestcontext.Now(ctx))
	return nil
}

// AssertAuthorIs returns sentinel.ErrNotAllowed unless user owns the item.
func (s *InMemoryStore) AssertAuthorIs(_ context.Context, itemID id.ItemID, user id.UserID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	if item.OwnerID != user {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotAllowed)
	}
	return nil
}

// Reserve atomically takes qty units from a visible item.
func (s *InMemoryStore) Reserve(ctx context.Context, itemID id.ItemID, qty int) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	if item.Hidden {
		return nil, fmt.Errorf("%s %s is hidden: %w", s.kind, itemID, sentinel.ErrInvalidState)
	}
	if qty < 1 || qty > item.Quantity {
		return nil, fmt.Errorf("reserve %d of %d: %w", qty, item.Quantity, sentinel.ErrConflict)
	}
	item.Quantity -= qty
	item.UpdatedAt = requestcontext.Now(ctx)
	clone := *item
	return &clone, nil
}

// Release returns qty previously reserved units to the item.
func (s *InMemoryStore) Release(ctx context.Context, itemID id.ItemID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	item.Quantity += qty
	item.UpdatedAt = requestcontext.Now(ctx)
	return nil
}
