package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"neighborly/internal/offer/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// InMemoryStore is a thread-safe in-memory offer store.
type InMemoryStore struct {
	mu     sync.RWMutex
	offers map[id.OfferID]*models.Offer
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{offers: make(map[id.OfferID]*models.Offer)}
}

func (s *InMemoryStore) Create(ctx context.Context, requestID id.ItemID, offeror id.UserID, message string) (*models.Offer, error) {
	offer, err := models.NewOffer(id.NewOfferID(), requestID, offeror, message, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[offer.ID] = offer
	clone := *offer
	return &clone, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, offerID id.OfferID) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offer, ok := s.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offerID, sentinel.ErrNotFound)
	}
	clone := *offer
	return &clone, nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID id.ItemID) ([]*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Offer, 0)
	for _, offer := range s.offers {
		if offer.RequestID == requestID {
			clone := *offer
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Accept moves an active offer to accepted. Accepting an accepted offer returns it
// unchanged; accepting a removed offer fails with sentinel.ErrInvalidState.
func (s *InMemoryStore) Accept(ctx context.Context, offerID id.OfferID) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offerID, sentinel.ErrNotFound)
	}
	if _, ok := offer.Accept(requestcontext.Now(ctx)); !ok {
		return nil, fmt.Errorf("accept %s offer: %w", offer.Status, sentinel.ErrInvalidState)
	}
	clone := *offer
	return &clone, nil
}

// Withdraw moves an active offer to removed.
func (s *InMemoryStore) Withdraw(ctx context.Context, offerID id.OfferID) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offerID, sentinel.ErrNotFound)
	}
	if _, ok := offer.Remove(requestcontext.Now(ctx)); !ok {
		return nil, fmt.Errorf("withdraw %s offer: %w", offer.Status, sentinel.ErrInvalidState)
	}
	clone := *offer
	return &clone, nil
}

// DeleteAllForRequest removes every offer referencing requestID and returns how many
// were removed. Zero is not an error.
func (s *InMemoryStore) DeleteAllForRequest(_ context.Context, requestID id.ItemID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for offerID, offer := range s.offers {
		if offer.RequestID == requestID {
			delete(s.offers, offerID)
			removed++
		}
	}
	return removed, nil
}

// CountActiveByRequests returns the number of active offers per request.
func (s *InMemoryStore) CountActiveByRequests(_ context.Context, requestIDs []id.ItemID) (map[id.ItemID]int, error) {
	wanted := make(map[id.ItemID]struct{}, len(requestIDs))
	for _, requestID := range requestIDs {
		wanted[requestID] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.ItemID]int, len(requestIDs))
	for _, offer := range s.offers {
		if _, ok := wanted[offer.RequestID]; ok && offer.Status == models.StatusActive {
			counts[offer.RequestID]++
		}
	}
	return counts, nil
}
