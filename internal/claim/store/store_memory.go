package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"neighborly/internal/claim/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]*models.Claim
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{claims: make(map[id.ClaimID]*models.Claim)}
}

func (s *InMemoryStore) Create(ctx context.Context, listingID id.ItemID, claimant id.UserID, qty int) (*models.Claim, error) {
	claim, err := models.NewClaim(id.NewClaimID(), listingID, claimant, qty, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claim.ID] = claim
	clone := *claim
	return &clone, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	clone := *claim
	return &clone, nil
}

func (s *InMemoryStore) ListByListing(_ context.Context, listingID id.ItemID) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Claim, 0)
	for _, claim := range s.claims {
		if claim.ListingID == listingID {
			clone := *claim
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
