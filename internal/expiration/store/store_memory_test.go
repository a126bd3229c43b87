package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
)

type ExpirationStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func (s *ExpirationStoreSuite) SetupTest() {
	s.store = NewInMemory(itemmodels.KindRequest)
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestExpirationStoreSuite(t *testing.T) {
	suite.Run(t, new(ExpirationStoreSuite))
}

func (s *ExpirationStoreSuite) TestAllocateTwiceIsAnUpdate() {
	itemID := id.NewItemID()
	first, err := s.store.Allocate(s.ctx, itemID, s.now.Add(time.Hour))
	s.Require().NoError(err)

	second, err := s.store.Allocate(s.ctx, itemID, s.now.Add(48*time.Hour))
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID, "one active record per item")
	s.Equal(s.now.Add(48*time.Hour), second.ExpiresAt)
	s.Len(s.store.records, 1)
}

func (s *ExpirationStoreSuite) TestFindEditDelete() {
	itemID := id.NewItemID()
	rec, err := s.store.Allocate(s.ctx, itemID, s.now)
	s.Require().NoError(err)
	s.Equal(itemmodels.KindRequest, rec.Kind)

	found, err := s.store.FindByItem(s.ctx, itemID)
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)

	edited, err := s.store.Edit(s.ctx, rec.ID, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(s.now.Add(time.Minute), edited.ExpiresAt)

	s.Require().NoError(s.store.Delete(s.ctx, rec.ID))
	_, err = s.store.FindByItem(s.ctx, itemID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, rec.ID), sentinel.ErrNotFound)
	_, err = s.store.Edit(s.ctx, rec.ID, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ExpirationStoreSuite) TestListExpired() {
	past := id.NewItemID()
	exact := id.NewItemID()
	future := id.NewItemID()
	_, _ = s.store.Allocate(s.ctx, exact, s.now)
	_, _ = s.store.Allocate(s.ctx, past, s.now.Add(-24*time.Hour))
	_, _ = s.store.Allocate(s.ctx, future, s.now.Add(time.Nanosecond))

	expired, err := s.store.ListExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(expired, 2)
	s.Equal(past, expired[0].ItemID)
	s.Equal(exact, expired[1].ItemID)
}
