package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ItemStore,ExpirationStore,OfferStore,ClaimStore,TagStore,AuditPublisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	claimmodels "neighborly/internal/claim/models"
	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	"neighborly/internal/marketplace/service/mocks"
	offermodels "neighborly/internal/offer/models"
	"neighborly/internal/platform/metrics"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/audit"
	auditpublisher "neighborly/pkg/platform/audit/publisher"
	auditmemory "neighborly/pkg/platform/audit/store/memory"
	"neighborly/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctrl              *gomock.Controller
	mockListings      *mocks.MockItemStore
	mockRequests      *mocks.MockItemStore
	mockListingExpiry *mocks.MockExpirationStore
	mockRequestExpiry *mocks.MockExpirationStore
	mockOffers        *mocks.MockOfferStore
	mockClaims        *mocks.MockClaimStore
	mockTags          *mocks.MockTagStore
	auditStore        *auditmemory.InMemoryStore
	metrics           *metrics.Metrics
	service           *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSubTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockListings = mocks.NewMockItemStore(s.ctrl)
	s.mockRequests = mocks.NewMockItemStore(s.ctrl)
	s.mockListingExpiry = mocks.NewMockExpirationStore(s.ctrl)
	s.mockRequestExpiry = mocks.NewMockExpirationStore(s.ctrl)
	s.mockOffers = mocks.NewMockOfferStore(s.ctrl)
	s.mockClaims = mocks.NewMockClaimStore(s.ctrl)
	s.mockTags = mocks.NewMockTagStore(s.ctrl)
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(Stores{
		Listings:           s.mockListings,
		Requests:           s.mockRequests,
		ListingExpirations: s.mockListingExpiry,
		RequestExpirations: s.mockRequestExpiry,
		Offers:             s.mockOffers,
		Claims:             s.mockClaims,
		Tags:               s.mockTags,
	},
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(auditpublisher.NewPublisher(s.auditStore)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) auditActions() []string {
	events, err := s.auditStore.ListAll(context.Background())
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func newItem(kind itemmodels.Kind, owner id.UserID) *itemmodels.Item {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &itemmodels.Item{
		ID:        id.NewItemID(),
		Kind:      kind,
		OwnerID:   owner,
		Title:     "Ladder",
		Quantity:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *ServiceSuite) TestNew_RequiresStores() {
	_, err := New(Stores{})
	s.Require().Error(err)
}

func (s *ServiceSuite) TestCreateWithExpiration() {
	ctx := context.Background()
	owner := id.UserID(uuid.New())
	target := expmodels.Target{Date: "2030-01-01", Time: "09:30"}
	expiresAt := time.Date(2030, 1, 1, 9, 30, 0, 0, time.UTC)
	cmd := CreateItemCommand{
		Kind:       itemmodels.KindListing,
		Owner:      owner,
		Fields:     itemmodels.Fields{Title: " Ladder ", Quantity: 1},
		Expiration: target,
		Tags:       []string{"Garden Tools", "garden-tools", "DIY"},
	}

	s.Run("writes item, expiration record and tags in order", func() {
		item := newItem(itemmodels.KindListing, owner)
		record := &expmodels.Record{ID: id.NewRecordID(), Kind: itemmodels.KindListing, ItemID: item.ID, ExpiresAt: expiresAt}
		gomock.InOrder(
			s.mockListings.EXPECT().Create(gomock.Any(), owner, itemmodels.Fields{Title: "Ladder", Quantity: 1}).Return(item, nil),
			s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), item.ID, expiresAt).Return(record, nil),
			s.mockTags.EXPECT().Associate(gomock.Any(), itemmodels.KindListing, item.ID, []string{"garden-tools", "diy"}).Return(nil),
		)

		result, err := s.service.CreateWithExpiration(ctx, cmd)
		s.Require().NoError(err)
		s.Equal(item, result.Item)
		s.Equal(record, result.Expiration)
		s.Equal([]string{"garden-tools", "diy"}, result.Tags)
		s.Equal([]string{string(audit.EventItemCreated)}, s.auditActions())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SagaRuns.WithLabelValues("create_listing", outcomeSucceeded)))
	})

	s.Run("expiration failure deletes the item and surfaces the original error", func() {
		item := newItem(itemmodels.KindListing, owner)
		cause := errors.New("expiration store down")
		gomock.InOrder(
			s.mockListings.EXPECT().Create(gomock.Any(), owner, gomock.Any()).Return(item, nil),
			s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), item.ID, expiresAt).Return(nil, cause),
			s.mockListings.EXPECT().Delete(gomock.Any(), item.ID).Return(nil),
		)

		result, err := s.service.CreateWithExpiration(ctx, cmd)
		s.Require().Error(err)
		s.Nil(result)
		s.ErrorIs(err, cause)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal([]string{string(audit.EventSagaCompensated)}, s.auditActions())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SagaRuns.WithLabelValues("create_listing", outcomeCompensated)))
	})

	s.Run("failed compensation still surfaces the original error", func() {
		item := newItem(itemmodels.KindListing, owner)
		cause := errors.New("expiration store down")
		s.mockListings.EXPECT().Create(gomock.Any(), owner, gomock.Any()).Return(item, nil)
		s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), item.ID, expiresAt).Return(nil, cause)
		s.mockListings.EXPECT().Delete(gomock.Any(), item.ID).Return(errors.New("listing store down"))

		_, err := s.service.CreateWithExpiration(ctx, cmd)
		s.Require().Error(err)
		s.ErrorIs(err, cause)
		s.Equal([]string{string(audit.EventCompensationFailed)}, s.auditActions())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SagaRuns.WithLabelValues("create_listing", outcomeCompensationFailed)))
	})

	s.Run("compensation treats an already deleted item as undone", func() {
		item := newItem(itemmodels.KindListing, owner)
		s.mockListings.EXPECT().Create(gomock.Any(), owner, gomock.Any()).Return(item, nil)
		s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), item.ID, expiresAt).Return(nil, errors.New("boom"))
		s.mockListings.EXPECT().Delete(gomock.Any(), item.ID).Return(sentinel.ErrNotFound)

		_, err := s.service.CreateWithExpiration(ctx, cmd)
		s.Require().Error(err)
		s.Equal([]string{string(audit.EventSagaCompensated)}, s.auditActions())
	})

	s.Run("tag failure is logged and does not fail creation", func() {
		item := newItem(itemmodels.KindListing, owner)
		record := &expmodels.Record{ID: id.NewRecordID(), Kind: itemmodels.KindListing, ItemID: item.ID, ExpiresAt: expiresAt}
		s.mockListings.EXPECT().Create(gomock.Any(), owner, gomock.Any()).Return(item, nil)
		s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), item.ID, expiresAt).Return(record, nil)
		s.mockTags.EXPECT().Associate(gomock.Any(), itemmodels.KindListing, item.ID, gomock.Any()).Return(errors.New("tag store down"))

		result, err := s.service.CreateWithExpiration(ctx, cmd)
		s.Require().NoError(err)
		s.Equal(item, result.Item)
		s.Empty(result.Tags)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SagaStepsSkipped.WithLabelValues("create_listing", "associate_tags")))
	})

	s.Run("item write failure stops before the expiration store", func() {
		s.mockListings.EXPECT().Create(gomock.Any(), owner, gomock.Any()).Return(nil, errors.New("db down"))

		_, err := s.service.CreateWithExpiration(ctx, cmd)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(s.auditActions())
	})

	s.Run("invalid input writes nothing", func() {
		bad := cmd
		bad.Fields = itemmodels.Fields{Title: "   "}
		_, err := s.service.CreateWithExpiration(ctx, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		bad = cmd
		bad.Expiration = expmodels.Target{Date: "01/01/2030"}
		_, err = s.service.CreateWithExpiration(ctx, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		bad = cmd
		bad.Owner = id.UserID{}
		_, err = s.service.CreateWithExpiration(ctx, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		bad = cmd
		bad.Kind = itemmodels.Kind("review")
		_, err = s.service.CreateWithExpiration(ctx, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestDeleteItem() {
	ctx := context.Background()
	owner := id.UserID(uuid.New())
	itemID := id.NewItemID()
	record := &expmodels.Record{ID: id.NewRecordID(), Kind: itemmodels.KindRequest, ItemID: itemID}

	s.Run("request cascade runs in dependency order", func() {
		gomock.InOrder(
			s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil),
			s.mockOffers.EXPECT().DeleteAllForRequest(gomock.Any(), itemID).Return(2, nil),
			s.mockRequestExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(record, nil),
			s.mockRequestExpiry.EXPECT().Delete(gomock.Any(), record.ID).Return(nil),
			s.mockRequests.EXPECT().Delete(gomock.Any(), itemID).Return(nil),
			s.mockTags.EXPECT().RemoveAllForItem(gomock.Any(), itemmodels.KindRequest, itemID).Return(1, nil),
		)

		err := s.service.DeleteItem(ctx, itemmodels.KindRequest, itemID, owner)
		s.Require().NoError(err)
		s.Equal([]string{string(audit.EventItemDeleted)}, s.auditActions())
	})

	s.Run("listing cascade never touches offers", func() {
		s.mockListings.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil)
		s.mockListingExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(nil, sentinel.ErrNotFound)
		s.mockListings.EXPECT().Delete(gomock.Any(), itemID).Return(nil)
		s.mockTags.EXPECT().RemoveAllForItem(gomock.Any(), itemmodels.KindListing, itemID).Return(0, nil)

		err := s.service.DeleteItem(ctx, itemmodels.KindListing, itemID, owner)
		s.Require().NoError(err)
	})

	s.Run("expiration cleanup failure does not block deletion", func() {
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil)
		s.mockRequestExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(nil, errors.New("expiration store down"))
		s.mockOffers.EXPECT().DeleteAllForRequest(gomock.Any(), itemID).Return(0, nil)
		s.mockRequests.EXPECT().Delete(gomock.Any(), itemID).Return(nil)
		s.mockTags.EXPECT().RemoveAllForItem(gomock.Any(), itemmodels.KindRequest, itemID).Return(0, nil)

		err := s.service.DeleteItem(ctx, itemmodels.KindRequest, itemID, owner)
		s.Require().NoError(err)
		s.Equal([]string{string(audit.EventCascadeCleanupFailed), string(audit.EventItemDeleted)}, s.auditActions())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.CascadeCleanupFailures.WithLabelValues("request", "remove_expiration")))
	})

	s.Run("tag cleanup failure does not fail deletion", func() {
		s.mockListings.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil)
		s.mockListingExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(nil, sentinel.ErrNotFound)
		s.mockListings.EXPECT().Delete(gomock.Any(), itemID).Return(nil)
		s.mockTags.EXPECT().RemoveAllForItem(gomock.Any(), itemmodels.KindListing, itemID).Return(0, errors.New("tag store down"))

		err := s.service.DeleteItem(ctx, itemmodels.KindListing, itemID, owner)
		s.Require().NoError(err)
	})

	s.Run("offer removal failure keeps the request and its expiration record", func() {
		cause := errors.New("offer store down")
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil)
		s.mockOffers.EXPECT().DeleteAllForRequest(gomock.Any(), itemID).Return(0, cause)
		// No expiration, item or tag calls are expected: gomock fails on any of them.

		err := s.service.DeleteItem(ctx, itemmodels.KindRequest, itemID, owner)
		s.Require().Error(err)
		s.ErrorIs(err, cause)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		var de *dErrors.Error
		s.Require().ErrorAs(err, &de)
		s.Equal("request operation failed", de.Message)
	})

	s.Run("item delete failure restores the expiration record", func() {
		cause := errors.New("item store down")
		expiresAt := time.Date(2030, 1, 1, 9, 30, 0, 0, time.UTC)
		live := &expmodels.Record{ID: id.NewRecordID(), Kind: itemmodels.KindListing, ItemID: itemID, ExpiresAt: expiresAt}
		gomock.InOrder(
			s.mockListings.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil),
			s.mockListingExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(live, nil),
			s.mockListingExpiry.EXPECT().Delete(gomock.Any(), live.ID).Return(nil),
			s.mockListings.EXPECT().Delete(gomock.Any(), itemID).Return(cause),
			s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), itemID, expiresAt).Return(live, nil),
		)

		err := s.service.DeleteItem(ctx, itemmodels.KindListing, itemID, owner)
		s.Require().ErrorIs(err, cause)
		s.Equal([]string{string(audit.EventSagaCompensated)}, s.auditActions())
	})

	s.Run("non-author is rejected before any write", func() {
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(sentinel.ErrNotAllowed)

		err := s.service.DeleteItem(ctx, itemmodels.KindRequest, itemID, owner)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing item clears orphans and reports not found", func() {
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(sentinel.ErrNotFound)
		s.mockRequestExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(record, nil)
		s.mockRequestExpiry.EXPECT().Delete(gomock.Any(), record.ID).Return(nil)
		s.mockOffers.EXPECT().DeleteAllForRequest(gomock.Any(), itemID).Return(1, nil)
		s.mockTags.EXPECT().RemoveAllForItem(gomock.Any(), itemmodels.KindRequest, itemID).Return(0, nil)

		err := s.service.DeleteItem(ctx, itemmodels.KindRequest, itemID, owner)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSetExpiration() {
	ctx := context.Background()
	owner := id.UserID(uuid.New())
	itemID := id.NewItemID()
	target := expmodels.Target{Date: "2030-02-01", Time: "08:00"}
	expiresAt := time.Date(2030, 2, 1, 8, 0, 0, 0, time.UTC)

	s.Run("existing record is edited in place", func() {
		existing := &expmodels.Record{ID: id.NewRecordID(), Kind: itemmodels.KindListing, ItemID: itemID}
		moved := &expmodels.Record{ID: existing.ID, Kind: itemmodels.KindListing, ItemID: itemID, ExpiresAt: expiresAt}
		gomock.InOrder(
			s.mockListings.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil),
			s.mockListingExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(existing, nil),
			s.mockListingExpiry.EXPECT().Edit(gomock.Any(), existing.ID, expiresAt).Return(moved, nil),
		)

		record, err := s.service.SetExpiration(ctx, itemmodels.KindListing, itemID, owner, target)
		s.Require().NoError(err)
		s.Equal(existing.ID, record.ID)
		s.Equal([]string{string(audit.EventExpirationSet)}, s.auditActions())
	})

	s.Run("missing record is allocated", func() {
		allocated := &expmodels.Record{ID: id.NewRecordID(), Kind: itemmodels.KindListing, ItemID: itemID, ExpiresAt: expiresAt}
		gomock.InOrder(
			s.mockListings.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil),
			s.mockListingExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(nil, sentinel.ErrNotFound),
			s.mockListingExpiry.EXPECT().Allocate(gomock.Any(), itemID, expiresAt).Return(allocated, nil),
		)

		record, err := s.service.SetExpiration(ctx, itemmodels.KindListing, itemID, owner, target)
		s.Require().NoError(err)
		s.Equal(allocated.ID, record.ID)
	})

	s.Run("lookup failure writes nothing", func() {
		s.mockListings.EXPECT().AssertAuthorIs(gomock.Any(), itemID, owner).Return(nil)
		s.mockListingExpiry.EXPECT().FindByItem(gomock.Any(), itemID).Return(nil, errors.New("expiration store down"))

		_, err := s.service.SetExpiration(ctx, itemmodels.KindListing, itemID, owner, target)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestAcceptOffer() {
	ctx := context.Background()
	author := id.UserID(uuid.New())
	requestID := id.NewItemID()
	offer := &offermodels.Offer{
		ID:        id.NewOfferID(),
		RequestID: requestID,
		OfferorID: id.UserID(uuid.New()),
		Status:    offermodels.StatusActive,
	}
	accepted := *offer
	accepted.Status = offermodels.StatusAccepted

	s.Run("hides the request before accepting the offer", func() {
		gomock.InOrder(
			s.mockOffers.EXPECT().FindByID(gomock.Any(), offer.ID).Return(offer, nil),
			s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), requestID, author).Return(nil),
			s.mockRequests.EXPECT().SetHidden(gomock.Any(), requestID).Return(nil),
			s.mockOffers.EXPECT().Accept(gomock.Any(), offer.ID).Return(&accepted, nil),
		)

		got, err := s.service.AcceptOffer(ctx, offer.ID, author)
		s.Require().NoError(err)
		s.Equal(offermodels.StatusAccepted, got.Status)
		s.Equal([]string{string(audit.EventOfferAccepted)}, s.auditActions())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.OffersAccepted))
	})

	s.Run("re-accepting re-applies the hide and succeeds", func() {
		s.mockOffers.EXPECT().FindByID(gomock.Any(), offer.ID).Return(&accepted, nil)
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), requestID, author).Return(nil)
		s.mockRequests.EXPECT().SetHidden(gomock.Any(), requestID).Return(nil)
		s.mockOffers.EXPECT().Accept(gomock.Any(), offer.ID).Return(&accepted, nil)

		_, err := s.service.AcceptOffer(ctx, offer.ID, author)
		s.Require().NoError(err)
		s.Equal(0.0, promtest.ToFloat64(s.metrics.OffersAccepted))
	})

	s.Run("someone other than the request author is forbidden", func() {
		s.mockOffers.EXPECT().FindByID(gomock.Any(), offer.ID).Return(offer, nil)
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), requestID, author).Return(sentinel.ErrNotAllowed)

		_, err := s.service.AcceptOffer(ctx, offer.ID, author)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("withdrawn offer is a conflict and writes nothing", func() {
		removed := *offer
		removed.Status = offermodels.StatusRemoved
		s.mockOffers.EXPECT().FindByID(gomock.Any(), offer.ID).Return(&removed, nil)
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), requestID, author).Return(nil)

		_, err := s.service.AcceptOffer(ctx, offer.ID, author)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown offer is not found", func() {
		s.mockOffers.EXPECT().FindByID(gomock.Any(), offer.ID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.AcceptOffer(ctx, offer.ID, author)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("accept failure after the hide is surfaced", func() {
		cause := errors.New("offer store down")
		s.mockOffers.EXPECT().FindByID(gomock.Any(), offer.ID).Return(offer, nil)
		s.mockRequests.EXPECT().AssertAuthorIs(gomock.Any(), requestID, author).Return(nil)
		s.mockRequests.EXPECT().SetHidden(gomock.Any(), requestID).Return(nil)
		s.mockOffers.EXPECT().Accept(gomock.Any(), offer.ID).Return(nil, cause)

		_, err := s.service.AcceptOffer(ctx, offer.ID, author)
		s.Require().Error(err)
		s.ErrorIs(err, cause)
		s.Empty(s.auditActions())
	})
}

func (s *ServiceSuite) TestClaimListing() {
	ctx := context.Background()
	owner := id.UserID(uuid.New())
	claimant := id.UserID(uuid.New())
	listing := newItem(itemmodels.KindListing, owner)
	listing.Quantity = 5

	s.Run("claim failure releases the reservation", func() {
		cause := errors.New("claim store down")
		gomock.InOrder(
			s.mockListings.EXPECT().FindByID(gomock.Any(), listing.ID).Return(listing, nil),
			s.mockListings.EXPECT().Reserve(gomock.Any(), listing.ID, 2).Return(listing, nil),
			s.mockClaims.EXPECT().Create(gomock.Any(), listing.ID, claimant, 2).Return(nil, cause),
			s.mockListings.EXPECT().Release(gomock.Any(), listing.ID, 2).Return(nil),
		)

		_, err := s.service.ClaimListing(ctx, listing.ID, claimant, 2)
		s.Require().Error(err)
		s.ErrorIs(err, cause)
	})

	s.Run("over-claim is a conflict", func() {
		s.mockListings.EXPECT().FindByID(gomock.Any(), listing.ID).Return(listing, nil)
		s.mockListings.EXPECT().Reserve(gomock.Any(), listing.ID, 9).Return(nil, sentinel.ErrConflict)

		_, err := s.service.ClaimListing(ctx, listing.ID, claimant, 9)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("records the claim", func() {
		claim := &claimmodels.Claim{ID: id.NewClaimID(), ListingID: listing.ID, ClaimantID: claimant, Quantity: 1}
		s.mockListings.EXPECT().FindByID(gomock.Any(), listing.ID).Return(listing, nil)
		s.mockListings.EXPECT().Reserve(gomock.Any(), listing.ID, 1).Return(listing, nil)
		s.mockClaims.EXPECT().Create(gomock.Any(), listing.ID, claimant, 1).Return(claim, nil)

		got, err := s.service.ClaimListing(ctx, listing.ID, claimant, 1)
		s.Require().NoError(err)
		s.Equal(claim, got)
		s.Equal([]string{string(audit.EventClaimCreated)}, s.auditActions())
	})

	s.Run("own listing cannot be claimed", func() {
		s.mockListings.EXPECT().FindByID(gomock.Any(), listing.ID).Return(listing, nil)

		_, err := s.service.ClaimListing(ctx, listing.ID, owner, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
