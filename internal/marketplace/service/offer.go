package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	itemmodels "neighborly/internal/item/models"
	offermodels "neighborly/internal/offer/models"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/sentinel"
)

// AcceptOffer accepts an offer on behalf of the author of its Request.
//
// The parent Request is hidden before the offer is marked accepted; sibling offers are
// left exactly as they were. When marking fails after the hide, the error is returned
// and a retry converges because both writes are idempotent.
func (s *Service) AcceptOffer(ctx context.Context, offerID id.OfferID, user id.UserID) (offer *offermodels.Offer, err error) {
	ctx, span := s.startSpan(ctx, "accept_offer", attribute.String("offer.id", offerID.String()))
	defer func() { endSpan(span, err) }()

	offer, err = s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, translate(err, "offer")
	}
	requests := s.items[itemmodels.KindRequest]
	if err = requests.AssertAuthorIs(ctx, offer.RequestID, user); err != nil {
		if errors.Is(err, sentinel.ErrNotAllowed) {
			return nil, dErrors.Wrap(err, dErrors.CodeForbidden, "only the request author may accept offers")
		}
		return nil, translate(err, "request")
	}
	if offer.Status == offermodels.StatusRemoved {
		err = dErrors.New(dErrors.CodeConflict, "offer has been withdrawn")
		return nil, err
	}
	wasActive := offer.Status == offermodels.StatusActive

	if err = requests.SetHidden(ctx, offer.RequestID); err != nil {
		return nil, translate(err, "request")
	}
	accepted, err := s.offers.Accept(ctx, offerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "request hidden but offer not accepted",
			"offer_id", offerID.String(),
			"request_id", offer.RequestID.String(),
			"error", err,
		)
		return nil, translate(err, "offer")
	}

	if wasActive {
		s.metrics.IncrementOffersAccepted()
	}
	s.logAudit(ctx, auditEntry{
		event:   audit.EventOfferAccepted,
		user:    user,
		kind:    itemmodels.KindRequest,
		subject: offer.RequestID.String(),
	}, "offer_id", offerID.String())
	return accepted, nil
}

// MakeOffer records a proposal to fulfill a visible Request written by someone else.
func (s *Service) MakeOffer(ctx context.Context, requestID id.ItemID, user id.UserID, message string) (*offermodels.Offer, error) {
	request, err := s.items[itemmodels.KindRequest].FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, "request")
	}
	if request.OwnerID == user {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot make an offer on your own request")
	}
	if request.Hidden {
		return nil, dErrors.New(dErrors.CodeConflict, "request is no longer open")
	}
	offer, err := s.offers.Create(ctx, requestID, user, message)
	if err != nil {
		return nil, translate(err, "offer")
	}
	s.logAudit(ctx, auditEntry{
		event:   audit.EventOfferMade,
		user:    user,
		kind:    itemmodels.KindRequest,
		subject: requestID.String(),
	}, "offer_id", offer.ID.String())
	return offer, nil
}

// WithdrawOffer lets the offeror retract an offer that has not been accepted.
func (s *Service) WithdrawOffer(ctx context.Context, offerID id.OfferID, user id.UserID) (*offermodels.Offer, error) {
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, translate(err, "offer")
	}
	if offer.OfferorID != user {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the offeror may withdraw an offer")
	}
	withdrawn, err := s.offers.Withdraw(ctx, offerID)
	if err != nil {
		return nil, translate(err, "offer")
	}
	s.logAudit(ctx, auditEntry{
		event:   audit.EventOfferWithdrawn,
		user:    user,
		kind:    itemmodels.KindRequest,
		subject: offer.RequestID.String(),
	}, "offer_id", offerID.String())
	return withdrawn, nil
}

// ListOffers returns every offer on a Request. Only its author may see them.
func (s *Service) ListOffers(ctx context.Context, requestID id.ItemID, user id.UserID) ([]*offermodels.Offer, error) {
	if err := s.items[itemmodels.KindRequest].AssertAuthorIs(ctx, requestID, user); err != nil {
		return nil, translate(err, "request")
	}
	offers, err := s.offers.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, translate(err, "offer")
	}
	return offers, nil
}
