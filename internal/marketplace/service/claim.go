package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	claimmodels "neighborly/internal/claim/models"
	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/sentinel"
)

const claimSaga = "claim_listing"

// ClaimListing takes qty units from a Listing and records the claim. The reservation is
// released again if the claim cannot be written.
func (s *Service) ClaimListing(ctx context.Context, listingID id.ItemID, user id.UserID, qty int) (claim *claimmodels.Claim, err error) {
	if qty < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	listings := s.items[itemmodels.KindListing]
	listing, err := listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, translate(err, "listing")
	}
	if listing.OwnerID == user {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot claim your own listing")
	}
	if listing.Hidden {
		return nil, dErrors.New(dErrors.CodeConflict, "listing is no longer available")
	}

	ctx, span := s.startSpan(ctx, claimSaga,
		attribute.String("item.id", listingID.String()),
		attribute.Int("claim.quantity", qty),
	)
	defer func() { endSpan(span, err) }()

	err = s.newSaga(ctx, claimSaga, &runObserver{
		kind:    itemmodels.KindListing,
		user:    user,
		subject: listingID.String,
	}).
		Then(sagaStep("reserve_quantity",
			func(ctx context.Context) error {
				_, err := listings.Reserve(ctx, listingID, qty)
				return err
			},
			func(ctx context.Context) error {
				return listings.Release(ctx, listingID, qty)
			})).
		Then(sagaStep("create_claim", func(ctx context.Context) error {
			c, err := s.claims.Create(ctx, listingID, user, qty)
			if err != nil {
				return err
			}
			claim = c
			return nil
		}, nil)).
		Run(ctx)
	s.recordSagaOutcome(claimSaga, err)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "requested quantity exceeds remaining quantity")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "listing is no longer available")
		}
		return nil, translate(err, "claim")
	}

	s.logAudit(ctx, auditEntry{
		event:   audit.EventClaimCreated,
		user:    user,
		kind:    itemmodels.KindListing,
		subject: listingID.String(),
	}, "claim_id", claim.ID.String(), "quantity", qty)
	return claim, nil
}

// ListClaims returns the claims on a Listing. Only its author may see them.
func (s *Service) ListClaims(ctx context.Context, listingID id.ItemID, user id.UserID) ([]*claimmodels.Claim, error) {
	if err := s.items[itemmodels.KindListing].AssertAuthorIs(ctx, listingID, user); err != nil {
		return nil, translate(err, "listing")
	}
	claims, err := s.claims.ListByListing(ctx, listingID)
	if err != nil {
		return nil, translate(err, "claim")
	}
	return claims, nil
}
