package models

import (
	"time"

	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
)

// Claim records that a user took some quantity of a Listing. Once created it is
// independent of the listing.
type Claim struct {
	ID         id.ClaimID `json:"id"`
	ListingID  id.ItemID  `json:"listing_id"`
	ClaimantID id.UserID  `json:"claimant_id"`
	Quantity   int        `json:"quantity"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewClaim(claimID id.ClaimID, listingID id.ItemID, claimant id.UserID, qty int, now time.Time) (*Claim, error) {
	if listingID.IsNil() || claimant.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing and claimant are required")
	}
	if qty < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	return &Claim{
		ID:         claimID,
		ListingID:  listingID,
		ClaimantID: claimant,
		Quantity:   qty,
		CreatedAt:  now,
	}, nil
}
