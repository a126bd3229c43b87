// Package domain holds the typed identifiers shared by every concept store.
//
// Each identifier wraps a UUID in its own named type so a listing id can never be
// passed where an offer id is expected. Parsing happens once at the trust boundary
// (HTTP handlers); everything inside the service layer works with typed values.
package domain

import (
	"github.com/google/uuid"

	dErrors "neighborly/pkg/domain-errors"
)

type (
	UserID   uuid.UUID
	ItemID   uuid.UUID
	OfferID  uuid.UUID
	ClaimID  uuid.UUID
	RecordID uuid.UUID
)

func (u UserID) String() string   { return uuid.UUID(u).String() }
func (i ItemID) String() string   { return uuid.UUID(i).String() }
func (o OfferID) String() string  { return uuid.UUID(o).String() }
func (c ClaimID) String() string  { return uuid.UUID(c).String() }
func (r RecordID) String() string { return uuid.UUID(r).String() }

func (u UserID) IsNil() bool   { return uuid.UUID(u) == uuid.Nil }
func (i ItemID) IsNil() bool   { return uuid.UUID(i) == uuid.Nil }
func (o OfferID) IsNil() bool  { return uuid.UUID(o) == uuid.Nil }
func (c ClaimID) IsNil() bool  { return uuid.UUID(c) == uuid.Nil }
func (r RecordID) IsNil() bool { return uuid.UUID(r) == uuid.Nil }

// NewItemID, NewOfferID, NewClaimID and NewRecordID mint fresh random identifiers.
func NewItemID() ItemID     { return ItemID(uuid.New()) }
func NewOfferID() OfferID   { return OfferID(uuid.New()) }
func NewClaimID() ClaimID   { return ClaimID(uuid.New()) }
func NewRecordID() RecordID { return RecordID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s, "item ID")
	return ItemID(u), err
}

func ParseOfferID(s string) (OfferID, error) {
	u, err := parseUUID(s, "offer ID")
	return OfferID(u), err
}

func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s, "claim ID")
	return ClaimID(u), err
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "expiration record ID")
	return RecordID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs with CodeInvalidInput.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be nil")
	}
	return u, nil
}

// Text marshalling keeps identifiers in canonical string form in JSON and logs.

func (u UserID) MarshalText() ([]byte, error)   { return uuid.UUID(u).MarshalText() }
func (i ItemID) MarshalText() ([]byte, error)   { return uuid.UUID(i).MarshalText() }
func (o OfferID) MarshalText() ([]byte, error)  { return uuid.UUID(o).MarshalText() }
func (c ClaimID) MarshalText() ([]byte, error)  { return uuid.UUID(c).MarshalText() }
func (r RecordID) MarshalText() ([]byte, error) { return uuid.UUID(r).MarshalText() }

func (u *UserID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(u).UnmarshalText(b) }
func (i *ItemID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(i).UnmarshalText(b) }
func (o *OfferID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(o).UnmarshalText(b) }
func (c *ClaimID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(c).UnmarshalText(b) }
func (r *RecordID) UnmarshalText(b []byte) error { return (*uuid.UUID)(r).UnmarshalText(b) }
