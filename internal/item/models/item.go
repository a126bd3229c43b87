package models

import (
	"strings"
	"time"

	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
)

// Kind is the tagged variant distinguishing the two item concepts subject to expiration.
type Kind string

const (
	KindListing Kind = "listing"
	KindRequest Kind = "request"
)

// Kinds lists every item kind in sweep order.
var Kinds = []Kind{KindListing, KindRequest}

func (k Kind) IsValid() bool {
	return k == KindListing || k == KindRequest
}

func (k Kind) String() string {
	return string(k)
}

// Plural is the collection name used for tables and routes.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// ParseKind accepts the singular or plural form of a kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown item kind: "+s)
	}
	return k, nil
}

const (
	maxTitleLength       = 120
	maxDescriptionLength = 2000
)

// Item is a Listing (something offered) or a Request (something wanted).
//
// Invariants:
//   - OwnerID is set at creation and never changes
//   - Quantity is never negative
//   - Hidden is monotonic: once true it stays true. No operation clears it.
type Item struct {
	ID          id.ItemID `json:"id"`
	Kind        Kind      `json:"kind"`
	OwnerID     id.UserID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Quantity    int       `json:"quantity"`
	Hidden      bool      `json:"hidden"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Fields are the user-supplied descriptive fields of a new item.
type Fields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

func (f *Fields) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	if f.Quantity == 0 {
		f.Quantity = 1
	}
}

func (f Fields) Validate() error {
	if f.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(f.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if len(f.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if f.Quantity < 1 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

// NewItem builds a visible item, enforcing field invariants.
func NewItem(itemID id.ItemID, kind Kind, owner id.UserID, fields Fields, now time.Time) (*Item, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid item kind")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner is required")
	}
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid item fields")
	}
	return &Item{
		ID:          itemID,
		Kind:        kind,
		OwnerID:     owner,
		Title:       fields.Title,
		Description: fields.Description,
		Quantity:    fields.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Patch is a partial edit. It deliberately has no Hidden field.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Quantity == nil
}

// Apply validates and applies a patch.
func (i *Item) Apply(p Patch, now time.Time) error {
	next := Fields{Title: i.Title, Description: i.Description, Quantity: i.Quantity}
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Quantity != nil {
		next.Quantity = *p.Quantity
	}
	if err := next.Validate(); err != nil {
		return err
	}
	i.Title = next.Title
	i.Description = next.Description
	i.Quantity = next.Quantity
	i.UpdatedAt = now
	return nil
}

// Hide marks the item hidden. Returns false if it was already hidden.
func (i *Item) Hide(now time.Time) bool {
	if i.Hidden {
		return false
	}
	i.Hidden = true
	i.UpdatedAt = now
	return true
}

// CanReserve reports whether qty units can be taken from the item.
func (i *Item) CanReserve(qty int) error {
	if qty < 1 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	if qty > i.Quantity {
		return dErrors.New(dErrors.CodeConflict, "requested quantity exceeds remaining quantity")
	}
	return nil
}
