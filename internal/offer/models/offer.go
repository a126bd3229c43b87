package models

import (
	"strings"
	"time"

	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
)

// Status is the lifecycle state of an offer: active -> accepted, or active -> removed.
type Status string

const (
	StatusActive   Status = "active"
	StatusAccepted Status = "accepted"
	StatusRemoved  Status = "removed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusAccepted, StatusRemoved:
		return true
	}
	return false
}

const maxMessageLength = 1000

// Offer is a user's proposal to fulfill a Request.
type Offer struct {
	ID         id.OfferID `json:"id"`
	RequestID  id.ItemID  `json:"request_id"`
	OfferorID  id.UserID  `json:"offeror_id"`
	Message    string     `json:"message,omitempty"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

func NewOffer(offerID id.OfferID, requestID id.ItemID, offeror id.UserID, message string, now time.Time) (*Offer, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request is required")
	}
	if offeror.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "offeror is required")
	}
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLength {
		return nil, dErrors.New(dErrors.CodeValidation, "message is too long")
	}
	return &Offer{
		ID:        offerID,
		RequestID: requestID,
		OfferorID: offeror,
		Message:   message,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Accept transitions active -> accepted. It returns false when the offer was already
// accepted and ok=false with no change when the offer was removed.
func (o *Offer) Accept(now time.Time) (changed bool, ok bool) {
	switch o.Status {
	case StatusActive:
		o.Status = StatusAccepted
		o.AcceptedAt = &now
		o.UpdatedAt = now
		return true, true
	case StatusAccepted:
		return false, true
	default:
		return false, false
	}
}

// Remove transitions active -> removed. Accepted offers cannot be removed.
func (o *Offer) Remove(now time.Time) (changed bool, ok bool) {
	switch o.Status {
	case StatusActive:
		o.Status = StatusRemoved
		o.UpdatedAt = now
		return true, true
	case StatusRemoved:
		return false, true
	default:
		return false, false
	}
}
