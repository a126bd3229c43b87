package audit

import (
	"context"
	"time"

	id "neighborly/pkg/domain"
)

// EventCategory classifies audit events so sinks can route or retain them differently.
type EventCategory string

const (
	// CategoryActivity covers user-initiated marketplace actions.
	CategoryActivity EventCategory = "activity"

	// CategoryLifecycle covers changes the system makes on its own, such as the sweep
	// hiding an expired item.
	CategoryLifecycle EventCategory = "lifecycle"

	// CategoryIntegrity covers workflow failures that may leave stores transiently
	// inconsistent and might need an operator.
	CategoryIntegrity EventCategory = "integrity"
)

// Event is emitted from the marketplace service and the sweep. Keep it transport-agnostic
// so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`

	// UserID is the acting user. Zero for system actions.
	UserID id.UserID `json:"user_id"`

	// Kind and Subject identify the record acted on, e.g. "listing" and its id.
	Kind      string `json:"kind,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Item events
	EventItemCreated     AuditEvent = "item_created"
	EventItemEdited      AuditEvent = "item_edited"
	EventItemHidden      AuditEvent = "item_hidden"
	EventItemDeleted     AuditEvent = "item_deleted"
	EventExpirationSet   AuditEvent = "expiration_set"
	EventItemExpired     AuditEvent = "item_expired"
	EventRecordReclaimed AuditEvent = "expiration_record_reclaimed"

	// Offer and claim events
	EventOfferMade      AuditEvent = "offer_made"
	EventOfferAccepted  AuditEvent = "offer_accepted"
	EventOfferWithdrawn AuditEvent = "offer_withdrawn"
	EventClaimCreated   AuditEvent = "claim_created"

	// Workflow integrity events
	EventSagaCompensated      AuditEvent = "saga_compensated"
	EventCompensationFailed   AuditEvent = "compensation_failed"
	EventCascadeCleanupFailed AuditEvent = "cascade_cleanup_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventItemExpired:     CategoryLifecycle,
	EventRecordReclaimed: CategoryLifecycle,

	EventSagaCompensated:      CategoryIntegrity,
	EventCompensationFailed:   CategoryIntegrity,
	EventCascadeCleanupFailed: CategoryIntegrity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryActivity.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryActivity
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
