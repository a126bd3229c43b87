// Package service is the marketplace orchestration layer. It stitches the independent
// concept stores into workflows that look atomic to callers even though the stores
// cannot co-commit: a creation saga with compensation, a cascade deletion, and offer
// acceptance. It owns no persistent state of its own.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ItemStore,ExpirationStore,OfferStore,ClaimStore,TagStore,AuditPublisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	claimmodels "neighborly/internal/claim/models"
	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	offermodels "neighborly/internal/offer/models"
	"neighborly/internal/platform/metrics"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/requestcontext"
)

// ItemStore is the Listing or Request concept store for a single kind.
type ItemStore interface {
	Kind() itemmodels.Kind
	Create(ctx context.Context, owner id.UserID, fields itemmodels.Fields) (*itemmodels.Item, error)
	FindByID(ctx context.Context, itemID id.ItemID) (*itemmodels.Item, error)
	ListByAuthor(ctx context.Context, owner id.UserID) ([]*itemmodels.Item, error)
	Edit(ctx context.Context, itemID id.ItemID, patch itemmodels.Patch) (*itemmodels.Item, error)
	Delete(ctx context.Context, itemID id.ItemID) error
	SetHidden(ctx context.Context, itemID id.ItemID) error
	AssertAuthorIs(ctx context.Context, itemID id.ItemID, user id.UserID) error
	Reserve(ctx context.Context, itemID id.ItemID, qty int) (*itemmodels.Item, error)
	Release(ctx context.Context, itemID id.ItemID, qty int) error
}

// ExpirationStore holds the expiration records of a single item kind.
type ExpirationStore interface {
	Allocate(ctx context.Context, itemID id.ItemID, expiresAt time.Time) (*expmodels.Record, error)
	FindByItem(ctx context.Context, itemID id.ItemID) (*expmodels.Record, error)
	Edit(ctx context.Context, recordID id.RecordID, expiresAt time.Time) (*expmodels.Record, error)
	Delete(ctx context.Context, recordID id.RecordID) error
}

type OfferStore interface {
	Create(ctx context.Context, requestID id.ItemID, offeror id.UserID, message string) (*offermodels.Offer, error)
	FindByID(ctx context.Context, offerID id.OfferID) (*offermodels.Offer, error)
	ListByRequest(ctx context.Context, requestID id.ItemID) ([]*offermodels.Offer, error)
	Accept(ctx context.Context, offerID id.OfferID) (*offermodels.Offer, error)
	Withdraw(ctx context.Context, offerID id.OfferID) (*offermodels.Offer, error)
	DeleteAllForRequest(ctx context.Context, requestID id.ItemID) (int, error)
	CountActiveByRequests(ctx context.Context, requestIDs []id.ItemID) (map[id.ItemID]int, error)
}

type ClaimStore interface {
	Create(ctx context.Context, listingID id.ItemID, claimant id.UserID, qty int) (*claimmodels.Claim, error)
	ListByListing(ctx context.Context, listingID id.ItemID) ([]*claimmodels.Claim, error)
}

type TagStore interface {
	Associate(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, labels []string) error
	ListByItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID) ([]string, error)
	RemoveAllForItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Stores bundles the concept stores the service orchestrates.
type Stores struct {
	Listings           ItemStore
	Requests           ItemStore
	ListingExpirations ExpirationStore
	RequestExpirations ExpirationStore
	Offers             OfferStore
	Claims             ClaimStore
	Tags               TagStore
}

// Service orchestrates multi-store marketplace workflows.
type Service struct {
	items       map[itemmodels.Kind]ItemStore
	expirations map[itemmodels.Kind]ExpirationStore
	offers      OfferStore
	claims      ClaimStore
	tags        TagStore

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service. Every store is required.
func New(stores Stores, opts ...Option) (*Service, error) {
	if stores.Listings == nil || stores.Requests == nil {
		return nil, errors.New("listing and request stores are required")
	}
	if stores.ListingExpirations == nil || stores.RequestExpirations == nil {
		return nil, errors.New("expiration stores are required for both kinds")
	}
	if stores.Offers == nil || stores.Claims == nil || stores.Tags == nil {
		return nil, errors.New("offer, claim and tag stores are required")
	}
	s := &Service{
		items: map[itemmodels.Kind]ItemStore{
			itemmodels.KindListing: stores.Listings,
			itemmodels.KindRequest: stores.Requests,
		},
		expirations: map[itemmodels.Kind]ExpirationStore{
			itemmodels.KindListing: stores.ListingExpirations,
			itemmodels.KindRequest: stores.RequestExpirations,
		},
		offers: stores.Offers,
		claims: stores.Claims,
		tags:   stores.Tags,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("neighborly/marketplace")
	}
	return s, nil
}

func (s *Service) storesFor(kind itemmodels.Kind) (ItemStore, ExpirationStore, error) {
	items, ok := s.items[kind]
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown item kind %q", kind))
	}
	return items, s.expirations[kind], nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "marketplace."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type auditEntry struct {
	event   audit.AuditEvent
	user    id.UserID
	kind    itemmodels.Kind
	subject string
	reason  string
}

// logAudit writes an audit line to the service log and, when configured, to the
// audit publisher. Publishing failures are logged and never fail the workflow.
func (s *Service) logAudit(ctx context.Context, e auditEntry, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	args := append(attributes,
		"event", string(e.event),
		"log_type", "audit",
		"kind", string(e.kind),
		"subject", e.subject,
	)
	if !e.user.IsNil() {
		args = append(args, "user_id", e.user.String())
	}
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(e.event), args...)

	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:  e.event.Category(),
		Timestamp: requestcontext.Now(ctx),
		Action:    string(e.event),
		UserID:    e.user,
		Kind:      string(e.kind),
		Subject:   e.subject,
		Reason:    e.reason,
		RequestID: requestID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event", "event", string(e.event), "error", err)
	}
}
