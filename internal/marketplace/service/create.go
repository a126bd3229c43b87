package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	tagmodels "neighborly/internal/tag/models"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/sentinel"
)

// CreateWithExpiration writes a new item and its expiration record as one logical unit.
//
// Steps:
//  1. create the item
//  2. allocate the expiration record (on failure the item is deleted again)
//  3. associate tags, best-effort
//
// The caller either gets both records or an error; when compensation itself fails the
// original allocation error is still returned and the orphaned item is logged.
func (s *Service) CreateWithExpiration(ctx context.Context, cmd CreateItemCommand) (*CreateItemResult, error) {
	items, expirations, err := s.storesFor(cmd.Kind)
	if err != nil {
		return nil, err
	}
	if cmd.Owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "an authenticated author is required")
	}
	fields := cmd.Fields
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	expiresAt, err := cmd.Expiration.Instant()
	if err != nil {
		return nil, err
	}
	labels, err := tagmodels.NormalizeLabels(cmd.Tags)
	if err != nil {
		return nil, err
	}

	name := "create_" + cmd.Kind.String()
	ctx, span := s.startSpan(ctx, name, attribute.String("item.kind", cmd.Kind.String()))
	defer func() { endSpan(span, err) }()

	result := &CreateItemResult{Tags: []string{}}
	subject := func() string {
		if result.Item == nil {
			return ""
		}
		return result.Item.ID.String()
	}

	run := s.newSaga(ctx, name, &runObserver{kind: cmd.Kind, user: cmd.Owner, subject: subject}).
		Then(sagaStep("create_item",
			func(ctx context.Context) error {
				item, err := items.Create(ctx, cmd.Owner, fields)
				if err != nil {
					return err
				}
				result.Item = item
				return nil
			},
			func(ctx context.Context) error {
				return ignoreNotFound(items.Delete(ctx, result.Item.ID))
			})).
		Then(sagaStep("allocate_expiration",
			func(ctx context.Context) error {
				record, err := expirations.Allocate(ctx, result.Item.ID, expiresAt)
				if err != nil {
					return err
				}
				result.Expiration = record
				return nil
			}, nil))
	if len(labels) > 0 {
		run = run.Then(bestEffortStep("associate_tags", func(ctx context.Context) error {
			if err := s.tags.Associate(ctx, cmd.Kind, result.Item.ID, labels); err != nil {
				return err
			}
			result.Tags = labels
			return nil
		}))
	}

	err = run.Run(ctx)
	s.recordSagaOutcome(name, err)
	if err != nil {
		return nil, translate(err, cmd.Kind.String())
	}

	span.SetAttributes(attribute.String("item.id", result.Item.ID.String()))
	s.logAudit(ctx, auditEntry{
		event:   audit.EventItemCreated,
		user:    cmd.Owner,
		kind:    cmd.Kind,
		subject: result.Item.ID.String(),
	}, "expires_at", result.Expiration.ExpiresAt, "tags", len(result.Tags))
	return result, nil
}

// SetExpiration moves the item's expiration record, or allocates one when the item has
// none. Only the author may change it.
func (s *Service) SetExpiration(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID, target expmodels.Target) (*expmodels.Record, error) {
	items, expirations, err := s.storesFor(kind)
	if err != nil {
		return nil, err
	}
	expiresAt, err := target.Instant()
	if err != nil {
		return nil, err
	}
	if err := items.AssertAuthorIs(ctx, itemID, user); err != nil {
		return nil, translate(err, kind.String())
	}
	record, err := expirations.FindByItem(ctx, itemID)
	switch {
	case err == nil:
		record, err = expirations.Edit(ctx, record.ID, expiresAt)
	case errors.Is(err, sentinel.ErrNotFound):
		record, err = expirations.Allocate(ctx, itemID, expiresAt)
	}
	if err != nil {
		return nil, translate(err, "expiration record")
	}
	s.logAudit(ctx, auditEntry{
		event:   audit.EventExpirationSet,
		user:    user,
		kind:    kind,
		subject: itemID.String(),
	}, "expires_at", record.ExpiresAt)
	return record, nil
}
