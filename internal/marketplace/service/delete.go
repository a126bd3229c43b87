package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	expmodels "neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/saga"
	"neighborly/pkg/platform/sentinel"
)

// DeleteItem removes an item together with every record that depends on it.
//
// Order matters: for Requests all offers go first so no offer can outlive its parent,
// then the expiration record, then the item. Offer removal is required and a failure
// leaves the Request untouched for a retry. Expiration and tag cleanup are best-effort,
// but a removed expiration record is restored if the item itself cannot be deleted, so
// a surviving item always stays subject to the sweep.
//
// Deleting an item that is already gone still clears any orphaned satellite records
// and then reports NotFound.
func (s *Service) DeleteItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID) error {
	items, _, err := s.storesFor(kind)
	if err != nil {
		return err
	}

	name := "delete_" + kind.String()
	ctx, span := s.startSpan(ctx, name,
		attribute.String("item.kind", kind.String()),
		attribute.String("item.id", itemID.String()),
	)
	defer func() { endSpan(span, err) }()

	if err = items.AssertAuthorIs(ctx, itemID, user); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.cleanupOrphan(ctx, kind, itemID)
		}
		return translate(err, kind.String())
	}

	var (
		removedOffers int
		removedRecord *expmodels.Record
	)
	run := s.newSaga(ctx, name, &runObserver{
		kind:    kind,
		user:    user,
		subject: itemID.String,
		cascade: true,
	})
	if kind == itemmodels.KindRequest {
		run = run.Then(sagaStep("remove_offers", func(ctx context.Context) error {
			n, err := s.offers.DeleteAllForRequest(ctx, itemID)
			removedOffers = n
			return err
		}, nil))
	}
	run = run.
		Then(saga.Step{
			Name: "remove_expiration",
			Action: func(ctx context.Context) error {
				record, err := s.removeExpiration(ctx, kind, itemID)
				removedRecord = record
				return err
			},
			Compensate: func(ctx context.Context) error {
				if removedRecord == nil {
					return nil
				}
				_, err := s.expirations[kind].Allocate(ctx, itemID, removedRecord.ExpiresAt)
				return err
			},
			BestEffort: true,
		}).
		Then(sagaStep("delete_item", func(ctx context.Context) error {
			// A concurrent delete that won the race leaves nothing to do.
			return ignoreNotFound(items.Delete(ctx, itemID))
		}, nil)).
		Then(bestEffortStep("remove_tags", func(ctx context.Context) error {
			_, err := s.tags.RemoveAllForItem(ctx, kind, itemID)
			return err
		}))

	err = run.Run(ctx)
	s.recordSagaOutcome(name, err)
	if err != nil {
		return translate(err, kind.String())
	}

	s.logAudit(ctx, auditEntry{
		event:   audit.EventItemDeleted,
		user:    user,
		kind:    kind,
		subject: itemID.String(),
	}, "offers_removed", removedOffers)
	return nil
}

// removeExpiration deletes the item's expiration record and returns it, or nil when
// there was none.
func (s *Service) removeExpiration(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID) (*expmodels.Record, error) {
	record, err := s.expirations[kind].FindByItem(ctx, itemID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	if err := s.expirations[kind].Delete(ctx, record.ID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// cleanupOrphan clears satellite records left behind by an item that no longer exists.
func (s *Service) cleanupOrphan(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID) {
	fail := func(step string, err error) {
		s.logger.WarnContext(ctx, "orphan cleanup step failed",
			"kind", kind.String(),
			"item_id", itemID.String(),
			"step", step,
			"error", err,
		)
		s.metrics.IncrementCascadeCleanupFailure(kind.String(), step)
	}
	if kind == itemmodels.KindRequest {
		if _, err := s.offers.DeleteAllForRequest(ctx, itemID); err != nil {
			fail("remove_offers", err)
		}
	}
	if _, err := s.removeExpiration(ctx, kind, itemID); err != nil {
		fail("remove_expiration", err)
	}
	if _, err := s.tags.RemoveAllForItem(ctx, kind, itemID); err != nil {
		fail("remove_tags", err)
	}
}
