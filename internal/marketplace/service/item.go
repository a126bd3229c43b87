package service

import (
	"context"
	"errors"

	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	dErrors "neighborly/pkg/domain-errors"
	"neighborly/pkg/platform/audit"
	"neighborly/pkg/platform/sentinel"
)

// GetItem returns an item with its expiration record and tags. Hidden items are only
// visible to their author. Satellite lookups are best-effort.
func (s *Service) GetItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, viewer id.UserID) (*ItemView, error) {
	items, _, err := s.storesFor(kind)
	if err != nil {
		return nil, err
	}
	item, err := items.FindByID(ctx, itemID)
	if err != nil {
		return nil, translate(err, kind.String())
	}
	if item.Hidden && item.OwnerID != viewer {
		return nil, dErrors.New(dErrors.CodeNotFound, kind.String()+" not found")
	}
	view := s.viewOf(ctx, item)
	tags, err := s.tags.ListByItem(ctx, kind, itemID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load tags", "kind", kind.String(), "item_id", itemID.String(), "error", err)
	} else {
		view.Tags = tags
	}
	if kind == itemmodels.KindRequest && item.OwnerID == viewer {
		s.attachOfferCounts(ctx, []*ItemView{view})
	}
	return view, nil
}

// ListByAuthor returns the author's items of one kind, oldest first. Other viewers
// never see hidden items, and only the author sees active offer counts on Requests.
func (s *Service) ListByAuthor(ctx context.Context, kind itemmodels.Kind, author, viewer id.UserID) ([]*ItemView, error) {
	items, _, err := s.storesFor(kind)
	if err != nil {
		return nil, err
	}
	found, err := items.ListByAuthor(ctx, author)
	if err != nil {
		return nil, translate(err, kind.String())
	}
	owner := author == viewer
	views := make([]*ItemView, 0, len(found))
	for _, item := range found {
		if item.Hidden && !owner {
			continue
		}
		views = append(views, s.viewOf(ctx, item))
	}
	if kind == itemmodels.KindRequest && owner {
		s.attachOfferCounts(ctx, views)
	}
	return views, nil
}

func (s *Service) viewOf(ctx context.Context, item *itemmodels.Item) *ItemView {
	view := &ItemView{Item: item}
	record, err := s.expirations[item.Kind].FindByItem(ctx, item.ID)
	switch {
	case err == nil:
		view.Expiration = record
	case !errors.Is(err, sentinel.ErrNotFound):
		s.logger.WarnContext(ctx, "failed to load expiration record",
			"kind", item.Kind.String(),
			"item_id", item.ID.String(),
			"error", err,
		)
	}
	return view
}

func (s *Service) attachOfferCounts(ctx context.Context, views []*ItemView) {
	if len(views) == 0 {
		return
	}
	ids := make([]id.ItemID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.Item.ID)
	}
	counts, err := s.offers.CountActiveByRequests(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count active offers", "error", err)
		return
	}
	for _, v := range views {
		n := counts[v.Item.ID]
		v.ActiveOffers = &n
	}
}

// EditItem applies a partial edit. Visibility cannot be changed this way.
func (s *Service) EditItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID, patch itemmodels.Patch) (*itemmodels.Item, error) {
	items, _, err := s.storesFor(kind)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	if err := items.AssertAuthorIs(ctx, itemID, user); err != nil {
		return nil, translate(err, kind.String())
	}
	item, err := items.Edit(ctx, itemID, patch)
	if err != nil {
		return nil, translate(err, kind.String())
	}
	s.logAudit(ctx, auditEntry{
		event:   audit.EventItemEdited,
		user:    user,
		kind:    kind,
		subject: itemID.String(),
	})
	return item, nil
}

// HideItem takes an item out of circulation. Hidden is permanent.
func (s *Service) HideItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, user id.UserID) error {
	items, _, err := s.storesFor(kind)
	if err != nil {
		return err
	}
	if err := items.AssertAuthorIs(ctx, itemID, user); err != nil {
		return translate(err, kind.String())
	}
	if err := items.SetHidden(ctx, itemID); err != nil {
		return translate(err, kind.String())
	}
	s.logAudit(ctx, auditEntry{
		event:   audit.EventItemHidden,
		user:    user,
		kind:    kind,
		subject: itemID.String(),
	}, "reason", "author")
	return nil
}
