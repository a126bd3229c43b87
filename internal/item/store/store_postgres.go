package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// PostgresStore persists items of one kind in the kind's own table.
type PostgresStore struct {
	db    *sql.DB
	kind  models.Kind
	table string
}

// NewPostgres constructs a PostgreSQL-backed item store for kind.
func NewPostgres(db *sql.DB, kind models.Kind) *PostgresStore {
	return &PostgresStore{
		db:   db,
		kind: kind,
		// Table names come from the closed Kind set, never from input.
		table: kind.Plural(),
	}
}

func (s *PostgresStore) Kind() models.Kind {
	return s.kind
}

const itemColumns = `id, owner_id, title, description, quantity, hidden, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, owner id.UserID, fields models.Fields) (*models.Item, error) {
	item, err := models.NewItem(id.NewItemID(), s.kind, owner, fields, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table, itemColumns)
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(item.ID),
		uuid.UUID(item.OwnerID),
		item.Title,
		item.Description,
		item.Quantity,
		item.Hidden,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.kind, err)
	}
	return item, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, s.table)
	item, err := s.scan(s.db.QueryRowContext(ctx, query, uuid.UUID(itemID)))
	if err != nil {
		return nil, s.notFound(itemID, err)
	}
	return item, nil
}

func (s *PostgresStore) ListByAuthor(ctx context.Context, owner id.UserID) ([]*models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 ORDER BY created_at`, itemColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list %s by author: %w", s.kind.Plural(), err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		item, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.kind, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.kind.Plural(), err)
	}
	return items, nil
}

// Edit applies patch inside a row lock so concurrent edits serialize.
func (s *PostgresStore) Edit(ctx context.Context, itemID id.ItemID, patch models.Patch) (*models.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin edit %s: %w", s.kind, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, itemColumns, s.table)
	item, err := s.scan(tx.QueryRowContext(ctx, query, uuid.UUID(itemID)))
	if err != nil {
		return nil, s.notFound(itemID, err)
	}
	if err := item.Apply(patch, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	update := fmt.Sprintf(`UPDATE %s SET title = $2, description = $3, quantity = $4, updated_at = $5 WHERE id = $1`, s.table)
	if _, err := tx.ExecContext(ctx, update, uuid.UUID(itemID), item.Title, item.Description, item.Quantity, item.UpdatedAt); err != nil {
		return nil, fmt.Errorf("edit %s: %w", s.kind, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit edit %s: %w", s.kind, err)
	}
	return item, nil
}

func (s *PostgresStore) Delete(ctx context.Context, itemID id.ItemID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(itemID))
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	return s.requireRow(res, itemID)
}

// SetHidden only ever moves hidden from false to true.
func (s *PostgresStore) SetHidden(ctx context.Context, itemID id.ItemID) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			hidden = TRUE,
			updated_at = CASE WHEN hidden THEN updated_at ELSE $2 END
		WHERE id = $1
	`, s.table)
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(itemID), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("hide %s: %w", s.kind, err)
	}
	return s.requireRow(res, itemID)
}

func (s *PostgresStore) AssertAuthorIs(ctx context.Context, itemID id.ItemID, user id.UserID) error {
	var owner uuid.UUID
	query := fmt.Sprintf(`SELECT owner_id FROM %s WHERE id = $1`, s.table)
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(itemID)).Scan(&owner); err != nil {
		return s.notFound(itemID, err)
	}
	if id.UserID(owner) != user {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotAllowed)
	}
	return nil
}

// Reserve decrements quantity with a guarded UPDATE so concurrent claims cannot oversell.
func (s *PostgresStore) Reserve(ctx context.Context, itemID id.ItemID, qty int) (*models.Item, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET quantity = quantity - $2, updated_at = $3
		WHERE id = $1 AND NOT hidden AND $2 >= 1 AND quantity >= $2
		RETURNING %s
	`, s.table, itemColumns)
	item, err := s.scan(s.db.QueryRowContext(ctx, query, uuid.UUID(itemID), qty, requestcontext.Now(ctx)))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reserve %s: %w", s.kind, err)
	}

	current, findErr := s.FindByID(ctx, itemID)
	if findErr != nil {
		return nil, findErr
	}
	if current.Hidden {
		return nil, fmt.Errorf("%s %s is hidden: %w", s.kind, itemID, sentinel.ErrInvalidState)
	}
	return nil, fmt.Errorf("reserve %d of %d: %w", qty, current.Quantity, sentinel.ErrConflict)
}

func (s *PostgresStore) Release(ctx context.Context, itemID id.ItemID, qty int) error {
	query := fmt.Sprintf(`UPDATE %s SET quantity = quantity + $2, updated_at = $3 WHERE id = $1`, s.table)
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(itemID), qty, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("release %s: %w", s.kind, err)
	}
	return s.requireRow(res, itemID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scan(row rowScanner) (*models.Item, error) {
	var (
		itemID, owner uuid.UUID
		item          = models.Item{Kind: s.kind}
	)
	err := row.Scan(&itemID, &owner, &item.Title, &item.Description, &item.Quantity, &item.Hidden, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.ID = id.ItemID(itemID)
	item.OwnerID = id.UserID(owner)
	return &item, nil
}

func (s *PostgresStore) notFound(itemID id.ItemID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("find %s: %w", s.kind, err)
}

func (s *PostgresStore) requireRow(res sql.Result, itemID id.ItemID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	return nil
}
