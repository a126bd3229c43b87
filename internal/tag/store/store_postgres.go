package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
)

// PostgresStore persists tag associations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Associate inserts all labels in one round trip using unnest.
func (s *PostgresStore) Associate(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_tags (kind, item_id, label)
		SELECT $1, $2, unnest($3::text[])
		ON CONFLICT (kind, item_id, label) DO NOTHING
	`, string(kind), uuid.UUID(itemID), pq.Array(labels))
	if err != nil {
		return fmt.Errorf("associate tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID) ([]string, error) {
	var labels pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT coalesce(array_agg(label ORDER BY label), '{}') FROM item_tags
		WHERE kind = $1 AND item_id = $2
	`, string(kind), uuid.UUID(itemID)).Scan(&labels)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return []string(labels), nil
}

func (s *PostgresStore) RemoveAllForItem(ctx context.Context, kind itemmodels.Kind, itemID id.ItemID) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM item_tags WHERE kind = $1 AND item_id = $2`, string(kind), uuid.UUID(itemID))
	if err != nil {
		return 0, fmt.Errorf("remove tags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
