package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"neighborly/internal/expiration/models"
	itemmodels "neighborly/internal/item/models"
	id "neighborly/pkg/domain"
	"neighborly/pkg/platform/sentinel"
	"neighborly/pkg/requestcontext"
)

// PostgresStore persists expiration records for one item kind.
type PostgresStore struct {
	db   *sql.DB
	kind itemmodels.Kind
}

func NewPostgres(db *sql.DB, kind itemmodels.Kind) *PostgresStore {
	return &PostgresStore{db: db, kind: kind}
}

func (s *PostgresStore) Kind() itemmodels.Kind {
	return s.kind
}

const recordColumns = `id, item_id, expires_at, created_at, updated_at`

// Allocate upserts on (kind, item_id); a second allocation retargets the existing record.
func (s *PostgresStore) Allocate(ctx context.Context, itemID id.ItemID, expiresAt time.Time) (*models.Record, error) {
	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO expiration_records (id, kind, item_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (kind, item_id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + recordColumns
	row := s.db.QueryRowContext(ctx, query,
		uuid.UUID(id.NewRecordID()),
		string(s.kind),
		uuid.UUID(itemID),
		expiresAt.UTC(),
		now,
	)
	rec, err := s.scan(row)
	if err != nil {
		return nil, fmt.Errorf("allocate %s expiration: %w", s.kind, err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByItem(ctx context.Context, itemID id.ItemID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM expiration_records WHERE kind = $1 AND item_id = $2`
	rec, err := s.scan(s.db.QueryRowContext(ctx, query, string(s.kind), uuid.UUID(itemID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s expiration for %s: %w", s.kind, itemID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s expiration: %w", s.kind, err)
	}
	return rec, nil
}

func (s *PostgresStore) Edit(ctx context.Context, recordID id.RecordID, expiresAt time.Time) (*models.Record, error) {
	query := `
		UPDATE expiration_records SET expires_at = $3, updated_at = $4
		WHERE kind = $1 AND id = $2
		RETURNING ` + recordColumns
	rec, err := s.scan(s.db.QueryRowContext(ctx, query, string(s.kind), uuid.UUID(recordID), expiresAt.UTC(), requestcontext.Now(ctx)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s expiration %s: %w", s.kind, recordID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("edit %s expiration: %w", s.kind, err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, recordID id.RecordID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expiration_records WHERE kind = $1 AND id = $2`, string(s.kind), uuid.UUID(recordID))
	if err != nil {
		return fmt.Errorf("delete %s expiration: %w", s.kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s expiration %s: %w", s.kind, recordID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM expiration_records WHERE kind = $1 AND expires_at <= $2 ORDER BY expires_at`
	rows, err := s.db.QueryContext(ctx, query, string(s.kind), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired %s records: %w", s.kind, err)
	}
	defer rows.Close()

	records := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s expiration: %w", s.kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired %s records: %w", s.kind, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scan(row rowScanner) (*models.Record, error) {
	var (
		recordID, itemID uuid.UUID
		rec              = models.Record{Kind: s.kind}
	)
	if err := row.Scan(&recordID, &itemID, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ID = id.RecordID(recordID)
	rec.ItemID = id.ItemID(itemID)
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}
