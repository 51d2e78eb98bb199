package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vbonduro/wardrobe/internal/domain"
)

type ClothingStore struct {
	db *sql.DB
}

func NewClothingStore(db *sql.DB) *ClothingStore {
	return &ClothingStore{db: db}
}

// Create inserts rec under a new id and returns the stored row.
func (s *ClothingStore) Create(ctx context.Context, ownerID int64, rec domain.ClothingRecord) (*domain.ClothingRecord, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clothing (id, owner_id, image_ref, category, name, color, brand, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, ownerID, rec.ImageRef, string(rec.Category), rec.Name, rec.Color, rec.Brand, rec.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to create clothing record: %w", err)
	}

	return s.GetByID(ctx, ownerID, id)
}

func (s *ClothingStore) GetByID(ctx context.Context, ownerID int64, id string) (*domain.ClothingRecord, error) {
	rec := &domain.ClothingRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, image_ref, category, name, color, brand, price FROM clothing
		WHERE id = ? AND owner_id = ?
	`, id, ownerID).Scan(&rec.ID, &rec.ImageRef, &rec.Category, &rec.Name, &rec.Color, &rec.Brand, &rec.Price)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clothing record: %w", err)
	}

	return rec, nil
}

// List returns the owner's records in the order they were created.
func (s *ClothingStore) List(ctx context.Context, ownerID int64) ([]domain.ClothingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_ref, category, name, color, brand, price FROM clothing
		WHERE owner_id = ? ORDER BY created_at ASC, rowid ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clothing records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	records := []domain.ClothingRecord{}
	for rows.Next() {
		var rec domain.ClothingRecord
		if err := rows.Scan(&rec.ID, &rec.ImageRef, &rec.Category, &rec.Name, &rec.Color, &rec.Brand, &rec.Price); err != nil {
			return nil, fmt.Errorf("failed to scan clothing record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clothing records: %w", err)
	}

	return records, nil
}

// Update applies the non-nil fields of patch.
func (s *ClothingStore) Update(ctx context.Context, ownerID int64, id string, patch domain.RecordPatch) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clothing SET
			category   = COALESCE(?, category),
			name       = COALESCE(?, name),
			color      = COALESCE(?, color),
			brand      = COALESCE(?, brand),
			price      = COALESCE(?, price),
			updated_at = datetime('now')
		WHERE id = ? AND owner_id = ?
	`, nullableCategory(patch.Category), patch.Name, patch.Color, patch.Brand, patch.Price, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update clothing record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("clothing record %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (s *ClothingStore) Delete(ctx context.Context, ownerID int64, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM clothing WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete clothing record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("clothing record %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ImageRefInUse reports whether any record or favorite still points at ref.
func (s *ClothingStore) ImageRefInUse(ctx context.Context, ref string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM clothing WHERE image_ref = ?)
		     + (SELECT COUNT(*) FROM favorite_outfit_items WHERE image_ref = ?)
	`, ref, ref).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check image usage: %w", err)
	}
	return count > 0, nil
}

func nullableCategory(c *domain.Category) any {
	if c == nil {
		return nil
	}
	return string(*c)
}
