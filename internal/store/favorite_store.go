package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/wardrobe/internal/domain"
)

type FavoriteStore struct {
	db *sql.DB
}

func NewFavoriteStore(db *sql.DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

// Create stores outfit with a copy of every item and returns its new id.
func (s *FavoriteStore) Create(ctx context.Context, ownerID int64, outfit domain.Outfit) (string, error) {
	id := uuid.NewString()
	createdAt := outfit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO favorite_outfits (id, owner_id, created_at) VALUES (?, ?, ?)
	`, id, ownerID, createdAt.UTC()); err != nil {
		return "", fmt.Errorf("failed to create favorite outfit: %w", err)
	}

	for pos, it := range outfit.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO favorite_outfit_items
				(outfit_id, position, clothing_id, image_ref, category, name, color, brand, price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, pos, it.ID, it.ImageRef, string(it.Category), it.Name, it.Color, it.Brand, it.Price); err != nil {
			return "", fmt.Errorf("failed to create favorite outfit item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit favorite outfit: %w", err)
	}
	return id, nil
}

// List returns the owner's favorites oldest first, items in saved order.
func (s *FavoriteStore) List(ctx context.Context, ownerID int64) ([]domain.Outfit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.created_at, i.clothing_id, i.image_ref, i.category, i.name, i.color, i.brand, i.price
		FROM favorite_outfits o
		JOIN favorite_outfit_items i ON i.outfit_id = o.id
		WHERE o.owner_id = ?
		ORDER BY o.rowid ASC, i.position ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite outfits: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	outfits := []domain.Outfit{}
	for rows.Next() {
		var (
			outfitID  string
			createdAt time.Time
			it        domain.ClothingRecord
		)
		if err := rows.Scan(&outfitID, &createdAt, &it.ID, &it.ImageRef, &it.Category, &it.Name, &it.Color, &it.Brand, &it.Price); err != nil {
			return nil, fmt.Errorf("failed to scan favorite outfit: %w", err)
		}
		if n := len(outfits); n == 0 || outfits[n-1].ID != outfitID {
			outfits = append(outfits, domain.Outfit{ID: outfitID, CreatedAt: createdAt})
		}
		last := &outfits[len(outfits)-1]
		last.Items = append(last.Items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite outfits: %w", err)
	}

	return outfits, nil
}

func (s *FavoriteStore) Delete(ctx context.Context, ownerID int64, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM favorite_outfits WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite outfit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("favorite outfit %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
