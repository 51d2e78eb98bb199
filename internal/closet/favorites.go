package closet

import (
	"context"
	"errors"
	"slices"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// SaveOutfit turns a shuffle result into a favorite. Categories in excluded
// or outside the taxonomy are dropped; the rest are copied whole, in
// taxonomy order. Saving the same outfit twice creates two favorites.
func (s *Store) SaveOutfit(ctx context.Context, selection map[domain.Category]domain.ClothingRecord, excluded map[domain.Category]bool) (domain.Outfit, error) {
	outfit := domain.Outfit{CreatedAt: s.now().UTC()}
	for _, c := range s.taxonomy {
		if excluded[c] {
			continue
		}
		if rec, ok := selection[c]; ok {
			outfit.Items = append(outfit.Items, rec)
		}
	}
	if len(outfit.Items) == 0 {
		return domain.Outfit{}, domain.Invalid("outfit is empty")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id, err := s.remote.CreateFavoriteOutfit(ctx, outfit)
	if err != nil {
		s.logger.Error("failed to save favorite outfit", "items", len(outfit.Items), "error", err)
		return domain.Outfit{}, domain.External("create favorite outfit", err)
	}
	if id == "" {
		id = s.localID()
	}
	outfit.ID = id

	s.mu.Lock()
	s.favorites = append(s.favorites, outfit)
	s.mu.Unlock()

	s.logger.Info("favorite outfit saved", "outfit_id", id, "items", len(outfit.Items))
	s.notify(Event{Kind: FavoriteSaved, Outfit: outfit})
	return cloneOutfit(outfit), nil
}

// RemoveFavorite deletes the favorite with the given id. Unknown ids are a
// no-op.
func (s *Store) RemoveFavorite(ctx context.Context, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.removeFavoriteLocked(ctx, id)
}

// RemoveFavoriteAt deletes the favorite at position index of Favorites().
// Out-of-range indexes are a no-op.
func (s *Store) RemoveFavoriteAt(ctx context.Context, index int) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if index < 0 || index >= len(s.favorites) {
		s.mu.RUnlock()
		return false, nil
	}
	id := s.favorites[index].ID
	s.mu.RUnlock()

	return s.removeFavoriteLocked(ctx, id)
}

func (s *Store) removeFavoriteLocked(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	i := s.favoriteIndex(id)
	var outfit domain.Outfit
	if i >= 0 {
		outfit = s.favorites[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return false, nil
	}

	err := s.remote.DeleteFavoriteOutfit(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("failed to delete favorite outfit", "outfit_id", id, "error", err)
		return false, domain.External("delete favorite outfit", err)
	}

	s.mu.Lock()
	if i := s.favoriteIndex(id); i >= 0 {
		s.favorites = slices.Delete(s.favorites, i, i+1)
	}
	s.mu.Unlock()

	s.notify(Event{Kind: FavoriteRemoved, Outfit: outfit})
	return true, nil
}

// Favorites returns the saved outfits, oldest first.
func (s *Store) Favorites() []domain.Outfit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Outfit, len(s.favorites))
	for i, o := range s.favorites {
		out[i] = cloneOutfit(o)
	}
	return out
}

// favoriteIndex requires mu.
func (s *Store) favoriteIndex(id string) int {
	for i, o := range s.favorites {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func cloneOutfit(o domain.Outfit) domain.Outfit {
	o.Items = slices.Clone(o.Items)
	return o
}
