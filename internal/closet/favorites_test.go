package closet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/wardrobe/internal/domain"
)

func TestSaveOutfit(t *testing.T) {
	s, remote := newTestStore(t, domain.DefaultTaxonomy)
	a := domain.ClothingRecord{ID: "A", Category: domain.Hat, ImageRef: "a.png", Name: "Beanie", Color: "grey", Brand: "Carhartt", Price: "20"}
	b := domain.ClothingRecord{ID: "B", Category: domain.Shirt, ImageRef: "b.png", Name: "Oxford", Color: "blue", Brand: "J.Crew", Price: "60"}

	outfit, err := s.SaveOutfit(context.Background(), map[domain.Category]domain.ClothingRecord{
		domain.Shirt: b,
		domain.Hat:   a,
	}, nil)
	require.NoError(t, err)

	favs := s.Favorites()
	require.Len(t, favs, 1)
	assert.Equal(t, outfit.ID, favs[0].ID)
	assert.Equal(t, []domain.ClothingRecord{a, b}, favs[0].Items)
	assert.Len(t, remote.favorites, 1)
}

func TestSaveOutfit_DropsExcluded(t *testing.T) {
	s, _ := newTestStore(t, domain.DefaultTaxonomy)
	sel := map[domain.Category]domain.ClothingRecord{
		domain.Hat:   {ID: "A", Category: domain.Hat},
		domain.Shirt: {ID: "B", Category: domain.Shirt},
	}

	outfit, err := s.SaveOutfit(context.Background(), sel, map[domain.Category]bool{domain.Hat: true})
	require.NoError(t, err)
	require.Len(t, outfit.Items, 1)
	assert.Equal(t, "B", outfit.Items[0].ID)
}

func TestSaveOutfit_DuplicatesAllowed(t *testing.T) {
	s, _ := newTestStore(t, domain.DefaultTaxonomy)
	sel := map[domain.Category]domain.ClothingRecord{domain.Shirt: {ID: "B", Category: domain.Shirt}}
	ctx := context.Background()

	first, err := s.SaveOutfit(ctx, sel, nil)
	require.NoError(t, err)
	second, err := s.SaveOutfit(ctx, sel, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, s.Favorites(), 2)
}

func TestSaveOutfit_Empty(t *testing.T) {
	s, _ := newTestStore(t, domain.DefaultTaxonomy)

	_, err := s.SaveOutfit(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSaveOutfit_RemoteFailure(t *testing.T) {
	s, remote := newTestStore(t, domain.DefaultTaxonomy)
	remote.failFav = errors.New("quota exceeded")

	_, err := s.SaveOutfit(context.Background(), map[domain.Category]domain.ClothingRecord{
		domain.Shirt: {ID: "B", Category: domain.Shirt},
	}, nil)
	assert.ErrorIs(t, err, domain.ErrExternal)
	assert.Empty(t, s.Favorites())
}

func TestSaveOutfit_SurvivesSourceEdit(t *testing.T) {
	s, _ := newTestStore(t, domain.DefaultTaxonomy)
	ctx := context.Background()
	rec, err := s.AddItem(ctx, shirt("tee"))
	require.NoError(t, err)

	_, err = s.SaveOutfit(ctx, map[domain.Category]domain.ClothingRecord{domain.Shirt: rec}, nil)
	require.NoError(t, err)

	name := "renamed"
	_, _, err = s.UpdateItem(ctx, rec.ID, domain.RecordPatch{Name: &name})
	require.NoError(t, err)
	_, err = s.RemoveItem(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "tee", s.Favorites()[0].Items[0].Name)
}

func TestRemoveFavorite_ByIDOnly(t *testing.T) {
	s, remote := newTestStore(t, domain.DefaultTaxonomy)
	sel := map[domain.Category]domain.ClothingRecord{domain.Shirt: {ID: "B", Category: domain.Shirt}}
	ctx := context.Background()

	first, err := s.SaveOutfit(ctx, sel, nil)
	require.NoError(t, err)
	second, err := s.SaveOutfit(ctx, sel, nil)
	require.NoError(t, err)

	removed, err := s.RemoveFavorite(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	favs := s.Favorites()
	require.Len(t, favs, 1, "an identical outfit must not be removed along with it")
	assert.Equal(t, second.ID, favs[0].ID)
	assert.Equal(t, []string{first.ID}, remote.deletedFavorites)
}

func TestRemoveFavorite_EmptyCollection(t *testing.T) {
	s, remote := newTestStore(t, domain.DefaultTaxonomy)
	ctx := context.Background()

	removed, err := s.RemoveFavorite(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.RemoveFavoriteAt(ctx, 0)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Empty(t, s.Favorites())
	assert.Empty(t, remote.deletedFavorites)
}

func TestRemoveFavoriteAt(t *testing.T) {
	s, _ := newTestStore(t, domain.DefaultTaxonomy)
	ctx := context.Background()
	for _, id := range []string{"A", "B"} {
		_, err := s.SaveOutfit(ctx, map[domain.Category]domain.ClothingRecord{domain.Shirt: {ID: id, Category: domain.Shirt}}, nil)
		require.NoError(t, err)
	}

	removed, err := s.RemoveFavoriteAt(ctx, 0)
	require.NoError(t, err)
	assert.True(t, removed)

	favs := s.Favorites()
	require.Len(t, favs, 1)
	assert.Equal(t, "B", favs[0].Items[0].ID)
}

func TestRemoveFavorite_RemoteFailureKeepsFavorite(t *testing.T) {
	s, remote := newTestStore(t, domain.DefaultTaxonomy)
	ctx := context.Background()
	outfit, err := s.SaveOutfit(ctx, map[domain.Category]domain.ClothingRecord{domain.Shirt: {ID: "B", Category: domain.Shirt}}, nil)
	require.NoError(t, err)

	remote.failFav = errors.New("offline")
	_, err = s.RemoveFavorite(ctx, outfit.ID)
	assert.ErrorIs(t, err, domain.ErrExternal)
	assert.Len(t, s.Favorites(), 1)
}
