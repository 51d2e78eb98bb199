package store

import (
	"context"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// OwnerRecords scopes the clothing and favorite stores to one user. It
// satisfies closet.RecordStore.
type OwnerRecords struct {
	Clothing  *ClothingStore
	Favorites *FavoriteStore
	OwnerID   int64
}

func (o *OwnerRecords) ListClothingRecords(ctx context.Context) ([]domain.ClothingRecord, error) {
	return o.Clothing.List(ctx, o.OwnerID)
}

func (o *OwnerRecords) CreateClothingRecord(ctx context.Context, rec domain.ClothingRecord) (string, error) {
	created, err := o.Clothing.Create(ctx, o.OwnerID, rec)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (o *OwnerRecords) UpdateClothingRecord(ctx context.Context, id string, patch domain.RecordPatch) error {
	return o.Clothing.Update(ctx, o.OwnerID, id, patch)
}

func (o *OwnerRecords) DeleteClothingRecord(ctx context.Context, id string) error {
	return o.Clothing.Delete(ctx, o.OwnerID, id)
}

func (o *OwnerRecords) ListFavoriteOutfits(ctx context.Context) ([]domain.Outfit, error) {
	return o.Favorites.List(ctx, o.OwnerID)
}

func (o *OwnerRecords) CreateFavoriteOutfit(ctx context.Context, outfit domain.Outfit) (string, error) {
	return o.Favorites.Create(ctx, o.OwnerID, outfit)
}

func (o *OwnerRecords) DeleteFavoriteOutfit(ctx context.Context, id string) error {
	return o.Favorites.Delete(ctx, o.OwnerID, id)
}
