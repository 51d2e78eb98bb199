package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/wardrobe/internal/db"
	"github.com/vbonduro/wardrobe/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func createTestUser(t *testing.T, database *sql.DB, email string) *domain.User {
	t.Helper()
	u, err := NewUserStore(database).Create(context.Background(), email, "hash")
	require.NoError(t, err)
	return u
}

func TestUserStore_CreateAndGet(t *testing.T) {
	database := setupTestDB(t)
	s := NewUserStore(database)
	ctx := context.Background()

	u, err := s.Create(ctx, "ada@example.com", "secret-hash")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "secret-hash", u.PasswordHash)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := s.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	missing, err := s.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetByID(ctx, 9999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	database := setupTestDB(t)
	s := NewUserStore(database)
	ctx := context.Background()

	_, err := s.Create(ctx, "ada@example.com", "h")
	require.NoError(t, err)

	_, err = s.Create(ctx, "ada@example.com", "h")
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestUserStore_RevokeToken(t *testing.T) {
	database := setupTestDB(t)
	s := NewUserStore(database)
	ctx := context.Background()

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestClothingStore_CreateListGet(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	s := NewClothingStore(database)
	ctx := context.Background()

	first, err := s.Create(ctx, owner.ID, domain.ClothingRecord{
		ImageRef: "item_1/a.png", Category: domain.Shirt, Name: "Oxford", Color: "Blue",
	})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, domain.Shirt, first.Category)
	assert.Equal(t, "Oxford", first.Name)

	second, err := s.Create(ctx, owner.ID, domain.ClothingRecord{ImageRef: "item_1/b.png", Category: domain.Hat})
	require.NoError(t, err)

	records, err := s.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)

	got, err := s.GetByID(ctx, owner.ID, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.Hat, got.Category)
}

func TestClothingStore_ScopedToOwner(t *testing.T) {
	database := setupTestDB(t)
	alice := createTestUser(t, database, "alice@example.com")
	bob := createTestUser(t, database, "bob@example.com")
	s := NewClothingStore(database)
	ctx := context.Background()

	rec, err := s.Create(ctx, alice.ID, domain.ClothingRecord{ImageRef: "a.png", Category: domain.Shoes})
	require.NoError(t, err)

	records, err := s.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	got, err := s.GetByID(ctx, bob.ID, rec.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)

	err = s.Delete(ctx, bob.ID, rec.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestClothingStore_UpdatePartial(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	s := NewClothingStore(database)
	ctx := context.Background()

	rec, err := s.Create(ctx, owner.ID, domain.ClothingRecord{
		ImageRef: "a.png", Category: domain.Pants, Name: "Chinos", Color: "Khaki", Brand: "Acme", Price: "40",
	})
	require.NoError(t, err)

	cat := domain.Shoes
	color := "Navy"
	require.NoError(t, s.Update(ctx, owner.ID, rec.ID, domain.RecordPatch{Category: &cat, Color: &color}))

	got, err := s.GetByID(ctx, owner.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Shoes, got.Category)
	assert.Equal(t, "Navy", got.Color)
	assert.Equal(t, "Chinos", got.Name)
	assert.Equal(t, "Acme", got.Brand)
	assert.Equal(t, "40", got.Price)

	empty := ""
	require.NoError(t, s.Update(ctx, owner.ID, rec.ID, domain.RecordPatch{Brand: &empty}))
	got, err = s.GetByID(ctx, owner.ID, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Brand)
}

func TestClothingStore_UpdateMissing(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	s := NewClothingStore(database)

	name := "x"
	err := s.Update(context.Background(), owner.ID, "missing", domain.RecordPatch{Name: &name})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestClothingStore_Delete(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	s := NewClothingStore(database)
	ctx := context.Background()

	rec, err := s.Create(ctx, owner.ID, domain.ClothingRecord{ImageRef: "a.png", Category: domain.Hat})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, owner.ID, rec.ID))

	err = s.Delete(ctx, owner.ID, rec.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	records, err := s.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClothingStore_ImageRefInUse(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	clothing := NewClothingStore(database)
	favorites := NewFavoriteStore(database)
	ctx := context.Background()

	rec, err := clothing.Create(ctx, owner.ID, domain.ClothingRecord{ImageRef: "shared.png", Category: domain.Hat})
	require.NoError(t, err)
	_, err = favorites.Create(ctx, owner.ID, domain.Outfit{Items: []domain.ClothingRecord{*rec}})
	require.NoError(t, err)
	require.NoError(t, clothing.Delete(ctx, owner.ID, rec.ID))

	inUse, err := clothing.ImageRefInUse(ctx, "shared.png")
	require.NoError(t, err)
	assert.True(t, inUse, "favorite snapshot still references the image")

	inUse, err = clothing.ImageRefInUse(ctx, "other.png")
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestFavoriteStore_CreateAndList(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	s := NewFavoriteStore(database)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	firstID, err := s.Create(ctx, owner.ID, domain.Outfit{
		CreatedAt: created,
		Items: []domain.ClothingRecord{
			{ID: "h1", ImageRef: "h.png", Category: domain.Hat, Name: "Cap"},
			{ID: "s1", ImageRef: "s.png", Category: domain.Shirt, Color: "Red"},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, firstID)

	secondID, err := s.Create(ctx, owner.ID, domain.Outfit{
		Items: []domain.ClothingRecord{{ID: "p1", ImageRef: "p.png", Category: domain.Pants}},
	})
	require.NoError(t, err)

	outfits, err := s.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, outfits, 2)

	assert.Equal(t, firstID, outfits[0].ID)
	assert.True(t, created.Equal(outfits[0].CreatedAt.UTC()))
	require.Len(t, outfits[0].Items, 2)
	assert.Equal(t, "h1", outfits[0].Items[0].ID)
	assert.Equal(t, "Cap", outfits[0].Items[0].Name)
	assert.Equal(t, "s1", outfits[0].Items[1].ID)
	assert.Equal(t, "Red", outfits[0].Items[1].Color)

	assert.Equal(t, secondID, outfits[1].ID)
	require.Len(t, outfits[1].Items, 1)
	assert.Equal(t, domain.Pants, outfits[1].Items[0].Category)
}

func TestFavoriteStore_Delete(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	s := NewFavoriteStore(database)
	ctx := context.Background()

	id, err := s.Create(ctx, owner.ID, domain.Outfit{
		Items: []domain.ClothingRecord{{ID: "h1", ImageRef: "h.png", Category: domain.Hat}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, owner.ID, id))

	outfits, err := s.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, outfits)

	var items int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM favorite_outfit_items`).Scan(&items))
	assert.Zero(t, items)

	err = s.Delete(ctx, owner.ID, id)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOwnerRecords_RoundTrip(t *testing.T) {
	database := setupTestDB(t)
	owner := createTestUser(t, database, "owner@example.com")
	remote := &OwnerRecords{
		Clothing:  NewClothingStore(database),
		Favorites: NewFavoriteStore(database),
		OwnerID:   owner.ID,
	}
	ctx := context.Background()

	id, err := remote.CreateClothingRecord(ctx, domain.ClothingRecord{ImageRef: "a.png", Category: domain.Jacket})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	name := "Parka"
	require.NoError(t, remote.UpdateClothingRecord(ctx, id, domain.RecordPatch{Name: &name}))

	records, err := remote.ListClothingRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Parka", records[0].Name)

	favID, err := remote.CreateFavoriteOutfit(ctx, domain.Outfit{Items: records})
	require.NoError(t, err)

	outfits, err := remote.ListFavoriteOutfits(ctx)
	require.NoError(t, err)
	require.Len(t, outfits, 1)

	require.NoError(t, remote.DeleteFavoriteOutfit(ctx, favID))
	require.NoError(t, remote.DeleteClothingRecord(ctx, id))
}
