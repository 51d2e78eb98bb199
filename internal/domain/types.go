package domain

import "time"

// ClothingRecord is one catalogued garment. Field names round-trip through
// JSON and the record store unchanged.
type ClothingRecord struct {
	ID       string   `json:"id"`
	ImageRef string   `json:"imageRef"`
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Brand    string   `json:"brand"`
	Price    string   `json:"price"`
}

// RecordPatch carries the fields of an edit. Nil fields are left untouched.
type RecordPatch struct {
	Category *Category `json:"category,omitempty"`
	Name     *string   `json:"name,omitempty"`
	Color    *string   `json:"color,omitempty"`
	Brand    *string   `json:"brand,omitempty"`
	Price    *string   `json:"price,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p RecordPatch) IsEmpty() bool {
	return p.Category == nil && p.Name == nil && p.Color == nil && p.Brand == nil && p.Price == nil
}

// Apply returns a copy of rec with the patch merged in.
func (p RecordPatch) Apply(rec ClothingRecord) ClothingRecord {
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Color != nil {
		rec.Color = *p.Color
	}
	if p.Brand != nil {
		rec.Brand = *p.Brand
	}
	if p.Price != nil {
		rec.Price = *p.Price
	}
	return rec
}

// Outfit is a saved combination of at most one record per category. Items
// are full copies so a favorite stays self-describing after its source
// records are edited or deleted.
type Outfit struct {
	ID        string           `json:"id"`
	Items     []ClothingRecord `json:"items"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Contains reports whether the outfit holds a record with the given id.
func (o Outfit) Contains(recordID string) bool {
	for _, it := range o.Items {
		if it.ID == recordID {
			return true
		}
	}
	return false
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
