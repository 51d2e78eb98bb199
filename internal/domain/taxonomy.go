package domain

import (
	"fmt"
	"strings"
)

// Category names one slot of an outfit.
type Category string

const (
	Hat         Category = "Hat"
	Jacket      Category = "Jacket"
	Shirt       Category = "Shirt"
	Pants       Category = "Pants"
	Shoes       Category = "Shoes"
	Accessories Category = "Accessories"
)

// Taxonomy is an ordered list of categories. The order drives both grouped
// display and the canonical sort of records.
type Taxonomy []Category

// DefaultTaxonomy is the taxonomy the service runs with.
var DefaultTaxonomy = Taxonomy{Hat, Jacket, Shirt, Pants, Shoes, Accessories}

// aliases maps lower-cased labels used by older clients onto canonical names.
var aliases = map[string]Category{
	"hats":      Hat,
	"jackets":   Jacket,
	"shirts":    Shirt,
	"pant":      Pants,
	"shoe":      Shoes,
	"accessory": Accessories,
}

// Index returns the position of c in the taxonomy, or -1.
func (t Taxonomy) Index(c Category) int {
	for i, tc := range t {
		if tc == c {
			return i
		}
	}
	return -1
}

func (t Taxonomy) Contains(c Category) bool {
	return t.Index(c) >= 0
}

// Parse resolves user input to a category of t. Matching ignores case and
// surrounding space, and accepts the plural/singular aliases above.
func (t Taxonomy) Parse(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", Invalid("category is required")
	}
	for _, c := range t {
		if strings.ToLower(string(c)) == key {
			return c, nil
		}
	}
	if c, ok := aliases[key]; ok && t.Contains(c) {
		return c, nil
	}
	return "", Invalid(fmt.Sprintf("unknown category %q", s))
}

// SortKey orders records by taxonomy position, unknown categories last.
func (t Taxonomy) SortKey(c Category) int {
	if i := t.Index(c); i >= 0 {
		return i
	}
	return len(t)
}
