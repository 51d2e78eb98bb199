// Package shuffle picks random outfits from a closet.
package shuffle

import (
	"math/rand/v2"
	"time"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// Selection maps a category to the record currently chosen for it.
// Categories with no candidates have no entry.
type Selection map[domain.Category]domain.ClothingRecord

// Clone returns an independent copy of s.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Set is a set of categories.
type Set map[domain.Category]bool

// NewSet builds a Set from the given categories.
func NewSet(categories ...domain.Category) Set {
	s := make(Set, len(categories))
	for _, c := range categories {
		s[c] = true
	}
	return s
}

// Engine makes uniform random picks per category. It is not safe for
// concurrent use; callers serialize access.
type Engine struct {
	taxonomy domain.Taxonomy
	rng      *rand.Rand
}

// NewEngine returns an engine over taxonomy drawing from src. A nil src
// seeds from the clock.
func NewEngine(taxonomy domain.Taxonomy, src rand.Source) *Engine {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>17|1)
	}
	return &Engine{taxonomy: taxonomy, rng: rand.New(src)}
}

// NewSeededEngine returns an engine whose picks are fully determined by seed.
func NewSeededEngine(taxonomy domain.Taxonomy, seed uint64) *Engine {
	return NewEngine(taxonomy, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ShuffleAll proposes an outfit. Excluded categories are left out. Paused
// categories keep their entry from prior as long as that record is still in
// records; otherwise they are rolled like the rest.
func (e *Engine) ShuffleAll(records []domain.ClothingRecord, prior Selection, paused, excluded Set) Selection {
	byCategory := e.candidates(records)
	out := make(Selection)
	for _, c := range e.taxonomy {
		if excluded[c] {
			continue
		}
		if paused[c] {
			if kept, ok := prior[c]; ok && containsID(byCategory[c], kept.ID) {
				out[c] = kept
				continue
			}
		}
		if rec, ok := e.pick(byCategory[c]); ok {
			out[c] = rec
		}
	}
	return out
}

// ShuffleOne re-rolls a single category. It reports false when the category
// has no records.
func (e *Engine) ShuffleOne(records []domain.ClothingRecord, category domain.Category) (domain.ClothingRecord, bool) {
	var pool []domain.ClothingRecord
	for _, r := range records {
		if r.Category == category {
			pool = append(pool, r)
		}
	}
	return e.pick(pool)
}

func (e *Engine) candidates(records []domain.ClothingRecord) map[domain.Category][]domain.ClothingRecord {
	out := make(map[domain.Category][]domain.ClothingRecord, len(e.taxonomy))
	for _, r := range records {
		if e.taxonomy.Contains(r.Category) {
			out[r.Category] = append(out[r.Category], r)
		}
	}
	return out
}

func (e *Engine) pick(pool []domain.ClothingRecord) (domain.ClothingRecord, bool) {
	if len(pool) == 0 {
		return domain.ClothingRecord{}, false
	}
	return pool[e.rng.IntN(len(pool))], true
}

func containsID(pool []domain.ClothingRecord, id string) bool {
	for _, r := range pool {
		if r.ID == id {
			return true
		}
	}
	return false
}
