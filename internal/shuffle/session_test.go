package shuffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vbonduro/wardrobe/internal/domain"
)

func TestSessionPauseKeepsSelection(t *testing.T) {
	records := []domain.ClothingRecord{
		rec("1", domain.Shirt), rec("2", domain.Shirt), rec("3", domain.Shirt),
		rec("4", domain.Pants),
	}
	s := NewSession(NewSeededEngine(domain.DefaultTaxonomy, 5))

	first := s.Shuffle(records)
	s.SetPaused(domain.Shirt, true)
	for i := 0; i < 20; i++ {
		got := s.Shuffle(records)
		assert.Equal(t, first[domain.Shirt], got[domain.Shirt])
	}

	s.SetPaused(domain.Shirt, false)
	assert.Empty(t, s.Paused())
}

func TestSessionExcludeDropsAndStaysDropped(t *testing.T) {
	records := []domain.ClothingRecord{rec("1", domain.Shirt)}
	s := NewSession(NewSeededEngine(domain.DefaultTaxonomy, 5))

	s.Shuffle(records)
	s.SetExcluded(domain.Hat, true)
	s.SetExcluded(domain.Shirt, true)
	assert.NotContains(t, s.Current(), domain.Shirt)

	records = append(records, rec("2", domain.Hat))
	got := s.Shuffle(records)
	assert.Empty(t, got, "excluded categories stay out even once records exist")

	_, ok := s.Reroll(records, domain.Hat)
	assert.False(t, ok)

	s.SetExcluded(domain.Hat, false)
	got = s.Shuffle(records)
	assert.Equal(t, "2", got[domain.Hat].ID)
}

func TestSessionRerollEmptyCategoryKeepsPrior(t *testing.T) {
	records := []domain.ClothingRecord{rec("1", domain.Shirt)}
	s := NewSession(NewSeededEngine(domain.DefaultTaxonomy, 5))
	s.Shuffle(records)

	_, ok := s.Reroll(nil, domain.Shirt)
	assert.False(t, ok)
	assert.Equal(t, "1", s.Current()[domain.Shirt].ID)
}

func TestSessionForget(t *testing.T) {
	records := []domain.ClothingRecord{rec("1", domain.Shirt), rec("2", domain.Pants)}
	s := NewSession(NewSeededEngine(domain.DefaultTaxonomy, 5))
	s.Shuffle(records)

	s.Forget("1")

	cur := s.Current()
	assert.NotContains(t, cur, domain.Shirt)
	assert.Contains(t, cur, domain.Pants)
}

func TestSessionCurrentIsACopy(t *testing.T) {
	s := NewSession(NewSeededEngine(domain.DefaultTaxonomy, 5))
	s.Shuffle([]domain.ClothingRecord{rec("1", domain.Shirt)})

	cur := s.Current()
	delete(cur, domain.Shirt)

	assert.Contains(t, s.Current(), domain.Shirt)
}

func TestSessionUpdate(t *testing.T) {
	records := []domain.ClothingRecord{rec("1", domain.Shirt), rec("2", domain.Pants)}
	s := NewSession(NewSeededEngine(domain.DefaultTaxonomy, 5))
	s.Shuffle(records)

	renamed := rec("1", domain.Shirt)
	renamed.Name = "Flannel"
	s.Update(renamed)
	assert.Equal(t, "Flannel", s.Current()[domain.Shirt].Name)

	s.Update(rec("2", domain.Shoes))
	cur := s.Current()
	assert.NotContains(t, cur, domain.Pants)
	assert.NotContains(t, cur, domain.Shoes)

	s.Update(rec("99", domain.Shirt))
	assert.Equal(t, "1", s.Current()[domain.Shirt].ID)
}
