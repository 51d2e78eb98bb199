package shuffle

import (
	"sync"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// Session is one user's current shuffle state: the proposed outfit plus the
// paused and excluded categories.
type Session struct {
	mu       sync.Mutex
	engine   *Engine
	current  Selection
	paused   Set
	excluded Set
}

func NewSession(engine *Engine) *Session {
	return &Session{
		engine:   engine,
		current:  make(Selection),
		paused:   make(Set),
		excluded: make(Set),
	}
}

// Shuffle re-rolls every category that is neither paused nor excluded.
func (s *Session) Shuffle(records []domain.ClothingRecord) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.engine.ShuffleAll(records, s.current, s.paused, s.excluded)
	return s.current.Clone()
}

// Reroll re-rolls one category. When it has no records the current entry is
// left untouched and false is returned. Excluded categories are not rolled.
func (s *Session) Reroll(records []domain.ClothingRecord, category domain.Category) (domain.ClothingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.excluded[category] {
		return domain.ClothingRecord{}, false
	}
	rec, ok := s.engine.ShuffleOne(records, category)
	if ok {
		s.current[category] = rec
	}
	return rec, ok
}

func (s *Session) SetPaused(category domain.Category, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused {
		s.paused[category] = true
	} else {
		delete(s.paused, category)
	}
}

// SetExcluded toggles exclusion. Excluding drops the category from the
// current selection.
func (s *Session) SetExcluded(category domain.Category, excluded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if excluded {
		s.excluded[category] = true
		delete(s.current, category)
	} else {
		delete(s.excluded, category)
	}
}

// Forget drops a record from the current selection, e.g. after it was
// removed from the closet.
func (s *Session) Forget(recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, r := range s.current {
		if r.ID == recordID {
			delete(s.current, c)
		}
	}
}

// Update refreshes the copy of rec held in the current selection. A record
// whose category changed is dropped from its old slot.
func (s *Session) Update(rec domain.ClothingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, r := range s.current {
		if r.ID != rec.ID {
			continue
		}
		if c == rec.Category {
			s.current[c] = rec
		} else {
			delete(s.current, c)
		}
	}
}

func (s *Session) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

func (s *Session) Paused() Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSet(s.paused)
}

func (s *Session) Excluded() Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSet(s.excluded)
}

func cloneSet(in Set) Set {
	out := make(Set, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
