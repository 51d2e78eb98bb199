package closet

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// AddItem writes rec to the record store and, once that succeeds, appends it
// to the closet with the id the store assigned.
func (s *Store) AddItem(ctx context.Context, rec domain.ClothingRecord) (domain.ClothingRecord, error) {
	if strings.TrimSpace(rec.ImageRef) == "" {
		return domain.ClothingRecord{}, domain.Invalid("image reference is required")
	}
	if !s.taxonomy.Contains(rec.Category) {
		return domain.ClothingRecord{}, domain.Invalid("unknown category " + string(rec.Category))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id, err := s.remote.CreateClothingRecord(ctx, rec)
	if err != nil {
		s.logger.Error("failed to create clothing record", "category", rec.Category, "error", err)
		return domain.ClothingRecord{}, domain.External("create clothing record", err)
	}
	if id == "" {
		id = s.localID()
	}
	rec.ID = id

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.logger.Debug("clothing record added", "record_id", rec.ID, "category", rec.Category)
	s.snapshot(ctx)
	s.notify(Event{Kind: ItemAdded, Record: rec})
	return rec, nil
}

// UpdateItem merges patch into the record with the given id. It reports
// false, with no external call, when the id is unknown.
func (s *Store) UpdateItem(ctx context.Context, id string, patch domain.RecordPatch) (domain.ClothingRecord, bool, error) {
	if patch.Category != nil && !s.taxonomy.Contains(*patch.Category) {
		return domain.ClothingRecord{}, false, domain.Invalid("unknown category " + string(*patch.Category))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, ok := s.Get(id)
	if !ok {
		return domain.ClothingRecord{}, false, nil
	}
	if patch.IsEmpty() {
		return current, true, nil
	}

	if err := s.remote.UpdateClothingRecord(ctx, id, patch); err != nil {
		s.logger.Error("failed to update clothing record", "record_id", id, "error", err)
		return domain.ClothingRecord{}, true, domain.External("update clothing record", err)
	}

	updated := patch.Apply(current)
	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.records[i] = updated
	}
	s.mu.Unlock()

	s.snapshot(ctx)
	s.notify(Event{Kind: ItemUpdated, Record: updated})
	return updated, true, nil
}

// RemoveItem deletes the record with the given id. Removing an unknown id is
// a no-op and reports false.
func (s *Store) RemoveItem(ctx context.Context, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.removeLocked(ctx, id)
}

// RemoveFirst deletes the first record, in canonical order, that match
// accepts.
func (s *Store) RemoveFirst(ctx context.Context, match func(domain.ClothingRecord) bool) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, r := range s.Records() {
		if match(r) {
			return s.removeLocked(ctx, r.ID)
		}
	}
	return false, nil
}

// removeLocked requires writeMu.
func (s *Store) removeLocked(ctx context.Context, id string) (bool, error) {
	rec, ok := s.Get(id)
	if !ok {
		return false, nil
	}

	err := s.remote.DeleteClothingRecord(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("failed to delete clothing record", "record_id", id, "error", err)
		return false, domain.External("delete clothing record", err)
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.records = slices.Delete(s.records, i, i+1)
	}
	s.mu.Unlock()

	s.snapshot(ctx)
	s.notify(Event{Kind: ItemRemoved, Record: rec})
	return true, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (domain.ClothingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.records[i], true
	}
	return domain.ClothingRecord{}, false
}

// Records returns every record, orphans included, sorted by taxonomy order
// with ties kept in insertion order.
func (s *Store) Records() []domain.ClothingRecord {
	s.mu.RLock()
	out := slices.Clone(s.records)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b domain.ClothingRecord) int {
		return s.taxonomy.SortKey(a.Category) - s.taxonomy.SortKey(b.Category)
	})
	return out
}

// GroupByCategory returns one group per taxonomy category, in taxonomy
// order, including empty ones. Records outside the taxonomy are left out.
func (s *Store) GroupByCategory() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]Group, 0, len(s.taxonomy))
	for _, c := range s.taxonomy {
		items := []domain.ClothingRecord{}
		for _, r := range s.records {
			if r.Category == c {
				items = append(items, r)
			}
		}
		groups = append(groups, Group{Category: c, Items: items})
	}
	return groups
}

// indexOf requires mu.
func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
