// Package closet holds a user's clothing records and favorite outfits for the
// lifetime of a session. Every mutation is written to the remote record store
// first and committed locally only once that write succeeds.
package closet

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/wardrobe/internal/domain"
)

// RecordStore is the durable backend for one user's closet.
type RecordStore interface {
	ListClothingRecords(ctx context.Context) ([]domain.ClothingRecord, error)
	CreateClothingRecord(ctx context.Context, rec domain.ClothingRecord) (string, error)
	UpdateClothingRecord(ctx context.Context, id string, patch domain.RecordPatch) error
	DeleteClothingRecord(ctx context.Context, id string) error
	ListFavoriteOutfits(ctx context.Context) ([]domain.Outfit, error)
	CreateFavoriteOutfit(ctx context.Context, outfit domain.Outfit) (string, error)
	DeleteFavoriteOutfit(ctx context.Context, id string) error
}

// Cache is an optional local snapshot used when the record store is
// unreachable.
type Cache interface {
	LoadCachedRecords(ctx context.Context) ([]domain.ClothingRecord, error)
	SaveCachedRecords(ctx context.Context, records []domain.ClothingRecord) error
}

type EventKind int

const (
	ItemAdded EventKind = iota + 1
	ItemUpdated
	ItemRemoved
	FavoriteSaved
	FavoriteRemoved
	Reloaded
)

// Event describes a committed change. Record or Outfit is set depending on
// Kind.
type Event struct {
	Kind   EventKind
	Record domain.ClothingRecord
	Outfit domain.Outfit
}

// Group is one category of the grouped closet view.
type Group struct {
	Category domain.Category         `json:"category"`
	Items    []domain.ClothingRecord `json:"items"`
}

type Store struct {
	taxonomy domain.Taxonomy
	remote   RecordStore
	cache    Cache
	logger   *slog.Logger
	now      func() time.Time

	// writeMu serializes mutations so they reach the record store in the
	// order they were issued. Reads only take mu.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	records   []domain.ClothingRecord
	favorites []domain.Outfit

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New returns an empty store. cache may be nil.
func New(taxonomy domain.Taxonomy, remote RecordStore, cache Cache, logger *slog.Logger) *Store {
	return &Store{
		taxonomy: taxonomy,
		remote:   remote,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[int]func(Event)),
	}
}

// Load replaces the in-memory state with the record store's contents. When
// the clothing list cannot be fetched, the local snapshot is used instead and
// favorites that cannot be fetched either are left as they were.
func (s *Store) Load(ctx context.Context) error {
	var records []domain.ClothingRecord
	var favorites []domain.Outfit
	var fromCache bool
	var favErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.remote.ListClothingRecords(gctx)
		if err == nil {
			records = recs
			return nil
		}
		if s.cache == nil {
			return domain.External("list clothing records", err)
		}
		s.logger.Warn("record store unavailable, using cached closet", "error", err)
		cached, cerr := s.cache.LoadCachedRecords(gctx)
		if cerr != nil {
			return domain.External("list clothing records", fmt.Errorf("%w (cache: %v)", err, cerr))
		}
		records = cached
		fromCache = true
		return nil
	})
	g.Go(func() error {
		favorites, favErr = s.remote.ListFavoriteOutfits(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if favErr != nil {
		if !fromCache {
			return domain.External("list favorite outfits", favErr)
		}
		s.logger.Warn("record store unavailable, favorites not loaded", "error", favErr)
		s.mu.RLock()
		favorites = slices.Clone(s.favorites)
		s.mu.RUnlock()
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.records = records
	s.favorites = favorites
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.Info("closet loaded", "records", len(records), "favorites", len(favorites))
	s.notify(Event{Kind: Reloaded})
	return nil
}

// Subscribe registers fn for every committed change. fn runs synchronously
// after the change is visible to readers and must not call back into
// mutating methods. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// snapshot writes the current records to the local cache. Failures are
// logged only.
func (s *Store) snapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.mu.RLock()
	records := slices.Clone(s.records)
	s.mu.RUnlock()
	if err := s.cache.SaveCachedRecords(ctx, records); err != nil {
		s.logger.Error("failed to save closet snapshot", "error", err)
	}
}

// localID is used when the record store does not hand back an identifier.
func (s *Store) localID() string {
	return strconv.FormatInt(s.now().UnixNano(), 36)
}
