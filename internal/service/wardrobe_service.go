package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vbonduro/wardrobe/internal/addflow"
	"github.com/vbonduro/wardrobe/internal/auth"
	"github.com/vbonduro/wardrobe/internal/cache"
	"github.com/vbonduro/wardrobe/internal/closet"
	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/photostore"
	"github.com/vbonduro/wardrobe/internal/shuffle"
)

// imageUsage reports whether a stored image is still referenced by any
// record or favorite.
type imageUsage interface {
	ImageRefInUse(ctx context.Context, ref string) (bool, error)
}

// Options wires a WardrobeService.
type Options struct {
	Taxonomy domain.Taxonomy
	// Remote returns the record store scoped to one user.
	Remote func(ownerID int64) closet.RecordStore
	// CacheDir holds per-user closet snapshots. Empty disables them.
	CacheDir string
	Photos   photostore.PhotoStore
	Pipeline *addflow.Pipeline
	// Images, when set, lets removals delete images nothing references.
	Images imageUsage
	// NewEngine builds the shuffle engine for each user session.
	NewEngine func() *shuffle.Engine
	FlowTTL   time.Duration
}

// Wardrobe is one signed-in user's closet and shuffle state.
type Wardrobe struct {
	Closet  *closet.Store
	Shuffle *shuffle.Session

	unsubscribe func()
}

// ItemDetails are the user-entered fields for a new record.
type ItemDetails struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Brand    string `json:"brand"`
	Price    string `json:"price"`
}

// ShuffleState is the current outfit proposal with its toggles.
type ShuffleState struct {
	Current  shuffle.Selection `json:"current"`
	Paused   []domain.Category `json:"paused"`
	Excluded []domain.Category `json:"excluded"`
}

type WardrobeService struct {
	opts   Options
	logger *slog.Logger

	loads singleflight.Group

	mu        sync.Mutex
	wardrobes map[int64]*Wardrobe
	flows     map[string]*flowEntry
	// sessions counts signed-in tokens per user seen by this process.
	sessions map[int64]int
}

func NewWardrobeService(opts Options, logger *slog.Logger) *WardrobeService {
	if opts.Taxonomy == nil {
		opts.Taxonomy = domain.DefaultTaxonomy
	}
	if opts.NewEngine == nil {
		tax := opts.Taxonomy
		opts.NewEngine = func() *shuffle.Engine { return shuffle.NewEngine(tax, nil) }
	}
	if opts.FlowTTL <= 0 {
		opts.FlowTTL = 30 * time.Minute
	}
	return &WardrobeService{
		opts:      opts,
		logger:    logger,
		wardrobes: make(map[int64]*Wardrobe),
		flows:     make(map[string]*flowEntry),
		sessions:  make(map[int64]int),
	}
}

// Taxonomy returns the category order the service runs with.
func (s *WardrobeService) Taxonomy() domain.Taxonomy {
	return s.opts.Taxonomy
}

// Wardrobe returns the user's loaded wardrobe, loading it on first use.
// Concurrent first calls share one load.
func (s *WardrobeService) Wardrobe(ctx context.Context, userID int64) (*Wardrobe, error) {
	s.mu.Lock()
	w, ok := s.wardrobes[userID]
	s.mu.Unlock()
	if ok {
		return w, nil
	}

	v, err, _ := s.loads.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		s.mu.Lock()
		if w, ok := s.wardrobes[userID]; ok {
			s.mu.Unlock()
			return w, nil
		}
		s.mu.Unlock()

		w, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.wardrobes[userID] = w
		s.mu.Unlock()
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Wardrobe), nil
}

func (s *WardrobeService) load(ctx context.Context, userID int64) (*Wardrobe, error) {
	logger := s.logger.With("user_id", userID)

	var snapshots closet.Cache
	if s.opts.CacheDir != "" {
		snapshots = cache.NewFileCache(filepath.Join(s.opts.CacheDir, fmt.Sprintf("closet_%d.json", userID)))
	}

	c := closet.New(s.opts.Taxonomy, s.opts.Remote(userID), snapshots, logger)
	if err := c.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load closet: %w", err)
	}

	sess := shuffle.NewSession(s.opts.NewEngine())
	unsubscribe := c.Subscribe(func(ev closet.Event) {
		switch ev.Kind {
		case closet.ItemRemoved:
			sess.Forget(ev.Record.ID)
		case closet.ItemUpdated:
			sess.Update(ev.Record)
		}
	})

	return &Wardrobe{Closet: c, Shuffle: sess, unsubscribe: unsubscribe}, nil
}

// Evict drops the user's in-memory wardrobe and abandons their open flows.
func (s *WardrobeService) Evict(userID int64) {
	s.mu.Lock()
	w := s.wardrobes[userID]
	delete(s.wardrobes, userID)
	var flows []*addflow.Flow
	for id, e := range s.flows {
		if e.ownerID == userID {
			flows = append(flows, e.flow)
			delete(s.flows, id)
		}
	}
	s.mu.Unlock()

	if w != nil {
		w.unsubscribe()
	}
	for _, f := range flows {
		f.Abandon()
	}
	if w != nil || len(flows) > 0 {
		s.logger.Info("wardrobe evicted", "user_id", userID, "flows_abandoned", len(flows))
	}
}

// HandleSession evicts a user's state once their last session signs out.
// It is meant to be passed to auth.Service.Subscribe.
func (s *WardrobeService) HandleSession(ev auth.SessionEvent) {
	s.mu.Lock()
	if ev.SignedIn {
		s.sessions[ev.UserID]++
		s.mu.Unlock()
		return
	}
	if n := s.sessions[ev.UserID] - 1; n > 0 {
		s.sessions[ev.UserID] = n
		s.mu.Unlock()
		s.logger.Debug("session signed out, wardrobe kept", "user_id", ev.UserID, "sessions", n)
		return
	}
	delete(s.sessions, ev.UserID)
	s.mu.Unlock()
	s.Evict(ev.UserID)
}

// Items returns the user's records in canonical order.
func (s *WardrobeService) Items(ctx context.Context, userID int64) ([]domain.ClothingRecord, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return w.Closet.Records(), nil
}

// Closet returns the user's records grouped by category.
func (s *WardrobeService) Closet(ctx context.Context, userID int64) ([]closet.Group, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return w.Closet.GroupByCategory(), nil
}

func (s *WardrobeService) recordFromDetails(imageRef string, d ItemDetails) (domain.ClothingRecord, error) {
	category, err := s.opts.Taxonomy.Parse(d.Category)
	if err != nil {
		return domain.ClothingRecord{}, err
	}
	return domain.ClothingRecord{
		ImageRef: imageRef,
		Category: category,
		Name:     d.Name,
		Color:    d.Color,
		Brand:    d.Brand,
		Price:    d.Price,
	}, nil
}

// AddItem runs the whole add-item pipeline synchronously and catalogues the
// result.
func (s *WardrobeService) AddItem(ctx context.Context, userID int64, image []byte, mimeType string, d ItemDetails) (domain.ClothingRecord, error) {
	if _, err := s.opts.Taxonomy.Parse(d.Category); err != nil {
		return domain.ClothingRecord{}, err
	}
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return domain.ClothingRecord{}, err
	}

	f, _, err := s.opts.Pipeline.Run(ctx, photostore.OwnerPrefix(userID), image, mimeType)
	if err != nil {
		return domain.ClothingRecord{}, err
	}

	var added domain.ClothingRecord
	err = f.Complete(ctx, func(res addflow.Result) error {
		rec, err := s.recordFromDetails(res.ImageRef, d)
		if err != nil {
			return err
		}
		added, err = w.Closet.AddItem(ctx, rec)
		return err
	})
	if err != nil {
		f.Abandon()
		return domain.ClothingRecord{}, err
	}
	return added, nil
}

// UpdateItem edits a record. A missing id yields domain.ErrNotFound.
func (s *WardrobeService) UpdateItem(ctx context.Context, userID int64, id string, patch domain.RecordPatch) (domain.ClothingRecord, error) {
	if patch.Category != nil {
		c, err := s.opts.Taxonomy.Parse(string(*patch.Category))
		if err != nil {
			return domain.ClothingRecord{}, err
		}
		patch.Category = &c
	}
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return domain.ClothingRecord{}, err
	}
	rec, ok, err := w.Closet.UpdateItem(ctx, id, patch)
	if err != nil {
		return domain.ClothingRecord{}, err
	}
	if !ok {
		return domain.ClothingRecord{}, fmt.Errorf("clothing record %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// RemoveItem deletes a record and, when nothing else uses it, its image.
// Removing an unknown id reports false without error.
func (s *WardrobeService) RemoveItem(ctx context.Context, userID int64, id string) (bool, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return false, err
	}
	rec, found := w.Closet.Get(id)
	removed, err := w.Closet.RemoveItem(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	if found {
		s.releaseImages(ctx, rec.ImageRef)
	}
	return true, nil
}

// ItemImage opens the stored image of one of the user's records.
func (s *WardrobeService) ItemImage(ctx context.Context, userID int64, id string) (io.ReadCloser, string, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	rec, ok := w.Closet.Get(id)
	if !ok {
		return nil, "", fmt.Errorf("clothing record %s: %w", id, domain.ErrNotFound)
	}
	return s.opts.Photos.Get(ctx, rec.ImageRef)
}

// releaseImages deletes images no record or favorite references any more.
func (s *WardrobeService) releaseImages(ctx context.Context, refs ...string) {
	if s.opts.Images == nil {
		return
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		inUse, err := s.opts.Images.ImageRefInUse(ctx, ref)
		if err != nil {
			s.logger.Error("failed to check image usage", "image_ref", ref, "error", err)
			continue
		}
		if inUse {
			continue
		}
		if err := s.opts.Photos.Delete(ctx, ref); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("failed to delete image", "image_ref", ref, "error", err)
		}
	}
}

// Shuffle proposes a new outfit.
func (s *WardrobeService) Shuffle(ctx context.Context, userID int64) (ShuffleState, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return ShuffleState{}, err
	}
	w.Shuffle.Shuffle(w.Closet.Records())
	return s.state(w), nil
}

// Reroll re-picks one category.
func (s *WardrobeService) Reroll(ctx context.Context, userID int64, category string) (ShuffleState, error) {
	c, err := s.opts.Taxonomy.Parse(category)
	if err != nil {
		return ShuffleState{}, err
	}
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return ShuffleState{}, err
	}
	w.Shuffle.Reroll(w.Closet.Records(), c)
	return s.state(w), nil
}

// ShuffleState returns the current proposal without changing it.
func (s *WardrobeService) ShuffleState(ctx context.Context, userID int64) (ShuffleState, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return ShuffleState{}, err
	}
	return s.state(w), nil
}

func (s *WardrobeService) SetPaused(ctx context.Context, userID int64, category string, paused bool) (ShuffleState, error) {
	c, err := s.opts.Taxonomy.Parse(category)
	if err != nil {
		return ShuffleState{}, err
	}
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return ShuffleState{}, err
	}
	w.Shuffle.SetPaused(c, paused)
	return s.state(w), nil
}

func (s *WardrobeService) SetExcluded(ctx context.Context, userID int64, category string, excluded bool) (ShuffleState, error) {
	c, err := s.opts.Taxonomy.Parse(category)
	if err != nil {
		return ShuffleState{}, err
	}
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return ShuffleState{}, err
	}
	w.Shuffle.SetExcluded(c, excluded)
	return s.state(w), nil
}

func (s *WardrobeService) state(w *Wardrobe) ShuffleState {
	return ShuffleState{
		Current:  w.Shuffle.Current(),
		Paused:   s.inOrder(w.Shuffle.Paused()),
		Excluded: s.inOrder(w.Shuffle.Excluded()),
	}
}

func (s *WardrobeService) inOrder(set shuffle.Set) []domain.Category {
	out := []domain.Category{}
	for _, c := range s.opts.Taxonomy {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}

// SaveFavorite stores the current shuffle as a favorite outfit.
func (s *WardrobeService) SaveFavorite(ctx context.Context, userID int64) (domain.Outfit, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return domain.Outfit{}, err
	}
	return w.Closet.SaveOutfit(ctx, w.Shuffle.Current(), w.Shuffle.Excluded())
}

func (s *WardrobeService) Favorites(ctx context.Context, userID int64) ([]domain.Outfit, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return w.Closet.Favorites(), nil
}

// RemoveFavorite deletes a favorite by id. Unknown ids report false.
func (s *WardrobeService) RemoveFavorite(ctx context.Context, userID int64, id string) (bool, error) {
	w, err := s.Wardrobe(ctx, userID)
	if err != nil {
		return false, err
	}
	var refs []string
	for _, o := range w.Closet.Favorites() {
		if o.ID == id {
			for _, it := range o.Items {
				refs = append(refs, it.ImageRef)
			}
		}
	}
	removed, err := w.Closet.RemoveFavorite(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	s.releaseImages(ctx, refs...)
	return true, nil
}
