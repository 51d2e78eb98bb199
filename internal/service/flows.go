package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vbonduro/wardrobe/internal/addflow"
	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/photostore"
)

type flowEntry struct {
	flow    *addflow.Flow
	ownerID int64
}

// StartFlow begins an add-item flow for the user. Flows older than the
// configured TTL are abandoned first.
func (s *WardrobeService) StartFlow(ctx context.Context, userID int64, image []byte, mimeType string) (*addflow.Flow, error) {
	s.expireFlows(time.Now())

	f, err := s.opts.Pipeline.Start(ctx, photostore.OwnerPrefix(userID), image, mimeType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.flows[f.ID] = &flowEntry{flow: f, ownerID: userID}
	s.mu.Unlock()
	return f, nil
}

// Flow returns one of the user's open flows.
func (s *WardrobeService) Flow(userID int64, flowID string) (*addflow.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.flows[flowID]
	if !ok || e.ownerID != userID {
		return nil, fmt.Errorf("flow %s: %w", flowID, domain.ErrNotFound)
	}
	return e.flow, nil
}

// CompleteFlow catalogues the flow's processed image with the given details.
func (s *WardrobeService) CompleteFlow(ctx context.Context, userID int64, flowID string, d ItemDetails) (domain.ClothingRecord, error) {
	f, err := s.Flow(userID, flowID)
	if err != nil {
		return domain.ClothingRecord{}, err
	}
	if _, err := s.opts.Taxonomy.Parse(d.Category); err != nil {
		return domain.ClothingRecord{}, err
	}
	w, err := s.Wardrobe(ctx, userID)
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
		return domain.ClothingRecord{}, err
	}

	s.dropFlow(flowID)
	return added, nil
}

// AbandonFlow cancels one of the user's flows.
func (s *WardrobeService) AbandonFlow(userID int64, flowID string) error {
	f, err := s.Flow(userID, flowID)
	if err != nil {
		return err
	}
	s.dropFlow(flowID)
	f.Abandon()
	return nil
}

func (s *WardrobeService) dropFlow(flowID string) {
	s.mu.Lock()
	delete(s.flows, flowID)
	s.mu.Unlock()
}

// expireFlows checks flow state outside s.mu so a slow commit on one flow
// never stalls other users.
func (s *WardrobeService) expireFlows(now time.Time) {
	s.mu.Lock()
	open := make(map[string]*addflow.Flow, len(s.flows))
	for id, e := range s.flows {
		open[id] = e.flow
	}
	s.mu.Unlock()

	var stale []*addflow.Flow
	for id, f := range open {
		if !f.Finished() && now.Sub(f.CreatedAt) <= s.opts.FlowTTL {
			continue
		}
		s.mu.Lock()
		if e, ok := s.flows[id]; ok && e.flow == f {
			delete(s.flows, id)
			stale = append(stale, f)
		}
		s.mu.Unlock()
	}

	for _, f := range stale {
		f.Abandon()
	}
	if len(stale) > 0 {
		s.logger.Info("expired add-item flows", "count", len(stale))
	}
}

// Close abandons every open flow.
func (s *WardrobeService) Close() {
	s.mu.Lock()
	flows := make([]*addflow.Flow, 0, len(s.flows))
	for id, e := range s.flows {
		flows = append(flows, e.flow)
		delete(s.flows, id)
	}
	s.mu.Unlock()
	for _, f := range flows {
		f.Abandon()
	}
}
