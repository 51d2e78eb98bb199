package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/vbonduro/wardrobe/internal/service"
	"github.com/vbonduro/wardrobe/internal/vision"
)

type flowResponse struct {
	ID         string             `json:"id"`
	ImageRef   string             `json:"imageRef"`
	Suggestion *vision.Suggestion `json:"suggestion,omitempty"`
}

// handleStartFlow starts an add-item flow and waits for the processed image
// so the client can review the suggestion before completing it.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	uid := userID(r)
	flow, err := s.service.StartFlow(r.Context(), uid, data, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := flow.Wait(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; the flow stays open until it expires.
			return
		}
		if abandonErr := s.service.AbandonFlow(uid, flow.ID); abandonErr != nil {
			s.logger.Debug("abandon failed flow", "flow_id", flow.ID, "error", abandonErr)
		}
		s.writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusCreated, flowResponse{
		ID:         flow.ID,
		ImageRef:   res.ImageRef,
		Suggestion: res.Suggestion,
	})
}

func (s *Server) handleCompleteFlow(w http.ResponseWriter, r *http.Request) {
	var details service.ItemDetails
	if err := decodeJSON(w, r, &details); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.service.CompleteFlow(r.Context(), userID(r), r.PathValue("id"), details)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleAbandonFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.service.AbandonFlow(userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
