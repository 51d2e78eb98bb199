package web

import (
	"net/http"
)

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	outfits, err := s.service.Favorites(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"favorites": outfits})
}

// handleSaveFavorite stores the current shuffle. An empty selection is a 400.
func (s *Server) handleSaveFavorite(w http.ResponseWriter, r *http.Request) {
	outfit, err := s.service.SaveFavorite(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, outfit)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.RemoveFavorite(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
