package web

import (
	"net/http"
)

func (s *Server) handleShuffleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.ShuffleState(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Shuffle(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleReroll(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Reroll(r.Context(), userID(r), r.PathValue("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, state)
}

func (s *Server) handleSetPaused(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := s.service.SetPaused(r.Context(), userID(r), r.PathValue("category"), paused)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		jsonResponse(w, http.StatusOK, state)
	}
}

func (s *Server) handleSetExcluded(excluded bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := s.service.SetExcluded(r.Context(), userID(r), r.PathValue("category"), excluded)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		jsonResponse(w, http.StatusOK, state)
	}
}
