package api

import (
	"net/http"

	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/gamify"
)

type gamifySummary struct {
	Points int                `json:"points"`
	Badges []gamify.UserBadge `json:"badges"`
}

func (s *Server) handleGamifySummary(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	points, err := s.gamify.Total(r.Context(), id.ProfileID)
	if err != nil {
		fail(w, r, err)
		return
	}
	badges, err := s.gamify.Badges(r.Context(), id.ProfileID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if badges == nil {
		badges = []gamify.UserBadge{}
	}
	writeJSON(w, http.StatusOK, gamifySummary{Points: points, Badges: badges})
}
