package server

import (
	"net/http"
	"time"

	"mue/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok", Time: time.Now().UTC()}
	if s.bus != nil {
		resp.Subscribers = s.bus.Subscribers()
	}
	if s.backfill != nil && s.backfill.IsRunning() {
		resp.NextBackfill = s.backfill.NextRun()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
