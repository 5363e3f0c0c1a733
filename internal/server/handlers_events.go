package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	eventBuffer          = 16
	sseHeartbeatInterval = 30 * time.Second
)

// handleEvents streams refresh events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeErrorReq(w, r, http.StatusNotImplemented, makeAPIError(http.StatusNotImplemented, "not_implemented", ErrCodeNotImplemented, fmt.Errorf("event stream is not configured")))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(fmt.Errorf("streaming unsupported")))
		return
	}

	// Streams outlive the server write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := s.bus.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log().Error("encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: refresh\ndata: %s\n\n", ev.Seq, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
