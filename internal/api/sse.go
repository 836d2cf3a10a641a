package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/alerts"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// handleAlertStream streams alert events as server-sent events with a
// periodic heartbeat comment.
func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	// long-lived stream; the server's write timeout must not cut it
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.bus.Subscribe(64)
	defer cancel()

	observ.Debug("sse_client_connected", map[string]any{"remote": r.RemoteAddr})
	defer observ.Debug("sse_client_disconnected", map[string]any{"remote": r.RemoteAddr})

	// an initial comment lets clients see the stream is open
	if _, err := fmt.Fprint(w, ":ok\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ":ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			seq++
			if err := writeEvent(w, seq, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, id int64, ev alerts.Event) error {
	payload, err := json.Marshal(alertMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: alert\nid: %d\ndata: %s\n\n", id, payload)
	return err
}
