package server

import (
	"fmt"
	"net/http"

	"github.com/onnwee/rolemaster-relay/chat"
)

// HandleHealthz answers liveness probes. The process is alive if it can answer.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the chat session is streaming and, when configured,
// the audit database answers.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"chat", func() error {
			if h.opts.Session == nil {
				return fmt.Errorf("no chat session configured")
			}
			if st, _ := h.opts.Session.State(); st != chat.StateStreaming {
				return fmt.Errorf("chat session %s", st)
			}
			return nil
		}},
		{"database", func() error {
			if h.opts.DB == nil {
				return nil
			}
			return h.opts.DB.PingContext(r.Context())
		}},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
