package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type auditEntry struct {
	CorrelationID string    `json:"correlation_id"`
	User          string    `json:"user"`
	Kind          string    `json:"kind"`
	DevType       string    `json:"dev_type,omitempty"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
	At            time.Time `json:"at"`
}

// HandleAudit lists recent commands, newest first. Query: user, limit (max 500).
func (h *Handlers) HandleAudit(w http.ResponseWriter, r *http.Request) {
	if h.opts.Audit == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit store not configured"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, 500)
	}
	entries, err := h.opts.Audit.Recent(r.Context(), r.URL.Query().Get("user"), limit)
	if err != nil {
		slog.Error("failed to read audit log", slog.Any("err", err), slog.String("component", "http"))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read audit log"})
		return
	}
	out := make([]auditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntry{e.CorrelationID, e.User, e.Kind, e.DevType, e.Outcome, e.Detail, e.At.UTC()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
