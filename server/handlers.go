package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// LocalTestUser is the chat identity of tester requests. The '@' cannot appear in a
// Twitch login, so it never collides with a real viewer.
const LocalTestUser = "@local_tester"

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	opts    Options
	started time.Time
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err), slog.String("component", "http"))
	}
}
