package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/telemetry"
)

const maxTestBody = 8 << 10

type testCommandRequest struct {
	Message string `json:"message"`
}

type testCommandResponse struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
	User     string   `json:"user"`
	Outcome  string   `json:"outcome"`
}

// HandleTestCommand runs {"message": "..."} through the engine as LocalTestUser, a
// moderator and subscriber, and returns what would have been said in chat.
func (h *Handlers) HandleTestCommand(w http.ResponseWriter, r *http.Request) {
	if h.opts.Handler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "command engine not available"})
		return
	}
	var req testCommandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTestBody)).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No message provided"})
		return
	}

	var mu sync.Mutex
	messages := []string{}
	reply := engine.ReplierFunc(func(text string) error {
		mu.Lock()
		messages = append(messages, text)
		mu.Unlock()
		return nil
	})
	msg := engine.Message{User: LocalTestUser, Text: strings.TrimSpace(req.Message), IsMod: true, IsSub: true}
	out := h.opts.Handler.Handle(r.Context(), msg, reply)

	telemetry.LoggerWithCorr(r.Context()).Info("test command", slog.String("outcome", out.String()), slog.String("component", "http"))
	mu.Lock()
	defer mu.Unlock()
	writeJSON(w, http.StatusOK, testCommandResponse{
		Success:  out != engine.OutcomeIgnored,
		Messages: messages,
		User:     LocalTestUser,
		Outcome:  out.String(),
	})
}
