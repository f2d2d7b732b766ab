package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/onnwee/rolemaster-relay/chat"
	"github.com/onnwee/rolemaster-relay/command"
	"github.com/onnwee/rolemaster-relay/dispatch"
	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/permission"
	"github.com/onnwee/rolemaster-relay/throttle"
)

type noLists struct{}

func (noLists) IsBlacklisted(string) bool { return false }
func (noLists) IsWhitelisted(string) bool { return false }
func (noLists) Sizes() (int, int)         { return 2, 1 }

type fakeDispatcher struct{ calls []string }

func (f *fakeDispatcher) Dispatch(_ context.Context, devType, text string) (dispatch.Result, error) {
	f.calls = append(f.calls, devType+":"+text)
	return dispatch.Result{DevType: devType, Text: text}, nil
}

type fixedState struct{ st chat.State }

func (f fixedState) State() (chat.State, time.Time) { return f.st, time.Unix(0, 0) }

type fakeAudit struct {
	entries []engine.Entry
	err     error
	user    string
	limit   int
}

func (f *fakeAudit) Recent(_ context.Context, user string, limit int) ([]engine.Entry, error) {
	f.user, f.limit = user, limit
	return f.entries, f.err
}

func newOptions(t *testing.T) (Options, *fakeDispatcher) {
	t.Helper()
	enabled := map[string]bool{}
	for _, s := range command.Defs {
		enabled[s.Dev] = true
	}
	cat := command.NewCatalog(command.Options{
		Prefix:         "Rolemaster",
		UsePrefix:      true,
		HelpKeywords:   []string{"help"},
		Enabled:        enabled,
		EncounterTypes: dispatch.NPCTypes,
	})
	d := &fakeDispatcher{}
	eng := engine.New(engine.Options{
		Catalog:    cat,
		Policy:     permission.Policy{Owner: "streamer", Lists: noLists{}, ModsOnly: true},
		Throttle:   throttle.New(0),
		Dispatcher: d,
	})
	return Options{Channel: "streamer", Handler: eng, Catalog: cat, Session: fixedState{chat.StateStreaming}, Lists: noLists{}}, d
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndCorrelation(t *testing.T) {
	opts, _ := newOptions(t)
	h := NewMux(opts)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing generated correlation id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("correlation id = %q, want echo of request header", got)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name    string
		session SessionState
		want    int
	}{
		{"streaming", fixedState{chat.StateStreaming}, http.StatusOK},
		{"connecting", fixedState{chat.StateConnecting}, http.StatusServiceUnavailable},
		{"no session", nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := newOptions(t)
			opts.Session = tt.session
			rec := do(t, NewMux(opts), http.MethodGet, "/readyz", "")
			if rec.Code != tt.want {
				t.Errorf("readyz = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestStatus(t *testing.T) {
	opts, _ := newOptions(t)
	rec := do(t, NewMux(opts), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Channel     string          `json:"channel"`
		Tracing     *bool           `json:"tracing_enabled"`
		Session     map[string]any  `json:"session"`
		Permissions map[string]bool `json:"permissions"`
		Lists       map[string]int  `json:"lists"`
		Commands    struct {
			Enabled []string `json:"enabled"`
		} `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Channel != "streamer" || got.Session["state"] != "streaming" || !got.Permissions["mods_only"] {
		t.Errorf("status = %+v", got)
	}
	if got.Tracing == nil || *got.Tracing {
		t.Errorf("tracing_enabled = %v, want false without an exporter", got.Tracing)
	}
	if diff := cmp.Diff(map[string]int{"whitelist": 2, "blacklist": 1}, got.Lists); diff != "" {
		t.Errorf("lists (-want +got):\n%s", diff)
	}
	if len(got.Commands.Enabled) != len(command.Defs) {
		t.Errorf("enabled commands = %v", got.Commands.Enabled)
	}
	if strings.Contains(rec.Body.String(), "oauth") {
		t.Error("status leaks credentials")
	}
}

func TestTestCommand(t *testing.T) {
	opts, d := newOptions(t)
	h := NewMux(opts)

	rec := do(t, h, http.MethodPost, "/test-command", `{"message":"Rolemaster:instruction:Wave to chat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("test-command = %d %s", rec.Code, rec.Body.String())
	}
	var got testCommandResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := testCommandResponse{Success: true, Messages: []string{command.MsgAccepted}, User: LocalTestUser, Outcome: "accepted"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"instruction:Wave to chat"}, d.calls); diff != "" {
		t.Errorf("dispatch calls (-want +got):\n%s", diff)
	}

	// Mods-only mode does not stop the tester, who counts as a moderator.
	rec = do(t, h, http.MethodPost, "/test-command", `{"message":"just chatting"}`)
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Success || got.Outcome != "ignored" || len(got.Messages) != 0 {
		t.Errorf("chatter = %+v", got)
	}
}

func TestTestCommandRejectsBadInput(t *testing.T) {
	opts, _ := newOptions(t)
	h := NewMux(opts)
	for _, body := range []string{"", "{}", `{"message":"   "}`, "not json"} {
		if rec := do(t, h, http.MethodPost, "/test-command", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/test-command", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}
}

func TestTestCommandRequiresAuth(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "secret-token")
	opts, _ := newOptions(t)
	h := NewMux(opts)

	if rec := do(t, h, http.MethodPost, "/test-command", `{"message":"!help"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/test-command", bytes.NewBufferString(`{"message":"!help"}`))
	req.Header.Set("X-Admin-Token", "secret-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token = %d", rec.Code)
	}
}

func TestAudit(t *testing.T) {
	opts, _ := newOptions(t)
	if rec := do(t, NewMux(opts), http.MethodGet, "/audit", ""); rec.Code != http.StatusNotFound {
		t.Errorf("without store = %d", rec.Code)
	}

	fa := &fakeAudit{entries: []engine.Entry{{CorrelationID: "c1", User: "viewer", Kind: "user", Outcome: "accepted", At: time.Unix(10, 0)}}}
	opts.Audit = fa
	h := NewMux(opts)

	rec := do(t, h, http.MethodGet, "/audit?user=viewer&limit=9000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit = %d", rec.Code)
	}
	if fa.user != "viewer" || fa.limit != 500 {
		t.Errorf("Recent called with %q, %d", fa.user, fa.limit)
	}
	if !strings.Contains(rec.Body.String(), `"correlation_id":"c1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/audit?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", rec.Code)
	}
	fa.err = errors.New("db down")
	if rec := do(t, h, http.MethodGet, "/audit", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("store error = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	opts, _ := newOptions(t)
	if rec := do(t, NewMux(opts), http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}
