// Package server exposes the relay's local HTTP surface: liveness and readiness probes,
// a status summary, Prometheus metrics, the audit trail, and the tester endpoint the
// control panel uses to try a command without going through Twitch. Every request gets a
// correlation id that is echoed back and carried into logs and spans.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/rolemaster-relay/chat"
	"github.com/onnwee/rolemaster-relay/command"
	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/telemetry"
)

// CommandHandler runs a chat line through the command pipeline.
type CommandHandler interface {
	Handle(ctx context.Context, msg engine.Message, r engine.Replier) engine.Outcome
	Modes() command.Modes
}

// SessionState reports the chat connection state. *chat.Client satisfies it.
type SessionState interface {
	State() (chat.State, time.Time)
}

// ListSizes reports how many users the whitelist and blacklist hold.
type ListSizes interface {
	Sizes() (whitelist, blacklist int)
}

// AuditLog reads back recorded commands. *db.AuditRecorder satisfies it.
type AuditLog interface {
	Recent(ctx context.Context, user string, limit int) ([]engine.Entry, error)
}

// Options wires the handlers. Session, Lists, Audit and DB are optional.
type Options struct {
	Channel string
	Handler CommandHandler
	Catalog *command.Catalog
	Session SessionState
	Lists   ListSizes
	Audit   AuditLog
	DB      *sql.DB
}

// NewMux returns the HTTP handler with all routes.
func NewMux(o Options) http.Handler {
	h := &Handlers{opts: o, started: time.Now()}
	auth := loadAuthConfig()
	limiter := loadRateLimiter()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", h.HandleHealthz)
	mux.HandleFunc("GET /readyz", h.HandleReadyz)
	mux.HandleFunc("GET /status", h.HandleStatus)
	mux.Handle("POST /test-command", adminAuth(rateLimit(http.HandlerFunc(h.HandleTestCommand), limiter), auth))
	mux.Handle("GET /audit", adminAuth(http.HandlerFunc(h.HandleAudit), auth))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(rec, r.WithContext(ctx))
		telemetry.SetSpanHTTPStatus(span, rec.statusCode)
	})
	return withCORS(handler, loadCORSConfig())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, o Options) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(o),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
