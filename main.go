// Command rolemaster-relay is the chat relay daemon. It:
//   - Loads configuration (env, optional .env and the control panel's bot_env.json).
//   - Keeps the whitelist/blacklist cache in sync with the control panel's files.
//   - Optionally connects to Postgres for the command audit trail and token storage.
//   - Runs the Twitch chat session under a restart supervisor.
//   - Exposes /healthz, /readyz, /status, /metrics and the local tester endpoint.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/rolemaster-relay/chat"
	"github.com/onnwee/rolemaster-relay/config"
	"github.com/onnwee/rolemaster-relay/crypto"
	"github.com/onnwee/rolemaster-relay/db"
	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/relay"
	"github.com/onnwee/rolemaster-relay/server"
	"github.com/onnwee/rolemaster-relay/supervise"
	"github.com/onnwee/rolemaster-relay/telemetry"
	"github.com/onnwee/rolemaster-relay/userlists"
)

var version = "dev"

func main() {
	// Local dev convenience only; production relies on real env.
	_ = godotenv.Load(".env")

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdown, err := telemetry.InitTracing("rolemaster-relay", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lists := userlists.NewCache(cfg.ListsFile(), cfg.FlagFile())
	if err := lists.Reload(); err != nil {
		slog.Warn("user lists not loaded; starting empty", slog.String("file", cfg.ListsFile()), slog.Any("err", err))
	}

	database, auditor, tokens := openStore(ctx, cfg)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
	}

	var audit engine.Auditor
	if auditor != nil {
		audit = auditor
	}
	eng, cat := relay.Engine(cfg, lists, nil, audit)
	// The tester gets its own cooldown and invalid-attempt state so panel runs do not
	// throttle viewers.
	tester, _ := relay.Engine(cfg, lists, nil, audit)
	client := &chat.Client{
		Addr:    cfg.IRCAddr,
		TLS:     cfg.IRCTLS,
		Nick:    cfg.Username,
		Channel: cfg.Channel,
		Token:   relay.ChatTokens(ctx, cfg, tokens),
		Handler: eng,
	}

	startPprof()

	opts := server.Options{
		Channel: cfg.Channel,
		Handler: tester,
		Catalog: cat,
		Session: client,
		Lists:   lists,
		DB:      database,
	}
	if auditor != nil {
		opts.Audit = auditor
	}

	slog.Info("relay starting",
		slog.String("version", version),
		slog.String("channel", cfg.Channel),
		slog.Bool("audit", auditor != nil),
		slog.Bool("prefix_required", cfg.UsePrefix))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		userlists.Watch(gctx, lists)
		return nil
	})
	g.Go(func() error {
		return supervise.Run(gctx, supervise.Options{
			Name:     "chat",
			Delay:    cfg.RestartDelay,
			MaxDelay: cfg.RestartMaxDelay,
		}, client.RunSession)
	})
	g.Go(func() error {
		return server.Start(gctx, cfg.HTTPAddr, opts)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("relay stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}

// setupLogging configures slog from LOG_LEVEL and LOG_FORMAT. Defaults: info, text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}

// openStore connects the optional Postgres store. The relay keeps running without it:
// a database that cannot be reached or migrated only disables auditing and token storage.
// A malformed ENCRYPTION_KEY is fatal so tokens are never written in plaintext by accident.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, *db.AuditRecorder, *db.TokenStore) {
	if cfg.DBDsn == "" {
		slog.Info("DB_DSN not set; command audit disabled", slog.String("component", "db"))
		return nil, nil, nil
	}
	var sealer *crypto.Sealer
	if cfg.EncryptionKey != "" {
		s, err := crypto.NewSealer(cfg.EncryptionKey)
		if err != nil {
			slog.Error("encryption initialization failed", slog.Any("err", err), slog.String("component", "db"))
			os.Exit(1)
		}
		sealer = s
	} else {
		slog.Warn("ENCRYPTION_KEY not set, chat tokens will be stored in plaintext", slog.String("component", "db"))
	}

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db; continuing without audit", slog.Any("err", err), slog.String("component", "db"))
		return nil, nil, nil
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(mctx, database); err != nil {
		slog.Error("failed to migrate db; continuing without audit", slog.Any("err", err), slog.String("component", "db_migrate"))
		_ = database.Close()
		return nil, nil, nil
	}
	return database, &db.AuditRecorder{DB: database}, &db.TokenStore{DB: database, Sealer: sealer}
}

// startPprof serves the default mux's /debug/pprof when ENABLE_PPROF=1.
func startPprof() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		addr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", addr))
		srv := &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}

// Compile-time checks for the interfaces main wires together.
var (
	_ engine.Auditor        = (*db.AuditRecorder)(nil)
	_ server.AuditLog       = (*db.AuditRecorder)(nil)
	_ server.SessionState   = (*chat.Client)(nil)
	_ server.CommandHandler = (*engine.Engine)(nil)
	_ chat.Handler          = (*engine.Engine)(nil)
)
