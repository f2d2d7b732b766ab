// Package relay assembles the command pipeline from a Config. The daemon and relayctl
// both build their engine here so a tester run behaves exactly like chat.
package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/onnwee/rolemaster-relay/command"
	"github.com/onnwee/rolemaster-relay/config"
	"github.com/onnwee/rolemaster-relay/db"
	"github.com/onnwee/rolemaster-relay/dispatch"
	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/permission"
	"github.com/onnwee/rolemaster-relay/throttle"
	"github.com/onnwee/rolemaster-relay/twitchauth"
)

// Catalog builds the command catalog from cfg.
func Catalog(cfg *config.Config) *command.Catalog {
	return command.NewCatalog(command.Options{
		Prefix:         cfg.CommandPrefix,
		UsePrefix:      cfg.UsePrefix,
		HelpKeywords:   cfg.HelpKeywords,
		NameMap:        cfg.CommandNameMap,
		Enabled:        cfg.CommandsEnabled,
		EncounterTypes: dispatch.NPCTypes,
	})
}

// Dispatcher builds the executor dispatcher with the real process runner and the
// encounter service client.
func Dispatcher(cfg *config.Config) *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Executor: cfg.ExecutorPath,
		Script:   cfg.ManagerScript,
		Runner:   dispatch.ExecRunner{},
		Spawner: &dispatch.EncounterClient{
			BaseURL: cfg.EncounterURL,
			HTTPClient: &http.Client{
				Timeout:   dispatch.EncounterTimeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
		},
	}
}

// Engine wires the full pipeline. lists backs the permission policy; auditor may be nil.
// d replaces the default Dispatcher when non-nil.
func Engine(cfg *config.Config, lists permission.Lists, d engine.Dispatcher, auditor engine.Auditor) (*engine.Engine, *command.Catalog) {
	cat := Catalog(cfg)
	if d == nil {
		d = Dispatcher(cfg)
	}
	eng := engine.New(engine.Options{
		Catalog: cat,
		Policy: permission.Policy{
			Owner:            cfg.Channel,
			ModsOnly:         cfg.ModsOnly,
			SubsOnly:         cfg.SubsOnly,
			WhitelistEnabled: cfg.WhitelistEnabled,
			Lists:            lists,
		},
		Throttle:   throttle.New(cfg.Cooldown),
		Dispatcher: d,
		Auditor:    auditor,
	})
	return eng, cat
}

// ChatTokens picks the chat token provider. With refresh credentials, a refresh token
// kept in store from an earlier rotation takes precedence over the configured one, and
// every rotation is written back. store may be nil.
func ChatTokens(ctx context.Context, cfg *config.Config, store *db.TokenStore) twitchauth.TokenProvider {
	log := slog.Default().With(slog.String("component", "twitchauth"))
	refresh := cfg.RefreshToken
	if store != nil && refresh != "" {
		lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		tok, err := store.Load(lctx, cfg.Username)
		cancel()
		switch {
		case err != nil:
			log.Warn("stored chat token unavailable; using configured refresh token", slog.Any("err", err))
		case tok != nil && tok.RefreshToken != "":
			refresh = tok.RefreshToken
			log.Info("using stored chat refresh token")
		}
	}
	p := twitchauth.New(ctx, cfg.OAuthToken, cfg.ClientID, cfg.ClientSecret, refresh)
	if r, ok := p.(*twitchauth.Refreshing); ok && store != nil {
		r.OnRefresh = store.Persister(cfg.Username, 5*time.Second, func(err error) {
			log.Error("failed to store rotated chat token", slog.Any("err", err))
		})
	}
	return p
}
