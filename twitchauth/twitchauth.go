// Package twitchauth supplies the user access token the chat connection logs in with.
//
// Chat needs a user (bot) token with chat:read and chat:edit scopes. An app access
// token from the client-credentials grant cannot be used for IRC.
package twitchauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

// TokenProvider returns a current access token for the chat login.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token, e.g. from TBOT_OAUTH.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.New("no chat token configured")
	}
	return string(s), nil
}

// Config returns the OAuth2 client configuration for Twitch.
func Config(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     twitch.Endpoint,
	}
}

// Refreshing refreshes a user token from a refresh token and caches it until shortly
// before expiry. Twitch rotates refresh tokens; the underlying source keeps the newest.
type Refreshing struct {
	mu  sync.Mutex
	src oauth2.TokenSource
	// OnRefresh, if set, is called whenever a new access token is issued.
	OnRefresh func(*oauth2.Token)
	last      string
}

// NewRefreshing builds a Refreshing provider. ctx carries an optional *http.Client under
// oauth2.HTTPClient and must outlive the provider.
func NewRefreshing(ctx context.Context, cfg *oauth2.Config, refreshToken string) *Refreshing {
	seed := &oauth2.Token{RefreshToken: refreshToken}
	return &Refreshing{src: oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx, seed))}
}

func (r *Refreshing) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, err := r.src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh chat token: %w", err)
	}
	if tok.AccessToken != r.last {
		r.last = tok.AccessToken
		if r.OnRefresh != nil {
			r.OnRefresh(tok)
		}
	}
	return tok.AccessToken, nil
}

// FormatPass returns the PASS argument for a token, adding the "oauth:" prefix when
// it is missing.
func FormatPass(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "oauth:") {
		return "oauth:" + token[len("oauth:"):]
	}
	return "oauth:" + token
}

// New picks the provider for the configured credentials: a refresh token with client
// credentials wins over a static token.
func New(ctx context.Context, token, clientID, clientSecret, refreshToken string) TokenProvider {
	if refreshToken != "" && clientID != "" && clientSecret != "" {
		return NewRefreshing(ctx, Config(clientID, clientSecret), refreshToken)
	}
	return Static(token)
}
