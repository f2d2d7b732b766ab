package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/rolemaster-relay/crypto"
)

// TokenStore keeps the latest chat token per bot login. Twitch rotates refresh tokens,
// so the one from the environment stops working after the first refresh unless the
// new one is kept somewhere.
type TokenStore struct {
	DB *sql.DB
	// Sealer, when set, encrypts tokens before they are written.
	Sealer *crypto.Sealer
}

// Save upserts the token for login.
func (s *TokenStore) Save(ctx context.Context, login string, tok *oauth2.Token) error {
	if tok == nil || tok.RefreshToken == "" {
		return errors.New("token has no refresh token")
	}
	access, refresh, version := tok.AccessToken, tok.RefreshToken, 0
	if s.Sealer != nil {
		var err error
		if access, err = s.Sealer.Seal(access); err != nil {
			return fmt.Errorf("seal access token: %w", err)
		}
		if refresh, err = s.Sealer.Seal(refresh); err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		version = crypto.KeyVersion
	}
	var expiry sql.NullTime
	if !tok.Expiry.IsZero() {
		expiry = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chat_tokens(login, access_token, refresh_token, expires_at, encryption_version, updated_at)
		 VALUES($1,$2,$3,$4,$5,NOW())
		 ON CONFLICT(login) DO UPDATE SET
		   access_token=EXCLUDED.access_token,
		   refresh_token=EXCLUDED.refresh_token,
		   expires_at=EXCLUDED.expires_at,
		   encryption_version=EXCLUDED.encryption_version,
		   updated_at=NOW()`,
		login, access, refresh, expiry, version)
	if err != nil {
		return fmt.Errorf("upsert chat token: %w", err)
	}
	return nil
}

// Load returns the stored token for login, or nil when none is stored.
func (s *TokenStore) Load(ctx context.Context, login string) (*oauth2.Token, error) {
	var (
		access, refresh string
		expiry          sql.NullTime
		version         int
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(access_token,''), refresh_token, expires_at, encryption_version
		 FROM chat_tokens WHERE login = $1`, login).Scan(&access, &refresh, &expiry, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat token: %w", err)
	}
	if version == crypto.KeyVersion {
		if s.Sealer == nil {
			return nil, errors.New("chat token is encrypted but ENCRYPTION_KEY is not configured")
		}
		if access, err = s.Sealer.Open(access); err != nil {
			return nil, fmt.Errorf("open access token: %w", err)
		}
		if refresh, err = s.Sealer.Open(refresh); err != nil {
			return nil, fmt.Errorf("open refresh token: %w", err)
		}
	}
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	return tok, nil
}

// Persister returns a callback for twitchauth.Refreshing.OnRefresh. Each write is
// bounded by timeout; failures go to report.
func (s *TokenStore) Persister(login string, timeout time.Duration, report func(error)) func(*oauth2.Token) {
	return func(tok *oauth2.Token) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Save(ctx, login, tok); err != nil && report != nil {
			report(err)
		}
	}
}
