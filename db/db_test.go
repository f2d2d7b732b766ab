package db_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/rolemaster-relay/crypto"
	"github.com/onnwee/rolemaster-relay/db"
	"github.com/onnwee/rolemaster-relay/engine"
	"github.com/onnwee/rolemaster-relay/testutil"
)

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := db.Connect(""); !errors.Is(err, db.ErrNoDSN) {
		t.Errorf("Connect(\"\") = %v, want ErrNoDSN", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, database); err != nil {
		t.Fatalf("second Migrate() = %v", err)
	}
	v, dirty, err := db.Version(database)
	if err != nil || dirty || v < 2 {
		t.Errorf("Version() = %d, %v, %v", v, dirty, err)
	}
}

func TestAuditRecordAndRecent(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	a := &db.AuditRecorder{DB: database}

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []engine.Entry{
		{CorrelationID: "c1", User: "viewer", Kind: "user", DevType: "instruction", Outcome: "accepted", At: base},
		{CorrelationID: "c2", User: "viewer", Kind: "malformed", Outcome: "invalid", Detail: "format", At: base.Add(time.Second)},
		{CorrelationID: "c3", User: "mod", Kind: "moderation", Outcome: "moderation", At: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := a.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) = %v", e.CorrelationID, err)
		}
	}

	all, err := a.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].CorrelationID != "c3" || all[2].CorrelationID != "c1" {
		t.Fatalf("Recent() order = %+v", all)
	}
	if all[1].DevType != "" || all[1].Detail != "format" {
		t.Errorf("optional columns = %+v", all[1])
	}

	mine, err := a.Recent(ctx, "viewer", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].CorrelationID != "c2" {
		t.Errorf("Recent(viewer, 1) = %+v", mine)
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	sealer, err := crypto.NewSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		sealer *crypto.Sealer
	}{
		{"plaintext", nil},
		{"sealed", sealer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &db.TokenStore{DB: database, Sealer: tt.sealer}
			if tok, err := store.Load(ctx, "nobody"); tok != nil || err != nil {
				t.Fatalf("Load(nobody) = %v, %v", tok, err)
			}
			exp := time.Now().Add(time.Hour).Truncate(time.Second)
			in := &oauth2.Token{AccessToken: "a-" + tt.name, RefreshToken: "r-" + tt.name, Expiry: exp}
			if err := store.Save(ctx, "relaybot", in); err != nil {
				t.Fatal(err)
			}
			out, err := store.Load(ctx, "relaybot")
			if err != nil {
				t.Fatal(err)
			}
			if out.AccessToken != in.AccessToken || out.RefreshToken != in.RefreshToken || !out.Expiry.Equal(exp) {
				t.Errorf("Load() = %+v, want %+v", out, in)
			}
			if tt.sealer != nil {
				var raw string
				if err := database.QueryRowContext(ctx, `SELECT refresh_token FROM chat_tokens WHERE login = 'relaybot'`).Scan(&raw); err != nil {
					t.Fatal(err)
				}
				if raw == in.RefreshToken {
					t.Error("refresh token stored in plaintext")
				}
			}
		})
	}
}

func TestTokenStoreSealedNeedsKey(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	sealer, _ := crypto.NewSealer(key)
	if err := (&db.TokenStore{DB: database, Sealer: sealer}).Save(ctx, "relaybot", &oauth2.Token{RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}
	if _, err := (&db.TokenStore{DB: database}).Load(ctx, "relaybot"); err == nil {
		t.Error("Load() of a sealed token without a key should fail")
	}
}
