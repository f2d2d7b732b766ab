package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewSealerKeys(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{"empty", "", "key is empty"},
		{"not base64", "not-valid-base64!@#$", "base64 decode failed"},
		{"short", base64.StdEncoding.EncodeToString(make([]byte, 16)), "must be 32 bytes"},
		{"long", base64.StdEncoding.EncodeToString(make([]byte, 64)), "must be 32 bytes"},
		{"valid", base64.StdEncoding.EncodeToString(make([]byte, 32)), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSealer(tt.key)
			if tt.wantErr == "" {
				if err != nil || s == nil {
					t.Fatalf("NewSealer() = %v, %v", s, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewSealer() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(newKey(t))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := s.Seal("refresh-token-value")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sealed, "refresh-token-value") {
		t.Fatal("sealed value contains plaintext")
	}
	again, _ := s.Seal("refresh-token-value")
	if again == sealed {
		t.Error("two seals of the same value are identical; nonce not random")
	}
	got, err := s.Open(sealed)
	if err != nil || got != "refresh-token-value" {
		t.Errorf("Open() = %q, %v", got, err)
	}

	if v, err := s.Seal(""); v != "" || err != nil {
		t.Errorf("Seal(\"\") = %q, %v", v, err)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewSealer(newKey(t))
	other, _ := NewSealer(newKey(t))
	sealed, _ := s.Seal("secret")

	if _, err := other.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Errorf("wrong key: err = %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	if _, err := s.Open(base64.StdEncoding.EncodeToString(raw)); !errors.Is(err, ErrOpen) {
		t.Errorf("flipped tag: err = %v", err)
	}

	if _, err := s.Open(base64.StdEncoding.EncodeToString([]byte("abc"))); !errors.Is(err, ErrOpen) {
		t.Errorf("short input: err = %v", err)
	}
}
