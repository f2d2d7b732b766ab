package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the env file lookup at an empty temp dir so a stray bot_env.json in the
// working directory cannot leak into tests.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TBOT_DATA_DIR", dir)
	t.Setenv("TBOT_ENV_FILE", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.UsePrefix {
		t.Errorf("UsePrefix = false, want true when TBOT_USE_COMMAND_PREFIX is unset")
	}
	if cfg.CommandPrefix != "Rolemaster" {
		t.Errorf("CommandPrefix = %q, want Rolemaster", cfg.CommandPrefix)
	}
	if cfg.Cooldown != 30*time.Second {
		t.Errorf("Cooldown = %v, want 30s", cfg.Cooldown)
	}
	if len(cfg.HelpKeywords) != 4 {
		t.Errorf("HelpKeywords = %v, want 4 defaults", cfg.HelpKeywords)
	}
	for _, kind := range CommandKinds {
		if cfg.CommandNameMap[kind] != kind {
			t.Errorf("CommandNameMap[%s] = %q, want identity", kind, cfg.CommandNameMap[kind])
		}
		if cfg.CommandsEnabled[kind] {
			t.Errorf("CommandsEnabled[%s] = true, want disabled by default", kind)
		}
	}
	if cfg.RestartDelay != 2*time.Second {
		t.Errorf("RestartDelay = %v, want 2s", cfg.RestartDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TBOT_USE_COMMAND_PREFIX", "0")
	t.Setenv("TBOT_CHANNEL", "#SomeStreamer")
	t.Setenv("TBOT_COOLDOWN", "-5")
	t.Setenv("TBOT_HELP_KEYWORDS", " help , ,commands")
	t.Setenv("TBOT_COMMAND_NAME_MAP", `{"instruction":"scene"}`)
	t.Setenv("TBOT_ROLEMASTER_INSTRUCTION_ENABLED", "1")
	t.Setenv("TBOT_MODS_ONLY", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.UsePrefix {
		t.Errorf("UsePrefix = true, want false")
	}
	if cfg.Channel != "somestreamer" {
		t.Errorf("Channel = %q, want somestreamer", cfg.Channel)
	}
	if cfg.Cooldown != 0 {
		t.Errorf("Cooldown = %v, want clamped to 0", cfg.Cooldown)
	}
	if got := cfg.HelpKeywords; len(got) != 2 || got[0] != "help" || got[1] != "commands" {
		t.Errorf("HelpKeywords = %v, want [help commands]", got)
	}
	if cfg.CommandNameMap["instruction"] != "scene" || cfg.CommandNameMap["spawn"] != "spawn" {
		t.Errorf("CommandNameMap = %v", cfg.CommandNameMap)
	}
	if !cfg.CommandsEnabled["instruction"] || cfg.CommandsEnabled["spawn"] {
		t.Errorf("CommandsEnabled = %v", cfg.CommandsEnabled)
	}
	if !cfg.ModsOnly {
		t.Errorf("ModsOnly = false, want true")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"cooldown", "TBOT_COOLDOWN", "soon"},
		{"name map", "TBOT_COMMAND_NAME_MAP", "{not json"},
		{"restart delay", "TBOT_RESTART_DELAY", "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q succeeded, want error", tt.key, tt.val)
			}
		})
	}
}

func TestMergeEnvFileDoesNotOverride(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bot_env.json")
	if err := os.WriteFile(path, []byte(`{"TBOT_COOLDOWN":"12","TBOT_MODS_ONLY":"1","TBOT_SUBS_ONLY":true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TBOT_MODS_ONLY", "0")
	// Unset keys the file provides so t.Setenv restores them afterwards.
	t.Setenv("TBOT_COOLDOWN", "")
	t.Setenv("TBOT_SUBS_ONLY", "")
	os.Unsetenv("TBOT_COOLDOWN")
	os.Unsetenv("TBOT_SUBS_ONLY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cooldown != 12*time.Second {
		t.Errorf("Cooldown = %v, want 12s from env file", cfg.Cooldown)
	}
	if cfg.ModsOnly {
		t.Errorf("ModsOnly = true, env var should win over env file")
	}
	if !cfg.SubsOnly {
		t.Errorf("SubsOnly = false, want true from boolean in env file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	t.Setenv("TBOT_CHANNEL", "chan")
	t.Setenv("TBOT_USERNAME", "bot")
	t.Setenv("TBOT_OAUTH", "token")
	cfg, _ := Load()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}
	cfg.OAuthToken = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error without token or refresh token")
	}
	cfg.RefreshToken = "refresh"
	if err := cfg.Validate(); err != nil {
		t.Errorf("refresh token should satisfy credentials, got %v", err)
	}
	cfg.Channel = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error when channel missing")
	}
}

func TestFilePaths(t *testing.T) {
	cfg := &Config{DataDir: "/srv/relay"}
	if got := cfg.ListsFile(); got != "/srv/relay/user_lists.json" {
		t.Errorf("ListsFile() = %q", got)
	}
	if got := cfg.FlagFile(); got != "/srv/relay/lists_updated.flag" {
		t.Errorf("FlagFile() = %q", got)
	}
}
