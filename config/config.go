// Package config loads environment variables and provides the typed, immutable Config
// snapshot used by the relay. It applies the same defaults the control panel writes so the
// binary can run with only chat credentials set.
//
// A Config is read once at startup. Permission modes, command enablement and the name map
// are never re-read while the relay runs; picking up a change requires a restart.
// Chat credentials are checked separately by Validate.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Command kinds in the order they are presented to chat.
var CommandKinds = []string{"instruction", "suggestion", "impersonation", "spawn", "encounter"}

const (
	defaultIRCAddr       = "irc.chat.twitch.tv:6667"
	defaultPrefix        = "Rolemaster"
	defaultHelpKeywords  = "help,ai,Rolemaster,rp"
	defaultCooldown      = 30
	defaultExecutor      = "/usr/bin/php"
	defaultManagerScript = "/var/www/html/HerikaServer/service/manager.php"
	defaultEncounterURL  = "http://localhost:8965"

	listsFileName = "user_lists.json"
	flagFileName  = "lists_updated.flag"
	envFileName   = "bot_env.json"
)

type Config struct {
	// Twitch chat
	Channel    string
	Username   string
	OAuthToken string
	IRCAddr    string
	IRCTLS     bool

	// Optional refresh credentials for the bot user token
	ClientID     string
	ClientSecret string
	RefreshToken string

	// Command grammar
	CommandPrefix   string
	UsePrefix       bool
	HelpKeywords    []string
	CommandNameMap  map[string]string // dev name -> user-facing name
	CommandsEnabled map[string]bool

	// Permission modes
	ModsOnly         bool
	SubsOnly         bool
	WhitelistEnabled bool

	Cooldown time.Duration

	// Executor
	ExecutorPath  string
	ManagerScript string
	EncounterURL  string

	// Collaborator files
	DataDir string

	// Supervisor
	RestartDelay    time.Duration
	RestartMaxDelay time.Duration

	HTTPAddr string
	DBDsn    string
	// EncryptionKey seals the stored chat refresh token (base64, 32 bytes).
	EncryptionKey string
}

// Load reads environment variables and applies defaults. Before reading, keys from the
// collaborator env file (TBOT_ENV_FILE, or bot_env.json inside TBOT_DATA_DIR) are merged
// into the environment without overriding variables that are already set.
// Missing chat credentials are not an error here; use Validate.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DataDir = os.Getenv("TBOT_DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	envFile := os.Getenv("TBOT_ENV_FILE")
	if envFile == "" {
		envFile = filepath.Join(cfg.DataDir, envFileName)
	}
	if err := MergeEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg.Channel = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(os.Getenv("TBOT_CHANNEL"))), "#")
	cfg.Username = os.Getenv("TBOT_USERNAME")
	cfg.OAuthToken = os.Getenv("TBOT_OAUTH")
	cfg.IRCAddr = os.Getenv("TBOT_IRC_ADDR")
	if cfg.IRCAddr == "" {
		cfg.IRCAddr = defaultIRCAddr
	}
	cfg.IRCTLS = os.Getenv("TBOT_IRC_TLS") == "1"
	cfg.ClientID = os.Getenv("TBOT_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("TBOT_CLIENT_SECRET")
	cfg.RefreshToken = os.Getenv("TBOT_REFRESH_TOKEN")

	cfg.CommandPrefix = os.Getenv("TBOT_COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = defaultPrefix
	}
	// The prefix is required unless the variable is explicitly set to something other than 1.
	if v, ok := os.LookupEnv("TBOT_USE_COMMAND_PREFIX"); ok {
		cfg.UsePrefix = v == "1"
	} else {
		cfg.UsePrefix = true
	}

	cfg.HelpKeywords = splitKeywords(os.Getenv("TBOT_HELP_KEYWORDS"))
	if len(cfg.HelpKeywords) == 0 {
		cfg.HelpKeywords = splitKeywords(defaultHelpKeywords)
	}

	nameMap, err := parseNameMap(os.Getenv("TBOT_COMMAND_NAME_MAP"))
	if err != nil {
		return nil, err
	}
	cfg.CommandNameMap = nameMap

	cfg.CommandsEnabled = make(map[string]bool, len(CommandKinds))
	for _, kind := range CommandKinds {
		cfg.CommandsEnabled[kind] = envFlag("TBOT_ROLEMASTER_" + strings.ToUpper(kind) + "_ENABLED")
	}

	cfg.ModsOnly = envFlag("TBOT_MODS_ONLY")
	cfg.SubsOnly = envFlag("TBOT_SUBS_ONLY")
	cfg.WhitelistEnabled = envFlag("TBOT_WHITELIST_ENABLED")

	cooldown := defaultCooldown
	if v := strings.TrimSpace(os.Getenv("TBOT_COOLDOWN")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TBOT_COOLDOWN (seconds): %w", err)
		}
		cooldown = max(0, n)
	}
	cfg.Cooldown = time.Duration(cooldown) * time.Second

	cfg.ExecutorPath = os.Getenv("TBOT_PHP_PATH")
	if cfg.ExecutorPath == "" {
		cfg.ExecutorPath = defaultExecutor
	}
	cfg.ManagerScript = os.Getenv("TBOT_MANAGER_SCRIPT")
	if cfg.ManagerScript == "" {
		cfg.ManagerScript = defaultManagerScript
	}
	cfg.EncounterURL = strings.TrimRight(os.Getenv("TBOT_ENCOUNTER_URL"), "/")
	if cfg.EncounterURL == "" {
		cfg.EncounterURL = defaultEncounterURL
	}

	if cfg.RestartDelay, err = envDuration("TBOT_RESTART_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RestartMaxDelay, err = envDuration("TBOT_RESTART_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RestartMaxDelay < cfg.RestartDelay {
		cfg.RestartMaxDelay = cfg.RestartDelay
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.DBDsn = os.Getenv("DB_DSN")
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")

	return cfg, nil
}

// Validate checks the fields required to open a chat session.
func (c *Config) Validate() error {
	if c.Channel == "" || c.Username == "" {
		return errors.New("missing twitch env: require TBOT_CHANNEL and TBOT_USERNAME")
	}
	if c.OAuthToken == "" && c.RefreshToken == "" {
		return errors.New("missing twitch env: require TBOT_OAUTH or TBOT_REFRESH_TOKEN")
	}
	return nil
}

// ListsFile is the collaborator-written whitelist/blacklist JSON file.
func (c *Config) ListsFile() string { return filepath.Join(c.DataDir, listsFileName) }

// FlagFile signals that ListsFile changed and should be reloaded.
func (c *Config) FlagFile() string { return filepath.Join(c.DataDir, flagFileName) }

// MergeEnvFile copies keys from a JSON object of string values into the process
// environment, leaving variables that are already set untouched. A missing file is not
// an error.
func MergeEnvFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}
	var vars map[string]any
	if err := json.Unmarshal(b, &vars); err != nil {
		return fmt.Errorf("parse env file %s: %w", path, err)
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case bool:
			s = map[bool]string{true: "1", false: "0"}[tv]
		case float64:
			s = strconv.FormatFloat(tv, 'f', -1, 64)
		default:
			continue
		}
		if err := os.Setenv(k, s); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func envFlag(key string) bool { return os.Getenv(key) == "1" }

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s (duration): %q", key, v)
	}
	return d, nil
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// parseNameMap decodes TBOT_COMMAND_NAME_MAP. An empty or "{}" value yields the identity
// map over CommandKinds.
func parseNameMap(raw string) (map[string]string, error) {
	m := make(map[string]string, len(CommandKinds))
	for _, kind := range CommandKinds {
		m[kind] = kind
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m, nil
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("invalid TBOT_COMMAND_NAME_MAP (JSON object): %w", err)
	}
	for dev, user := range decoded {
		user = strings.TrimSpace(user)
		if user == "" {
			continue
		}
		m[strings.ToLower(strings.TrimSpace(dev))] = user
	}
	return m, nil
}
