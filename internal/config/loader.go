package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix         = "ROOMCHAT"
	defaultConfigName = "roomchat.yaml"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":                 "addr",
	"metrics-addr":         "metrics_addr",
	"log-level":            "log_level",
	"log-format":           "log_format",
	"lobby":                "lobby",
	"outbound-buffer":      "outbound_buffer",
	"max-nickname-length":  "max_nickname_length",
	"max-room-name-length": "max_room_name_length",
	"max-message-length":   "max_message_length",
	"history-limit":        "history_limit",
	"journal-backend":      "journal.backend",
	"journal-dir":          "journal.dir",
	"journal-sqlite-path":  "journal.sqlite_path",
	"journal-badger-path":  "journal.badger_path",
	"journal-buffer":       "journal.buffer",
}

// RegisterFlags declares one flag per config key on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.Addr, "chat listen address")
	flags.String("metrics-addr", d.MetricsAddr, "prometheus listen address (empty disables)")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	flags.String("log-format", d.LogFormat, "log format: json or text")
	flags.String("lobby", d.Lobby, "name of the default room")
	flags.Int("outbound-buffer", d.OutboundBuffer, "lines queued per client before dropping")
	flags.Int("max-nickname-length", d.MaxNicknameLength, "longest accepted nickname")
	flags.Int("max-room-name-length", d.MaxRoomNameLength, "longest accepted room name")
	flags.Int("max-message-length", d.MaxMessageLength, "messages are truncated to this many bytes")
	flags.Int("history-limit", d.HistoryLimit, "lines returned by /history")
	flags.String("journal-backend", d.Journal.Backend, "message journal: none, file, sqlite, badger")
	flags.String("journal-dir", d.Journal.Dir, "directory for the file journal")
	flags.String("journal-sqlite-path", d.Journal.SQLitePath, "database file for the sqlite journal")
	flags.String("journal-badger-path", d.Journal.BadgerPath, "directory for the badger journal")
	flags.Int("journal-buffer", d.Journal.Buffer, "entries queued before the journal drops")
}

// Load builds configuration from defaults, an optional config file, a .env
// file, environment variables and changed flags, and returns the config file
// path it used ("" when none).
// Precedence: defaults < config file < env vars < flags.
func Load(explicitPath string, flags *pflag.FlagSet) (Config, string, error) {
	cfg := Default()

	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, "", fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, "", fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	configPath, err := resolveConfigPath(explicitPath)
	if err != nil {
		return cfg, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}
	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("lobby", cfg.Lobby)
	v.SetDefault("outbound_buffer", cfg.OutboundBuffer)
	v.SetDefault("max_nickname_length", cfg.MaxNicknameLength)
	v.SetDefault("max_room_name_length", cfg.MaxRoomNameLength)
	v.SetDefault("max_message_length", cfg.MaxMessageLength)
	v.SetDefault("history_limit", cfg.HistoryLimit)
	v.SetDefault("journal.backend", cfg.Journal.Backend)
	v.SetDefault("journal.dir", cfg.Journal.Dir)
	v.SetDefault("journal.sqlite_path", cfg.Journal.SQLitePath)
	v.SetDefault("journal.badger_path", cfg.Journal.BadgerPath)
	v.SetDefault("journal.buffer", cfg.Journal.Buffer)
}

// resolveConfigPath returns explicitPath, which must exist, or the default
// file in the working directory when that one exists.
func resolveConfigPath(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", nil
	}
	path := filepath.Join(cwd, defaultConfigName)
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

// WriteDefault writes the default configuration as yaml to path. An
// existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = defaultConfigName
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
