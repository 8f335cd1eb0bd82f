// Package config holds the server settings and how they are resolved.
package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/andy6609/roomchat-server/internal/chatlog"
	"github.com/go-playground/validator/v10"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	MetricsAddr       string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=json text"`
	Lobby             string        `mapstructure:"lobby" yaml:"lobby" validate:"required,roomname"`
	OutboundBuffer    int           `mapstructure:"outbound_buffer" yaml:"outbound_buffer" validate:"gte=8"`
	MaxNicknameLength int           `mapstructure:"max_nickname_length" yaml:"max_nickname_length" validate:"gte=1,lte=256"`
	MaxRoomNameLength int           `mapstructure:"max_room_name_length" yaml:"max_room_name_length" validate:"gte=1,lte=256"`
	MaxMessageLength  int           `mapstructure:"max_message_length" yaml:"max_message_length" validate:"gte=1"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit" validate:"gte=1,lte=500"`
	Journal           JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// JournalConfig selects where chat lines are persisted.
type JournalConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" validate:"oneof=none file sqlite badger"`
	Dir        string `mapstructure:"dir" yaml:"dir" validate:"required_if=Backend file"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path" validate:"required_if=Backend badger"`
	Buffer     int    `mapstructure:"buffer" yaml:"buffer" validate:"gte=1"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":5000",
		MetricsAddr:       ":9090",
		LogLevel:          "info",
		LogFormat:         "json",
		Lobby:             "lobby",
		OutboundBuffer:    64,
		MaxNicknameLength: 32,
		MaxRoomNameLength: 32,
		MaxMessageLength:  512,
		HistoryLimit:      20,
		Journal: JournalConfig{
			Backend:    "file",
			Dir:        "logs",
			SQLitePath: "roomchat.db",
			BadgerPath: "roomchat-badger",
			Buffer:     1024,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// roomname accepts a room name with or without its # sigil. The
	// private message journal key cannot be used as a room.
	_ = v.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
		name := strings.ToLower(strings.TrimPrefix(fl.Field().String(), "#"))
		return name != "" &&
			name != chatlog.PrivateRoom &&
			!strings.ContainsFunc(name, unicode.IsSpace) &&
			!strings.Contains(name, "#")
	})
	return v
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
