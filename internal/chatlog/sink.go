//go:generate go run go.uber.org/mock/mockgen -source=sink.go -destination=mocks/mock_sink.go -package=mocks
package chatlog

import (
	"context"
	"fmt"
	"log/slog"
)

// Sink is a durable destination for entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// History is implemented by sinks that can read their entries back.
type History interface {
	// Recent returns at most limit entries of room, oldest first.
	Recent(ctx context.Context, room string, limit int) ([]Entry, error)
}

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend    string
	Dir        string
	SQLitePath string
	BadgerPath string
	Logger     *slog.Logger
}

// Open builds the sink named by opts.Backend.
func Open(opts Options) (Sink, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NopSink{}, nil
	case BackendFile:
		return NewFileSink(opts.Dir)
	case BackendSQLite:
		return NewSQLiteSink(opts.SQLitePath)
	case BackendBadger:
		return NewBadgerSink(opts.BadgerPath, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", opts.Backend)
	}
}

// NopSink accepts and forgets entries.
type NopSink struct{}

func (NopSink) Append(context.Context, Entry) error { return nil }
func (NopSink) Close() error                        { return nil }
