package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

// BadgerSink stores entries in BadgerDB under keys of the form
// "msg:{room}:{unix nanos, 19 digits}:{uuid}" so a prefix scan returns a
// room's entries in time order. The uuid keeps two entries stamped with the
// same nanosecond apart.
type BadgerSink struct {
	db *badger.DB
}

func NewBadgerSink(path string, logger *slog.Logger) (*BadgerSink, error) {
	if path == "" {
		path = "roomchat-badger"
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{logger.With("component", "badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerSink{db: db}, nil
}

func roomPrefix(room string) string {
	return "msg:" + url.QueryEscape(room) + ":"
}

func badgerKey(e Entry) []byte {
	return fmt.Appendf(nil, "%s%019d:%s", roomPrefix(e.Room), e.At.UnixNano(), e.ID)
}

func (s *BadgerSink) Append(_ context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(e), value)
	})
}

func (s *BadgerSink) Recent(_ context.Context, room string, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix(room))
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Newest first: start past the largest possible timestamp.
		seek := append(slices.Clone(prefix), "9999999999999999999"...)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) == limit {
				break
			}
			var e Entry
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			})
			if err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

func (s *BadgerSink) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's printf-style logging into slog. Info and
// debug chatter is demoted to debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
