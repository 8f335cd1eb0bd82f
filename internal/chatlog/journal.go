package chatlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const appendTimeout = 5 * time.Second

// Journal is a Recorder that writes to a Sink from a single background
// goroutine. Record never blocks: entries are dropped when the buffer is full.
type Journal struct {
	sink    Sink
	entries chan Entry
	log     *slog.Logger
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewJournal(sink Sink, buffer int, logger *slog.Logger) *Journal {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		sink:    sink,
		entries: make(chan Entry, buffer),
		log:     logger,
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) Record(room, text string) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.entries <- NewEntry(room, text):
	default:
		JournalDropped.Inc()
		j.log.Warn("journal buffer full, entry dropped", "room", room)
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.entries {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := j.sink.Append(ctx, e); err != nil {
			JournalErrors.Inc()
			j.log.Warn("journal append failed", "room", e.Room, "error", err)
		}
		cancel()
	}
}

// History exposes the sink's read side when it has one.
func (j *Journal) History() (History, bool) {
	h, ok := j.sink.(History)
	return h, ok
}

// Close stops accepting entries, writes out what is buffered and closes the
// sink.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return nil
	}
	j.closed = true
	close(j.entries)
	j.mu.Unlock()

	<-j.done
	return j.sink.Close()
}
