// Package chatlog persists what is said in rooms and in private messages.
//
// Recording is asynchronous and lossy by design of the chat core: a Journal
// accepts entries without blocking and hands them to a Sink on its own
// goroutine. Sink failures are logged and counted, never returned to callers.
package chatlog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrivateRoom is the pseudo-room under which private messages are recorded.
const PrivateRoom = "private"

// Entry is one recorded line.
type Entry struct {
	ID   uuid.UUID
	Room string
	Text string
	At   time.Time
}

// NewEntry stamps text for room with a fresh ID and the current UTC time.
func NewEntry(room, text string) Entry {
	return Entry{
		ID:   uuid.New(),
		Room: room,
		Text: text,
		At:   time.Now().UTC(),
	}
}

// Recorder receives every broadcast and private message.
type Recorder interface {
	Record(room, text string)
}

// Discard drops everything.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(string, string) {}

// fileStem turns a room key into something safe to use as a file name.
func fileStem(room string) string {
	room = strings.TrimPrefix(room, "#")
	room = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, room)
	if room == "" || room == "." || room == ".." {
		return "_"
	}
	return room
}
