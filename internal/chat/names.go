package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/andy6609/roomchat-server/internal/chatlog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RoomSigil prefixes room names on the wire.
const RoomSigil = "#"

// A cases.Caser is stateful, so every call builds its own.

// roomKey normalises a room name: sigil stripped, lower case.
func roomKey(name string) string {
	return cases.Lower(language.Und).String(strings.TrimPrefix(name, RoomSigil))
}

// nickKey folds a nickname so lookups ignore case.
func nickKey(nick string) string {
	return cases.Fold().String(nick)
}

// reservedRoom reports whether key names a journal stream that is not a
// room. Private messages are journaled under chatlog.PrivateRoom, so nobody
// may join or host a room with that key.
func reservedRoom(key string) bool {
	return key == chatlog.PrivateRoom
}

// displayRoom renders a room key the way clients see it.
func displayRoom(key string) string {
	return RoomSigil + key
}

// parseRoomArg validates the argument of /join and returns its room key.
// A reserved name comes back together with ErrRoomReserved.
func parseRoomArg(arg string, maxLen int) (string, error) {
	if !strings.HasPrefix(arg, RoomSigil) {
		return "", ErrRoomInvalid
	}
	key := roomKey(arg)
	if key == "" || strings.ContainsFunc(key, unicode.IsSpace) || strings.Contains(key, RoomSigil) {
		return "", ErrRoomInvalid
	}
	if maxLen > 0 && utf8.RuneCountInString(key) > maxLen {
		return "", ErrRoomInvalid
	}
	if reservedRoom(key) {
		return key, ErrRoomReserved
	}
	return key, nil
}

// validNickname rejects names that cannot be addressed by /private.
func validNickname(nick string, maxLen int) error {
	if nick == "" || strings.ContainsFunc(nick, unicode.IsSpace) {
		return ErrNicknameInvalid
	}
	if maxLen > 0 && utf8.RuneCountInString(nick) > maxLen {
		return ErrNicknameInvalid
	}
	return nil
}
