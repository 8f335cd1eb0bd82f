package chat

import (
	"context"
	"errors"
	"strings"
)

type command struct {
	action string
	arg    string
}

// parseCommand splits a line once into a lower-cased action and the rest.
func parseCommand(line string) command {
	action, arg, _ := strings.Cut(line, " ")
	return command{action: strings.ToLower(action), arg: strings.TrimSpace(arg)}
}

// handleCommand runs one slash command. It returns false when the session
// should close.
func (s *Session) handleCommand(ctx context.Context, line string) bool {
	cmd := parseCommand(line)
	switch cmd.action {
	case "/join":
		s.join(cmd.arg)
	case "/leave":
		s.leave()
	case "/private":
		s.private(cmd.arg)
	case "/users":
		s.Deliver(usersLine(s.room, s.reg.Members(s.room)))
	case "/rooms":
		s.Deliver(roomsLine(s.reg.Rooms()))
	case "/history":
		s.history(ctx)
	case "/help":
		for _, l := range helpLines() {
			s.Deliver(l)
		}
	case "/exit", "/quit":
		s.Deliver(msgClosing)
		return false
	default:
		s.Deliver(unknownCommandLine(line))
	}
	return true
}

func (s *Session) join(arg string) {
	room, err := parseRoomArg(arg, s.opts.MaxRoomNameLength)
	if errors.Is(err, ErrRoomReserved) {
		s.Deliver(roomReservedLine(room))
		return
	}
	if err != nil {
		s.Deliver(msgJoinUsage)
		return
	}
	if room == s.room {
		s.Deliver(alreadyInRoomLine(room))
		return
	}
	s.reg.Move(s, s.nick, s.room, room)
	s.logger.Debug("moved", "from", s.room, "to", room)
	s.room = room
	s.Deliver(enteredRoomLine(room))
}

func (s *Session) leave() {
	lobby := s.reg.Lobby()
	if s.room == lobby {
		s.Deliver(msgAlreadyInLobby)
		return
	}
	from := s.room
	s.reg.Move(s, s.nick, from, lobby)
	s.logger.Debug("moved", "from", from, "to", lobby)
	s.room = lobby
	s.Deliver(returnedToLobbyLine(from, lobby))
}

func (s *Session) private(arg string) {
	target, body, ok := strings.Cut(arg, " ")
	body = strings.TrimSpace(body)
	if target == "" || !ok || body == "" {
		s.Deliver(msgPrivateUsage)
		return
	}
	if nickKey(target) == nickKey(s.nick) {
		s.Deliver(msgPrivateSelf)
		return
	}

	switch s.reg.SendDirect(s.nick, target, s.truncate(body)) {
	case DirectTargetNotFound:
		s.Deliver(userNotFoundLine(target))
	case DirectSenderNotFound:
		s.logger.Warn("private message sent without echo, sender binding missing", "target", target)
	}
}

func (s *Session) history(ctx context.Context) {
	if s.opts.History == nil {
		s.Deliver(msgHistoryDisabled)
		return
	}
	entries, err := s.opts.History.Recent(ctx, s.room, s.opts.HistoryLimit)
	if err != nil {
		s.logger.Warn("history lookup failed", "error", err)
		s.Deliver(msgHistoryDisabled)
		return
	}
	s.Deliver(historyHeaderLine(s.room, len(entries)))
	for _, e := range entries {
		s.Deliver(e.Text)
	}
}
