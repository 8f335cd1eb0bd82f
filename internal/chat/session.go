package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/andy6609/roomchat-server/internal/chatlog"
	"github.com/google/uuid"
)

const (
	nickKeyword  = "NICK"
	flushTimeout = 2 * time.Second

	// MinOutboundBuffer keeps room for the whole greeting before the
	// writer starts draining.
	MinOutboundBuffer = 8
)

// SessionOptions tunes a Session. Zero values fall back to defaults.
type SessionOptions struct {
	Logger            *slog.Logger
	OutboundBuffer    int
	MaxNicknameLength int
	MaxRoomNameLength int
	MaxMessageLength  int
	// History, when set, backs the /history command.
	History      chatlog.History
	HistoryLimit int
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = 64
	}
	o.OutboundBuffer = max(o.OutboundBuffer, MinOutboundBuffer)
	if o.MaxNicknameLength <= 0 {
		o.MaxNicknameLength = 32
	}
	if o.MaxRoomNameLength <= 0 {
		o.MaxRoomNameLength = 32
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = 512
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 20
	}
	return o
}

// Session is the server side of one client connection. It owns the
// connection and the outbound queue; the Registry only sees it as a Peer.
type Session struct {
	id     uuid.UUID
	conn   net.Conn
	reg    *Registry
	opts   SessionOptions
	logger *slog.Logger
	out    chan string

	// room is only touched by the goroutine running Serve.
	room string

	mu     sync.RWMutex
	nick   string
	state  State
	closed bool
}

func NewSession(conn net.Conn, reg *Registry, opts SessionOptions) *Session {
	opts = opts.withDefaults()
	id := uuid.New()
	return &Session{
		id:   id,
		conn: conn,
		reg:  reg,
		opts: opts,
		logger: opts.Logger.With(
			"conn_id", id.String(),
			"remote", remoteAddr(conn),
		),
		out: make(chan string, opts.OutboundBuffer),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Deliver queues line for the client. It never blocks: a full queue or a
// closed session drops the line.
func (s *Session) Deliver(line string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- line:
		return true
	default:
		return false
	}
}

// Serve runs the session until the client leaves, the connection fails or
// ctx is cancelled. The connection is closed when Serve returns.
func (s *Session) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session panic", "panic", r)
		}
	}()

	writerDone := StartOutboundWriter(s.conn, s.out)
	defer s.shutdown(writerDone)

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	reader := bufio.NewReader(s.conn)
	for _, line := range greetingLines(s.opts.MaxNicknameLength) {
		s.Deliver(line)
	}

	if !s.identify(reader) {
		return
	}
	s.serveIdentified(ctx, reader)
}

// identify runs the NICK handshake. It returns false if the stream ended
// before a nickname was accepted.
func (s *Session) identify(reader *bufio.Reader) bool {
	for {
		line, err := readLine(reader)
		if err != nil {
			s.logReadEnd(err)
			return false
		}

		nick, ok := parseNick(line)
		switch {
		case !ok:
			s.Deliver(msgNickCommand)
			continue
		case nick == "":
			s.Deliver(msgNickEmpty)
			continue
		case validNickname(nick, s.opts.MaxNicknameLength) != nil:
			s.Deliver(nickInvalidLine(s.opts.MaxNicknameLength))
			continue
		}

		s.setNick(nick)
		if err := s.reg.Register(s, nick, s.reg.Lobby()); err != nil {
			s.setNick("")
			if errors.Is(err, ErrNicknameTaken) {
				s.Deliver(nickTakenLine(nick))
			} else {
				s.Deliver(nickInvalidLine(s.opts.MaxNicknameLength))
			}
			s.logger.Debug("registration rejected", "nickname", nick, "error", err)
			continue
		}

		s.room = s.reg.Lobby()
		s.setState(StateIdentified)
		s.logger = s.logger.With("nickname", nick)

		for _, l := range welcomeLines(nick, s.room) {
			s.Deliver(l)
		}
		s.reg.Broadcast(s.room, lobbyJoinNotice(nick, s.room), s)
		return true
	}
}

func (s *Session) serveIdentified(ctx context.Context, reader *bufio.Reader) {
	for {
		line, err := readLine(reader)
		if err != nil {
			s.logReadEnd(err)
			return
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !s.handleCommand(ctx, text) {
				return
			}
			continue
		}
		s.reg.Broadcast(s.room, roomMessageLine(s.nick, s.room, s.truncate(text)), s)
	}
}

// shutdown is the mandatory cleanup: leave the registry, tell the room,
// flush what is queued, release the connection.
func (s *Session) shutdown(writerDone <-chan struct{}) {
	if s.State() == StateIdentified {
		s.reg.Unregister(s, s.room)
		s.reg.Broadcast(s.room, leftRoomNotice(s.nick), s)
		s.logger.Info("session closed", "room", s.room)
	} else {
		s.logger.Debug("session closed before identification")
	}

	s.mu.Lock()
	s.state = StateClosed
	s.closed = true
	close(s.out)
	s.mu.Unlock()

	select {
	case <-writerDone:
	case <-time.After(flushTimeout):
		s.logger.Warn("outbound flush timed out")
	}
	_ = s.conn.Close()
	<-writerDone
}

func (s *Session) setNick(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nick = nick
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) truncate(text string) string {
	limit := s.opts.MaxMessageLength
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (s *Session) logReadEnd(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		s.logger.Debug("connection closed by peer")
		return
	}
	s.logger.Warn("read failed", "error", err)
}

// parseNick recognises "NICK <name>" with a case-insensitive keyword. A bare
// "NICK" counts as a declaration with an empty name.
func parseNick(line string) (string, bool) {
	if strings.EqualFold(strings.TrimSpace(line), nickKeyword) {
		return "", true
	}
	prefix := nickKeyword + " "
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF && line != "" {
		// last line without newline
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
