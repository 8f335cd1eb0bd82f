package chat

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"github.com/andy6609/roomchat-server/internal/chatlog"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

// DefaultLobby is the room every client starts in.
const DefaultLobby = "lobby"

// Registry maps nicknames to peers and room names to member sets. Both maps
// are concurrent maps and every room carries its own lock, so operations on
// unrelated rooms or nicknames never wait on each other.
type Registry struct {
	lobby  string
	nicks  *xsync.MapOf[string, Peer]
	rooms  *xsync.MapOf[string, *Room]
	rec    chatlog.Recorder
	logger *slog.Logger
}

type Option func(*Registry)

func WithLobby(name string) Option {
	return func(r *Registry) {
		if key := roomKey(name); key != "" && !reservedRoom(key) {
			r.lobby = key
		}
	}
}

// WithRecorder sets where broadcasts and private messages are journaled.
func WithRecorder(rec chatlog.Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.rec = rec
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		lobby:  DefaultLobby,
		nicks:  xsync.NewMapOf[string, Peer](),
		rooms:  xsync.NewMapOf[string, *Room](),
		rec:    chatlog.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.rooms.Store(r.lobby, newRoom(r.lobby))
	ActiveRooms.Set(float64(r.rooms.Size()))
	return r
}

// Lobby returns the key of the lobby room.
func (r *Registry) Lobby() string { return r.lobby }

// Register binds nickname to p and puts p in room. A nickname already bound
// to another peer is rejected with ErrNicknameTaken and nothing changes.
func (r *Registry) Register(p Peer, nickname, room string) error {
	defer observe("register", time.Now())

	if nickname == "" {
		return ErrNicknameInvalid
	}
	if actual, loaded := r.nicks.LoadOrStore(nickKey(nickname), p); loaded && actual != p {
		return ErrNicknameTaken
	}
	r.join(p, roomKey(room))
	ConnectedClients.Set(float64(r.nicks.Size()))

	r.logger.Info("user registered", "nickname", nickname, "room", roomKey(room))
	return nil
}

// Unregister removes p from room and releases its nickname if the binding
// still points at p. It is safe to call for a peer that never registered.
func (r *Registry) Unregister(p Peer, room string) {
	defer observe("unregister", time.Now())

	r.leave(p, roomKey(room))

	nick := p.Nickname()
	if nick == "" {
		return
	}
	r.nicks.Compute(nickKey(nick), func(old Peer, loaded bool) (Peer, bool) {
		if loaded && old == p {
			return old, true
		}
		return old, !loaded
	})
	ConnectedClients.Set(float64(r.nicks.Size()))

	r.logger.Info("user left", "nickname", nick)
}

// Move takes p out of from and into to, telling both rooms about it. The
// mover does not receive either notice.
func (r *Registry) Move(p Peer, nickname, from, to string) {
	defer observe("move", time.Now())

	fromKey, toKey := roomKey(from), roomKey(to)
	r.leave(p, fromKey)
	if toKey == r.lobby {
		r.Broadcast(fromKey, leftRoomNotice(nickname), p)
	} else {
		r.Broadcast(fromKey, leftForRoomNotice(nickname, toKey), p)
	}

	r.join(p, toKey)
	if toKey == r.lobby {
		r.Broadcast(toKey, backToLobbyNotice(nickname), p)
	} else {
		r.Broadcast(toKey, joinedRoomNotice(nickname), p)
	}
}

// Broadcast delivers message to everyone in room except exclude, which may
// be nil. Slow or gone recipients are skipped.
func (r *Registry) Broadcast(room, message string, exclude Peer) {
	defer observe("broadcast", time.Now())

	key := roomKey(room)
	r.rec.Record(key, message)

	target, ok := r.rooms.Load(key)
	if !ok {
		return
	}
	if _, dropped := target.broadcast(message, exclude); dropped > 0 {
		DroppedDeliveries.Add(float64(dropped))
		r.logger.Debug("broadcast dropped deliveries", "room", key, "dropped", dropped)
	}
}

// SendDirect delivers a private message to target and echoes it to sender.
func (r *Registry) SendDirect(sender, target, message string) DirectResult {
	defer observe("private", time.Now())

	to, ok := r.Lookup(target)
	if !ok {
		return DirectTargetNotFound
	}
	r.rec.Record(chatlog.PrivateRoom, privateLogLine(sender, to.Nickname(), message))
	if !to.Deliver(privateFromLine(sender, message)) {
		DroppedDeliveries.Inc()
	}

	from, ok := r.Lookup(sender)
	if !ok {
		return DirectSenderNotFound
	}
	if !from.Deliver(privateToLine(to.Nickname(), message)) {
		DroppedDeliveries.Inc()
	}
	return DirectDelivered
}

func (r *Registry) Lookup(nickname string) (Peer, bool) {
	return r.nicks.Load(nickKey(nickname))
}

// Members lists the nicknames in room, sorted.
func (r *Registry) Members(room string) []string {
	target, ok := r.rooms.Load(roomKey(room))
	if !ok {
		return nil
	}
	names := lo.Map(target.snapshot(), func(p Peer, _ int) string { return p.Nickname() })
	slices.Sort(names)
	return names
}

// Rooms lists every room with its current size, sorted by name.
func (r *Registry) Rooms() []RoomInfo {
	var out []RoomInfo
	r.rooms.Range(func(name string, room *Room) bool {
		out = append(out, RoomInfo{Name: name, Members: room.size()})
		return true
	})
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Online is the number of bound nicknames.
func (r *Registry) Online() int {
	return r.nicks.Size()
}

// InRoom reports whether p is currently a member of room.
func (r *Registry) InRoom(p Peer, room string) bool {
	target, ok := r.rooms.Load(roomKey(room))
	return ok && target.has(p)
}

func (r *Registry) join(p Peer, key string) {
	for {
		room, _ := r.rooms.LoadOrCompute(key, func() *Room { return newRoom(key) })
		if room.add(p) {
			ActiveRooms.Set(float64(r.rooms.Size()))
			return
		}
		// The room emptied and was dropped under us; replace it unless a
		// concurrent joiner already has.
		r.rooms.Compute(key, func(old *Room, loaded bool) (*Room, bool) {
			if loaded && old != room {
				return old, false
			}
			return newRoom(key), false
		})
	}
}

func (r *Registry) leave(p Peer, key string) {
	room, ok := r.rooms.Load(key)
	if !ok {
		return
	}
	if !room.remove(p, key == r.lobby) {
		return
	}
	r.rooms.Compute(key, func(old *Room, loaded bool) (*Room, bool) {
		if loaded && old == room {
			return old, true
		}
		return old, !loaded
	})
	ActiveRooms.Set(float64(r.rooms.Size()))
}
