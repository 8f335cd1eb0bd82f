package chat

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andy6609/roomchat-server/internal/chatlog"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	nick string
	out  chan string
}

func newPeer(nick string) *fakePeer {
	return &fakePeer{nick: nick, out: make(chan string, 256)}
}

func (p *fakePeer) Nickname() string { return p.nick }

func (p *fakePeer) Deliver(line string) bool {
	select {
	case p.out <- line:
		return true
	default:
		return false
	}
}

type memRecorder struct {
	mu      sync.Mutex
	entries []chatlog.Entry
}

func (m *memRecorder) Record(room, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, chatlog.NewEntry(room, text))
}

func (m *memRecorder) rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Room)
	}
	return out
}

func TestRegistry_RegisterRejectsDuplicateNickname(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	alice := newPeer("alice")
	impostor := newPeer("Alice")

	req.NoError(r.Register(alice, "alice", r.Lobby()))
	req.ErrorIs(r.Register(impostor, "Alice", r.Lobby()), ErrNicknameTaken)

	got, ok := r.Lookup("ALICE")
	req.True(ok)
	req.Same(alice, got)
	req.False(r.InRoom(impostor, r.Lobby()))
	req.Equal([]string{"alice"}, r.Members(r.Lobby()))
}

func TestRegistry_ConcurrentRegisterOnlyOneWins(t *testing.T) {
	r := NewRegistry()

	const n = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register(newPeer("bob"), "bob", r.Lobby()) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Len(t, r.Members(r.Lobby()), 1)
}

func TestRegistry_UnregisterReleasesNickname(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	first := newPeer("carol")
	req.NoError(r.Register(first, "carol", r.Lobby()))
	r.Unregister(first, r.Lobby())

	_, ok := r.Lookup("carol")
	req.False(ok)
	req.Empty(r.Members(r.Lobby()))

	second := newPeer("carol")
	req.NoError(r.Register(second, "carol", r.Lobby()))

	// A stale unregister from the first session must not evict the second.
	r.Unregister(first, r.Lobby())
	got, ok := r.Lookup("carol")
	req.True(ok)
	req.Same(second, got)
}

func TestRegistry_UnregisterPartialStateIsSafe(t *testing.T) {
	r := NewRegistry()
	require.NotPanics(t, func() {
		r.Unregister(newPeer(""), r.Lobby())
		r.Unregister(newPeer("ghost"), "#nowhere")
	})
	require.Equal(t, 0, r.Online())
}

func TestRegistry_BroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	alice, bob, carol := newPeer("alice"), newPeer("bob"), newPeer("carol")
	register(t, r, alice, bob, carol)

	r.Broadcast(r.Lobby(), "[alice in #lobby]: hi", alice)

	require.Equal(t, "[alice in #lobby]: hi", waitForPrefix(t, bob.out, "[alice"))
	require.Equal(t, "[alice in #lobby]: hi", waitForPrefix(t, carol.out, "[alice"))
	assertNoPrefix(t, alice.out, "[alice")
}

func TestRegistry_BroadcastSkipsSlowRecipient(t *testing.T) {
	r := NewRegistry()
	stuck := &fakePeer{nick: "stuck", out: make(chan string)}
	bob := newPeer("bob")
	register(t, r, stuck, bob)

	done := make(chan struct{})
	go func() {
		r.Broadcast(r.Lobby(), serverLine("announcement"), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow recipient")
	}
	require.Equal(t, "SERVER: announcement", waitForPrefix(t, bob.out, "SERVER: announcement"))
}

func TestRegistry_SendDirect(t *testing.T) {
	req := require.New(t)
	rec := &memRecorder{}
	r := NewRegistry(WithRecorder(rec))
	alice, bob, carol := newPeer("alice"), newPeer("bob"), newPeer("carol")
	register(t, r, alice, bob, carol)
	drainAll(alice, bob, carol)

	req.Equal(DirectDelivered, r.SendDirect("alice", "bob", "psst"))
	req.Equal("(private from alice): psst", waitForPrefix(t, bob.out, "(private"))
	req.Equal("(private to bob): psst", waitForPrefix(t, alice.out, "(private"))
	assertNoPrefix(t, carol.out, "")
	req.Contains(rec.rooms(), chatlog.PrivateRoom)

	res := r.SendDirect("alice", "nobody", "hi")
	req.Equal(DirectTargetNotFound, res)
	req.False(res.Delivered())

	// The sender's binding vanished: the target still gets it, no echo.
	res = r.SendDirect("zed", "bob", "from beyond")
	req.Equal(DirectSenderNotFound, res)
	req.True(res.Delivered())
	req.Equal("(private from zed): from beyond", waitForPrefix(t, bob.out, "(private"))
}

func TestRegistry_MoveAnnouncesToBothRooms(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	alice, bob, carol := newPeer("alice"), newPeer("bob"), newPeer("carol")
	register(t, r, alice, bob, carol)
	r.Move(carol, "carol", r.Lobby(), "#Tech")
	drainAll(alice, bob, carol)

	r.Move(alice, "alice", r.Lobby(), "#tech")

	req.True(r.InRoom(alice, "tech"))
	req.False(r.InRoom(alice, r.Lobby()))
	req.Equal("SERVER: alice left the room to join #tech.", waitForPrefix(t, bob.out, "SERVER:"))
	req.Equal("SERVER: alice joined the room.", waitForPrefix(t, carol.out, "SERVER:"))
	assertNoPrefix(t, alice.out, "")

	r.Move(alice, "alice", "tech", r.Lobby())
	req.Equal("SERVER: alice left the room.", waitForPrefix(t, carol.out, "SERVER:"))
	req.Equal("SERVER: alice is back in the lobby.", waitForPrefix(t, bob.out, "SERVER:"))
}

func TestRegistry_EmptyRoomIsDroppedButLobbyStays(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	alice := newPeer("alice")
	register(t, r, alice)

	r.Move(alice, "alice", r.Lobby(), "#tech")
	req.Equal([]RoomInfo{{Name: "lobby", Members: 0}, {Name: "tech", Members: 1}}, r.Rooms())

	r.Move(alice, "alice", "tech", r.Lobby())
	req.Equal([]RoomInfo{{Name: "lobby", Members: 1}}, r.Rooms())

	r.Unregister(alice, r.Lobby())
	req.Equal([]RoomInfo{{Name: "lobby", Members: 0}}, r.Rooms())

	// A dropped room comes back on the next join.
	bob := newPeer("bob")
	register(t, r, bob)
	r.Move(bob, "bob", r.Lobby(), "#tech")
	req.Equal([]string{"bob"}, r.Members("#tech"))
}

func TestRegistry_ConcurrentMovesKeepConsistentMembership(t *testing.T) {
	r := NewRegistry()
	rooms := []string{r.Lobby(), "a", "b", "c"}

	const peers = 24
	final := make([]string, peers)
	all := make([]*fakePeer, peers)

	var wg sync.WaitGroup
	for i := 0; i < peers; i++ {
		i := i
		p := &fakePeer{nick: fmt.Sprintf("p%d", i), out: make(chan string, 4)}
		all[i] = p
		require.NoError(t, r.Register(p, p.nick, r.Lobby()))

		wg.Add(1)
		go func() {
			defer wg.Done()
			current := r.Lobby()
			for j := 0; j < 200; j++ {
				next := rooms[rand.Intn(len(rooms))]
				if next == current {
					continue
				}
				r.Move(p, p.nick, current, next)
				r.Broadcast(next, "noise", p)
				current = next
			}
			final[i] = current
		}()
	}
	wg.Wait()

	for _, room := range rooms {
		var want []string
		for i, p := range all {
			if final[i] == room {
				want = append(want, p.nick)
			}
		}
		require.ElementsMatch(t, want, r.Members(room), "room %s", room)
	}
}

func TestRegistry_RecordsBroadcasts(t *testing.T) {
	rec := &memRecorder{}
	r := NewRegistry(WithRecorder(rec), WithLobby("#Hall"))
	require.Equal(t, "hall", r.Lobby())

	r.Broadcast("#Hall", "SERVER: hello", nil)
	r.Broadcast("#tech", "SERVER: into the void", nil)

	require.Equal(t, []string{"hall", "tech"}, rec.rooms())
}

func register(t *testing.T, r *Registry, peers ...*fakePeer) {
	t.Helper()
	for _, p := range peers {
		if err := r.Register(p, p.nick, r.Lobby()); err != nil {
			t.Fatalf("register(%s) error: %v", p.nick, err)
		}
	}
}

func drainAll(peers ...*fakePeer) {
	for _, p := range peers {
		for len(p.out) > 0 {
			<-p.out
		}
	}
}

func waitForPrefix(t *testing.T, ch <-chan string, prefix string) string {
	t.Helper()
	deadline := time.NewTimer(1 * time.Second)
	defer deadline.Stop()
	for {
		select {
		case s := <-ch:
			if strings.HasPrefix(s, prefix) {
				return s
			}
			// ignore other lines (welcome, notices, etc.)
		case <-deadline.C:
			t.Fatalf("timeout waiting for prefix %q", prefix)
		}
	}
}

func assertNoPrefix(t *testing.T, ch <-chan string, prefix string) {
	t.Helper()
	timeout := time.After(50 * time.Millisecond)
	for {
		select {
		case s := <-ch:
			if strings.HasPrefix(s, prefix) {
				t.Fatalf("unexpected line %q", s)
			}
		case <-timeout:
			return
		}
	}
}

func TestRegistry_PrivateJournalKeyCannotBeLobby(t *testing.T) {
	r := NewRegistry(WithLobby("#Private"))
	require.Equal(t, DefaultLobby, r.Lobby())

	key, err := parseRoomArg("#private", 32)
	require.ErrorIs(t, err, ErrRoomReserved)
	require.Equal(t, chatlog.PrivateRoom, key)
}
