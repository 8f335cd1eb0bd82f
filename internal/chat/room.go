package chat

import "sync"

// Room is one broadcast group. All access to its member set, including the
// iteration done by broadcast, goes through mu, so a broadcast never sees a
// half-applied add or remove and recipients get a room's messages in the
// order they were issued.
type Room struct {
	name string

	mu      sync.Mutex
	members map[Peer]struct{}
	// dropped is set once the room has been removed from the registry. A
	// dropped room accepts no new members.
	dropped bool
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[Peer]struct{}),
	}
}

// add inserts p. It reports false only when the room has been dropped.
func (r *Room) add(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dropped {
		return false
	}
	r.members[p] = struct{}{}
	return true
}

// remove deletes p. When keep is false and the room ends up empty it is
// marked dropped, and remove reports true so the caller can unlink it.
func (r *Room) remove(p Peer, keep bool) (nowEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, p)
	if !keep && len(r.members) == 0 && !r.dropped {
		r.dropped = true
		return true
	}
	return false
}

// broadcast delivers line to every member but exclude and returns how many
// deliveries were dropped.
func (r *Room) broadcast(line string, exclude Peer) (sent, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p := range r.members {
		if exclude != nil && p == exclude {
			continue
		}
		if p.Deliver(line) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

func (r *Room) has(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[p]
	return ok
}

func (r *Room) snapshot() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.members))
	for p := range r.members {
		out = append(out, p)
	}
	return out
}

func (r *Room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
