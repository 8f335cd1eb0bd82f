package chat

// Peer is the handle the Registry keeps for a connected, identified client.
// The Registry never owns the connection behind it.
type Peer interface {
	Nickname() string
	// Deliver queues one line for the client without blocking. It reports
	// false when the line was dropped.
	Deliver(line string) bool
}

// State is the position of a Session in its lifecycle.
type State int

const (
	StateUnidentified State = iota
	StateIdentified
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DirectResult is the outcome of Registry.SendDirect.
type DirectResult int

const (
	DirectDelivered DirectResult = iota
	// DirectTargetNotFound means nobody holds the target nickname.
	DirectTargetNotFound
	// DirectSenderNotFound means the target got the message but the sender's
	// own binding was gone, so no echo was sent.
	DirectSenderNotFound
)

// Delivered collapses the result to what the wire protocol reports.
func (r DirectResult) Delivered() bool {
	return r != DirectTargetNotFound
}

// RoomInfo is a point-in-time view of one room.
type RoomInfo struct {
	Name    string
	Members int
}

var (
	ErrNicknameTaken   = errorString("nickname_taken")
	ErrNicknameInvalid = errorString("nickname_invalid")
	ErrRoomInvalid     = errorString("room_invalid")
	ErrRoomReserved    = errorString("room_reserved")
)

type errorString string

func (e errorString) Error() string { return string(e) }
