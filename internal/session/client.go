package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"matchserver/internal/room"
)

// State is the connection lifecycle state. Disconnected is terminal.
type State string

const (
	StateConnecting    State = "connecting"
	StateAuthenticated State = "authenticated"
	StateIdle          State = "idle"
	StateQueued        State = "queued"
	StateInRoom        State = "in_room"
	StateDisconnected  State = "disconnected"
)

// Legal transitions. Anything may go to Disconnected, which is handled
// separately in Transition.
var transitions = map[State][]State{
	StateConnecting:    {StateAuthenticated},
	StateAuthenticated: {StateIdle},
	StateIdle:          {StateQueued},
	StateQueued:        {StateIdle, StateInRoom},
	StateInRoom:        {StateIdle},
}

// ErrIllegalTransition wraps a rejected state change.
type ErrIllegalTransition struct {
	From, To State
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("session: illegal transition %s -> %s", e.From, e.To)
}

// Client is one live websocket connection. Conn may be nil in tests; the
// outbound path only uses the Send channel.
type Client struct {
	ID    string
	Conn  *websocket.Conn
	Send  chan []byte
	Inbox chan []byte
	Once  sync.Once

	lastSeen atomic.Int64 // unix nanos of last received traffic

	mu       sync.Mutex
	state    State
	playerID string
	room     room.Ref
}

func NewClient(conn *websocket.Conn) *Client {
	c := &Client{
		Conn:  conn,
		Send:  make(chan []byte, 20),
		Inbox: make(chan []byte, 20),
		state: StateConnecting,
	}
	c.Touch()
	return c
}

// Touch records inbound traffic for liveness tracking.
func (c *Client) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Transition moves the client to a new state, rejecting illegal edges.
// Disconnected is reachable from every state and sticky.
func (c *Client) Transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(to)
}

func (c *Client) transitionLocked(to State) error {
	if c.state == StateDisconnected {
		return &ErrIllegalTransition{From: c.state, To: to}
	}
	if to == StateDisconnected {
		c.state = to
		return nil
	}
	for _, next := range transitions[c.state] {
		if next == to {
			c.state = to
			return nil
		}
	}
	return &ErrIllegalTransition{From: c.state, To: to}
}

// Authenticate binds the verified player id and settles the connection
// into Idle. The Authenticated state only exists between the two edges.
func (c *Client) Authenticate(playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(StateAuthenticated); err != nil {
		return err
	}
	c.playerID = playerID
	return c.transitionLocked(StateIdle)
}

// EnterRoom moves Queued -> InRoom and pins the room reference.
func (c *Client) EnterRoom(ref room.Ref) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(StateInRoom); err != nil {
		return err
	}
	c.room = ref
	return nil
}

// LeaveRoom moves InRoom -> Idle and clears the room reference.
func (c *Client) LeaveRoom() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transitionLocked(StateIdle); err != nil {
		return err
	}
	c.room = room.Ref{}
	return nil
}

// Room returns the pinned room reference, zero when not in a room.
func (c *Client) Room() room.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// TrySend queues an outbound frame without blocking. A full or closed
// channel drops the frame; the caller decides whether that matters.
func (c *Client) TrySend(msg []byte) bool {
	defer func() { recover() }() // Send may be closed by teardown
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
