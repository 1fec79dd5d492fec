// Package room owns the pool of reusable match rooms. Rooms are
// allocated lazily, recycled on release, and never destroyed before
// process shutdown. Callers hold Refs, not rooms; a Ref carries the
// generation of the room at hand-out time so a reference held across a
// recycle boundary is detectable.
package room

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateWaiting State = "waiting"
	StateActive  State = "active"
	StateClosing State = "closing"
	StateClosed  State = "closed"
)

var (
	ErrCapacityMismatch = errors.New("room: player count does not match room capacity")
	ErrAlreadyActive    = errors.New("room: room already assigned")
	ErrStaleRoom        = errors.New("room: stale room reference")
)

// Ref identifies one generation of one room. The zero Ref is "no room".
type Ref struct {
	ID  string
	Gen uint64
}

func (r Ref) IsZero() bool {
	return r.ID == ""
}

// Info is a point-in-time snapshot of a room, safe to use outside the
// pool lock.
type Info struct {
	Ref      Ref
	Mode     string
	Capacity int
	Players  []string
	State    State
}

type slot struct {
	id       string
	gen      uint64
	mode     string
	capacity int
	players  []string
	state    State
}

// Pool hands out rooms to ready player groups and takes them back when a
// match ends. Every operation is linearized under one mutex, so an
// Assign on a given room id can never interleave with a Release/Acquire
// recycling the same id.
type Pool struct {
	mu     sync.Mutex
	live   map[string]*slot // rooms currently handed out (waiting or active)
	free   []*slot          // recycled rooms, ready for reuse
	logger *zap.Logger
}

func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		live:   make(map[string]*slot),
		logger: logger,
	}
}

// Acquire returns a Waiting room for the mode, reusing a recycled slot
// when one is free and allocating otherwise.
func (p *Pool) Acquire(mode string, capacity int) Ref {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s *slot
	if n := len(p.free); n > 0 {
		s = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		s = &slot{id: uuid.NewString()}
	}

	s.mode = mode
	s.capacity = capacity
	s.players = nil
	s.state = StateWaiting
	p.live[s.id] = s

	return Ref{ID: s.id, Gen: s.gen}
}

// Assign fills a Waiting room with exactly its capacity of players and
// makes it Active. A stale ref, a wrong-sized group, or a second Assign
// are rejected without touching the room.
func (p *Pool) Assign(ref Ref, players []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.live[ref.ID]
	if !ok || s.gen != ref.Gen {
		return ErrStaleRoom
	}
	if s.state != StateWaiting {
		return ErrAlreadyActive
	}
	if len(players) != s.capacity {
		return ErrCapacityMismatch
	}

	s.players = append([]string(nil), players...)
	s.state = StateActive
	return nil
}

// Closing marks an Active room as shutting down. Optional step before
// Release for collaborators that tear a match down in phases.
func (p *Pool) Closing(ref Ref) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.live[ref.ID]
	if !ok || s.gen != ref.Gen {
		return ErrStaleRoom
	}
	if s.state != StateActive {
		return ErrAlreadyActive
	}
	s.state = StateClosing
	return nil
}

// Release closes a room and returns it to the free list. Idempotent: a
// stale ref means the room was already recycled and is left alone. The
// generation is bumped here, invalidating every outstanding Ref.
func (p *Pool) Release(ref Ref) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.live[ref.ID]
	if !ok || s.gen != ref.Gen {
		return
	}

	delete(p.live, ref.ID)
	s.players = nil
	s.state = StateClosed
	s.gen++
	p.free = append(p.free, s)

	p.logger.Debug("room recycled", zap.String("room_id", s.id), zap.Uint64("gen", s.gen))
}

// Lookup snapshots a room by ref. Returns false for stale refs.
func (p *Pool) Lookup(ref Ref) (Info, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.live[ref.ID]
	if !ok || s.gen != ref.Gen {
		return Info{}, false
	}
	return Info{
		Ref:      ref,
		Mode:     s.mode,
		Capacity: s.capacity,
		Players:  append([]string(nil), s.players...),
		State:    s.state,
	}, true
}

// FreeCount reports recycled rooms waiting for reuse.
func (p *Pool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// LiveCount reports rooms currently handed out.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
