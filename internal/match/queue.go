package match

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidMode   = errors.New("match: unknown mode")
	ErrAlreadyQueued = errors.New("match: player already queued")
	ErrAlreadyInRoom = errors.New("match: player already in a room")
)

type entry struct {
	playerID   string
	enqueuedAt time.Time
}

// Queues holds the per-mode FIFO waiting lists. One mutex covers every
// mode: the cross-mode invariant (a player queued at most once anywhere)
// and the cancel-vs-form-match race both need dequeue and the removal
// step of TryFormMatch in the same exclusion domain.
type Queues struct {
	mu       sync.Mutex
	modes    map[string][]entry
	byPlayer map[string]string // player id -> mode currently queued in
}

func NewQueues() *Queues {
	return &Queues{
		modes:    make(map[string][]entry),
		byPlayer: make(map[string]string),
	}
}

// Enqueue appends the player to the mode's waiting list. Rejected when
// the player is already queued in any mode.
func (q *Queues) Enqueue(mode, playerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, queued := q.byPlayer[playerID]; queued {
		return ErrAlreadyQueued
	}
	q.modes[mode] = append(q.modes[mode], entry{playerID: playerID, enqueuedAt: time.Now()})
	q.byPlayer[playerID] = mode
	return nil
}

// Dequeue removes the player's entry wherever it is. Safe to call
// redundantly: returns false when the player was not queued, which both
// cancellation and disconnect cleanup treat as success.
func (q *Queues) Dequeue(playerID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	mode, queued := q.byPlayer[playerID]
	if !queued {
		return "", false
	}
	delete(q.byPlayer, playerID)

	list := q.modes[mode]
	for i, e := range list {
		if e.playerID == playerID {
			q.modes[mode] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return mode, true
}

// TryFormMatch atomically removes and returns the n earliest entries of
// the mode when at least n are waiting. With fewer than n entries the
// queue is left untouched.
func (q *Queues) TryFormMatch(mode string, n int) ([]string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.modes[mode]
	if len(list) < n {
		return nil, false
	}

	players := make([]string, n)
	for i, e := range list[:n] {
		players[i] = e.playerID
		delete(q.byPlayer, e.playerID)
	}
	q.modes[mode] = append([]entry(nil), list[n:]...)
	return players, true
}

// RequeueFront puts a failed group back at the head of the mode's queue
// in its original order, preserving the players' priority.
func (q *Queues) RequeueFront(mode string, players []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	restored := make([]entry, 0, len(players)+len(q.modes[mode]))
	now := time.Now()
	for _, pid := range players {
		if _, queued := q.byPlayer[pid]; queued {
			continue
		}
		restored = append(restored, entry{playerID: pid, enqueuedAt: now})
		q.byPlayer[pid] = mode
	}
	q.modes[mode] = append(restored, q.modes[mode]...)
}

// Len reports the number of waiting players in a mode.
func (q *Queues) Len(mode string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.modes[mode])
}

// IsQueued reports whether the player currently waits in any mode.
func (q *Queues) IsQueued(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, queued := q.byPlayer[playerID]
	return queued
}

// NonEmptyModes lists every mode with at least one waiting player.
func (q *Queues) NonEmptyModes() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	modes := make([]string, 0, len(q.modes))
	for mode, list := range q.modes {
		if len(list) > 0 {
			modes = append(modes, mode)
		}
	}
	return modes
}
