package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"matchserver/internal/protocol"
	"matchserver/internal/room"
	"matchserver/internal/session"
)

// RoomAllocator is the slice of the room pool the service needs.
// *room.Pool satisfies it; tests substitute failing allocators.
type RoomAllocator interface {
	Acquire(mode string, capacity int) room.Ref
	Assign(ref room.Ref, players []string) error
	Release(ref room.Ref)
	Lookup(ref room.Ref) (room.Info, bool)
}

// Event describes one formed match, handed to the persistence
// collaborator. Recording is fire-and-forget; the matchmaking path never
// blocks on it.
type Event struct {
	RoomID   string
	Mode     string
	Players  []string
	FormedAt time.Time
}

// Recorder durably records formed matches. Implementations must not
// block the caller.
type Recorder interface {
	RecordMatch(ev Event)
}

// FoundPayload is the data carried by the match.found push.
type FoundPayload struct {
	RoomID string   `json:"room_id"`
	Mode   string   `json:"mode"`
	Peers  []string `json:"peers"`
}

// ClosedPayload is the data carried by the match.closed push.
type ClosedPayload struct {
	RoomID string `json:"room_id"`
}

// Service orchestrates the queues and the room pool: it decides when a
// mode has enough players, allocates and fills a room, flips the
// affected connections to InRoom and notifies them. Matching decisions
// run under the owning structures' locks; outbound sends happen after
// every lock is released.
type Service struct {
	modes    map[string]Mode
	queues   *Queues
	rooms    RoomAllocator
	registry *session.Registry
	recorder Recorder // optional
	logger   *zap.Logger
}

func NewService(modes []Mode, queues *Queues, rooms RoomAllocator, registry *session.Registry, recorder Recorder, logger *zap.Logger) *Service {
	byName := make(map[string]Mode, len(modes))
	for _, m := range modes {
		byName[m.Name] = m
	}
	return &Service{
		modes:    byName,
		queues:   queues,
		rooms:    rooms,
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// StartMatch enqueues the client's player for a mode and immediately
// attempts match formation. Returns whether the triggering player got
// matched right away.
func (s *Service) StartMatch(c *session.Client, modeName string) (bool, error) {
	mode, ok := s.modes[modeName]
	if !ok {
		return false, ErrInvalidMode
	}
	if c.State() == session.StateInRoom {
		return false, ErrAlreadyInRoom
	}

	playerID := c.PlayerID()
	if err := s.queues.Enqueue(modeName, playerID); err != nil {
		return false, err
	}
	if err := c.Transition(session.StateQueued); err != nil {
		// Not in a queueable state after all; undo the enqueue.
		s.queues.Dequeue(playerID)
		return false, ErrAlreadyQueued
	}

	for s.tryForm(mode) {
	}
	return c.State() == session.StateInRoom, nil
}

// Cancel removes the client's player from whichever queue it occupies,
// looked up by player id so a client can never cancel the wrong mode.
// A player that was never queued is a no-op, not an error.
func (s *Service) Cancel(c *session.Client) {
	if _, removed := s.queues.Dequeue(c.PlayerID()); removed {
		if err := c.Transition(session.StateIdle); err != nil {
			s.logger.Warn("cancel: state rollback failed",
				zap.String("player_id", c.PlayerID()), zap.Error(err))
		}
	}
}

// Disconnect cleans up matchmaking state for a removed connection. Runs
// from the registry's removal hook, so it covers socket close and
// heartbeat timeout alike.
func (s *Service) Disconnect(c *session.Client) {
	playerID := c.PlayerID()
	if playerID == "" {
		return
	}

	if mode, removed := s.queues.Dequeue(playerID); removed {
		s.logger.Info("removed disconnected player from queue",
			zap.String("player_id", playerID), zap.String("mode", mode))
		return
	}

	// In-room disconnects are surfaced to the game-logic collaborator;
	// membership is not shrunk here.
	if ref := c.Room(); !ref.IsZero() {
		s.logger.Warn("player disconnected while in room",
			zap.String("player_id", playerID),
			zap.String("room_id", ref.ID))
	}
}

// CloseRoom handles the game-logic collaborator's end-of-match signal:
// the room is released back to the pool and every member drops to Idle
// and receives a match.closed push. A stale ref means the room was
// already recycled; that is reported, not acted on.
func (s *Service) CloseRoom(ref room.Ref) error {
	info, ok := s.rooms.Lookup(ref)
	if !ok {
		return room.ErrStaleRoom
	}

	s.rooms.Release(ref)

	payload := ClosedPayload{RoomID: ref.ID}
	for _, pid := range info.Players {
		c := s.registry.GetByPlayer(pid)
		if c == nil {
			continue
		}
		if err := c.LeaveRoom(); err != nil {
			s.logger.Warn("close room: player not in room state",
				zap.String("player_id", pid), zap.Error(err))
			continue
		}
		s.push(c, protocol.PushMatchClosed, payload)
	}

	s.logger.Info("room closed",
		zap.String("room_id", ref.ID), zap.String("mode", info.Mode))
	return nil
}

// RunSweep periodically re-attempts match formation for every non-empty
// queue. Safety net for a triggering enqueue whose forming step failed.
func (s *Service) RunSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepQueues()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepQueues runs one safety-net pass over all modes.
func (s *Service) SweepQueues() {
	for _, name := range s.queues.NonEmptyModes() {
		mode, ok := s.modes[name]
		if !ok {
			continue
		}
		for s.tryForm(mode) {
		}
	}
}

// tryForm attempts to form one match for the mode. Returns true only
// when a match was fully formed; a failed attempt re-queues the group at
// the front and returns false, leaving the retry to the safety-net
// sweep so a persistent failure cannot spin the caller.
func (s *Service) tryForm(mode Mode) bool {
	players, ok := s.queues.TryFormMatch(mode.Name, mode.Players)
	if !ok {
		return false
	}

	ref := s.rooms.Acquire(mode.Name, mode.Players)
	if err := s.rooms.Assign(ref, players); err != nil {
		// Invariant violation in the pool. Abandon this attempt, give
		// the room back and restore the group's priority.
		s.logger.Error("room assignment failed",
			zap.String("mode", mode.Name),
			zap.String("room_id", ref.ID),
			zap.Error(err))
		s.rooms.Release(ref)
		s.queues.RequeueFront(mode.Name, players)
		return false
	}

	// Flip every member to InRoom. A member that vanished between the
	// queue take and here (disconnect race) aborts the whole group.
	entered := make([]*session.Client, 0, len(players))
	for _, pid := range players {
		c := s.registry.GetByPlayer(pid)
		if c == nil || c.EnterRoom(ref) != nil {
			s.logger.Warn("match aborted, member unavailable",
				zap.String("mode", mode.Name), zap.String("player_id", pid))
			s.rollback(mode.Name, ref, players, entered, pid)
			return false
		}
		entered = append(entered, c)
	}

	// Locks are released; now the outbound side.
	payload := FoundPayload{RoomID: ref.ID, Mode: mode.Name, Peers: players}
	for _, c := range entered {
		s.push(c, protocol.PushMatchFound, payload)
	}

	if s.recorder != nil {
		s.recorder.RecordMatch(Event{
			RoomID:   ref.ID,
			Mode:     mode.Name,
			Players:  players,
			FormedAt: time.Now(),
		})
	}

	s.logger.Info("match formed",
		zap.String("mode", mode.Name),
		zap.String("room_id", ref.ID),
		zap.Strings("players", players))
	return true
}

// rollback undoes a half-formed match: entered members drop back to
// Idle and are re-queued at the front together with the not-yet-entered
// ones, minus the member that failed.
func (s *Service) rollback(mode string, ref room.Ref, players []string, entered []*session.Client, failedID string) {
	for _, c := range entered {
		if err := c.LeaveRoom(); err != nil {
			s.logger.Warn("rollback: leave room failed",
				zap.String("player_id", c.PlayerID()), zap.Error(err))
		}
	}
	s.rooms.Release(ref)

	restore := make([]string, 0, len(players))
	for _, pid := range players {
		if pid != failedID {
			restore = append(restore, pid)
		}
	}
	s.queues.RequeueFront(mode, restore)

	// Restore the Queued state for everyone put back.
	for _, pid := range restore {
		if c := s.registry.GetByPlayer(pid); c != nil && c.State() == session.StateIdle {
			if err := c.Transition(session.StateQueued); err != nil {
				s.logger.Warn("rollback: requeue transition failed",
					zap.String("player_id", pid), zap.Error(err))
			}
		}
	}
}

func (s *Service) push(c *session.Client, event string, data any) {
	raw, err := protocol.Encode(protocol.Push(event, data))
	if err != nil {
		s.logger.Error("encode push failed", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.TrySend(raw) {
		s.logger.Warn("push dropped, send queue full",
			zap.String("event", event), zap.String("player_id", c.PlayerID()))
	}
}
