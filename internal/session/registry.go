package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrPlayerOnline = errors.New("session: player already connected")

// DisconnectFunc runs after a client has been removed from the registry.
// The matchmaking service hooks in here so queue and room cleanup always
// follows a removal, whether it came from a socket close or the sweep.
type DisconnectFunc func(c *Client)

// Registry owns every live Client for the process. All mutation of the
// connection set goes through it.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]*Client // conn id -> client
	byPlayer map[string]string  // player id -> conn id

	onDisconnect DisconnectFunc
	logger       *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		clients:  make(map[string]*Client),
		byPlayer: make(map[string]string),
		logger:   logger,
	}
}

// OnDisconnect installs the removal hook. Must be called before the
// server starts accepting connections.
func (r *Registry) OnDisconnect(fn DisconnectFunc) {
	r.onDisconnect = fn
}

// Register assigns the client its connection id and tracks it.
func (r *Registry) Register(c *Client) string {
	id := uuid.NewString()
	c.ID = id

	r.mu.Lock()
	r.clients[id] = c
	r.mu.Unlock()

	r.logger.Info("client connected", zap.String("conn_id", id))
	return id
}

// Get returns the client for a connection id, nil when unknown.
func (r *Registry) Get(id string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[id]
}

// GetByPlayer returns the client a player id is bound to, nil when the
// player has no live connection.
func (r *Registry) GetByPlayer(playerID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if connID, ok := r.byPlayer[playerID]; ok {
		return r.clients[connID]
	}
	return nil
}

// BindPlayer indexes an authenticated client by its player id. Refuses a
// second live connection for the same player.
func (r *Registry) BindPlayer(c *Client) error {
	playerID := c.PlayerID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byPlayer[playerID]; ok && existing != c.ID {
		if _, alive := r.clients[existing]; alive {
			return ErrPlayerOnline
		}
	}
	r.byPlayer[playerID] = c.ID
	return nil
}

// Remove drops a connection from the registry. Idempotent; the second
// call for the same id is a no-op. Fires the disconnect hook exactly once
// per removed client, outside the registry lock.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, id)
	if pid := c.PlayerID(); pid != "" && r.byPlayer[pid] == id {
		delete(r.byPlayer, pid)
	}
	r.mu.Unlock()

	_ = c.Transition(StateDisconnected)
	if c.Conn != nil {
		// Kicks the read pump loose so gateway teardown finishes even
		// when the removal came from the sweep, not a socket error.
		_ = c.Conn.Close()
	}
	r.logger.Info("client removed", zap.String("conn_id", id), zap.String("player_id", c.PlayerID()))

	if r.onDisconnect != nil {
		r.onDisconnect(c)
	}
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// SweepExpired removes every connection whose last-seen timestamp is
// older than timeout and returns the removed connection ids. It scans a
// snapshot so slow removals never block message processing on other
// connections.
func (r *Registry) SweepExpired(timeout time.Duration) []string {
	cutoff := time.Now().Add(-timeout)

	r.mu.RLock()
	expired := make([]string, 0)
	for id, c := range r.clients {
		if c.LastSeen().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		r.logger.Warn("heartbeat timeout", zap.String("conn_id", id))
		r.Remove(id)
	}
	return expired
}

// RunSweep drives SweepExpired on a fixed interval until ctx is done.
func (r *Registry) RunSweep(ctx context.Context, interval, timeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.SweepExpired(timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
