package app

import (
	"strings"
	"sync"

	"quiz-duel-service/internal/domain"
)

// Registry owns every connected player. It is the only state shared across
// matches; every mutation is a single-step status/room update.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*domain.Player
	order   []string // registration order, keeps ListIdle deterministic
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*domain.Player)}
}

// Register creates an Idle player for the connection. Re-registering an
// existing connection just refreshes the display name.
func (r *Registry) Register(id, name string) (domain.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, domain.ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[id]; ok {
		p.DisplayName = name
		return *p, nil
	}
	p := &domain.Player{ID: id, DisplayName: name, Status: domain.StatusIdle}
	r.players[id] = p
	r.order = append(r.order, id)
	return *p, nil
}

func (r *Registry) Get(id string) (domain.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// MarkInMatch binds the player to a room.
func (r *Registry) MarkInMatch(id, roomID string) bool {
	return r.setStatus(id, domain.StatusInMatch, roomID)
}

// MarkChallenging flags a player with at least one outstanding challenge;
// they drop off the idle list until it resolves.
func (r *Registry) MarkChallenging(id string) bool {
	return r.setStatus(id, domain.StatusChallenging, "")
}

// MarkIdle returns the player to the lobby and clears any room binding.
func (r *Registry) MarkIdle(id string) bool {
	return r.setStatus(id, domain.StatusIdle, "")
}

func (r *Registry) setStatus(id string, status domain.PlayerStatus, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return false
	}
	p.Status = status
	p.RoomID = roomID
	return true
}

// Remove deletes the player record and returns its last state.
func (r *Registry) Remove(id string) (domain.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return domain.Player{}, false
	}
	delete(r.players, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *p, true
}

// ListIdle snapshots the idle players in registration order.
func (r *Registry) ListIdle() []domain.PlayerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idle := make([]domain.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok && p.Status == domain.StatusIdle {
			idle = append(idle, domain.PlayerInfo{ID: p.ID, Name: p.DisplayName})
		}
	}
	return idle
}
