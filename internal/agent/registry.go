package agent

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/handoff-backend/internal/shared"
)

// Registry holds every logged-in agent in memory, keyed by agent id with a
// secondary index by transport-connection id. Insertion order is preserved
// so that availability lookups are deterministic.
type Registry struct {
	agents map[string]*Agent
	byConn map[string]string
	order  []string
	mu     sync.RWMutex
	log    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		agents: make(map[string]*Agent),
		byConn: make(map[string]string),
		log:    logger.With("component", "agent_registry"),
	}
}

// Add registers an agent, defaulting status to online. A record with the
// same id is replaced in place, which is how reconnects with a fresh
// connection id are handled; the caller evicts the stale connection.
func (r *Registry) Add(a *Agent) error {
	if a.ID == "" {
		return fmt.Errorf("agent id: %w", shared.ErrPreconditionFailed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Name == "" {
		a.Name = "agent " + a.ID
	}
	if a.RTCUserID == "" {
		a.RTCUserID = "agent_" + a.ID
	}
	if a.Status == "" {
		a.Status = StatusOnline
	}
	now := time.Now()
	a.LoginAt = now
	a.LastActiveAt = now

	if existing, ok := r.agents[a.ID]; ok {
		delete(r.byConn, existing.ConnectionID)
	} else {
		r.order = append(r.order, a.ID)
	}

	stored := *a
	r.agents[a.ID] = &stored
	if a.ConnectionID != "" {
		r.byConn[a.ConnectionID] = a.ID
	}

	r.log.Info("agent added", "agent_id", a.ID, "name", a.Name)
	return nil
}

func (r *Registry) RemoveByConnectionID(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	agentID, ok := r.byConn[connID]
	if !ok {
		return false
	}
	r.removeLocked(agentID)
	return true
}

func (r *Registry) RemoveByAgentID(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agentID]; !ok {
		return false
	}
	r.removeLocked(agentID)
	return true
}

func (r *Registry) removeLocked(agentID string) {
	a := r.agents[agentID]
	delete(r.byConn, a.ConnectionID)
	delete(r.agents, agentID)
	for i, id := range r.order {
		if id == agentID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.log.Info("agent removed", "agent_id", agentID)
}

// SetStatus transitions an agent. Going busy requires the session being
// served; going online clears the current session reference unconditionally,
// which is the documented policy (the coordinator guards the busy->online
// path separately).
func (r *Registry) SetStatus(agentID string, status Status, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, shared.ErrNotFound)
	}

	if status == StatusBusy && sessionID == "" {
		return fmt.Errorf("busy requires a session id: %w", shared.ErrPreconditionFailed)
	}

	a.Status = status
	a.LastActiveAt = time.Now()

	switch status {
	case StatusBusy:
		a.CurrentSessionID = sessionID
	case StatusOnline:
		a.CurrentSessionID = ""
	}

	r.log.Info("agent status updated", "agent_id", agentID, "status", status)
	return nil
}

func (r *Registry) Get(agentID string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, shared.ErrNotFound)
	}
	copied := *a
	return &copied, nil
}

func (r *Registry) GetByConnectionID(connID string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agentID, ok := r.byConn[connID]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", connID, shared.ErrNotFound)
	}
	copied := *r.agents[agentID]
	return &copied, nil
}

// GetAvailable returns the first online agent in insertion order, or nil.
// A linear scan is fine at the pool sizes this serves.
func (r *Registry) GetAvailable() *Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if a := r.agents[id]; a.Status == StatusOnline {
			copied := *a
			return &copied
		}
	}
	return nil
}

// RecordCallCompletion bumps the call counters and folds the duration into
// the running mean.
func (r *Registry) RecordCallCompletion(agentID string, durationSeconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, shared.ErrNotFound)
	}

	a.Stats.TotalCalls++
	a.Stats.TodayCalls++
	n := float64(a.Stats.TotalCalls)
	a.Stats.AvgCallDuration = (a.Stats.AvgCallDuration*(n-1) + durationSeconds) / n
	return nil
}

func (r *Registry) ListByStatus(status Status) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Agent
	for _, id := range r.order {
		if a := r.agents[id]; a.Status == status {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out
}

func (r *Registry) All() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.order))
	for _, id := range r.order {
		copied := *r.agents[id]
		out = append(out, &copied)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

func (r *Registry) ResetDailyStats() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.agents {
		a.Stats.TodayCalls = 0
	}
	return len(r.agents)
}

func (r *Registry) Stats() PoolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := PoolStats{Total: len(r.agents)}
	for _, a := range r.agents {
		switch a.Status {
		case StatusOnline:
			s.Online++
		case StatusBusy:
			s.Busy++
		default:
			s.Offline++
		}
	}
	return s
}
