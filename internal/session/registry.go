package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/handoff-backend/internal/shared"
)

// Registry holds every live session in memory, keyed by session id.
// State is process-lifetime only; nothing is persisted.
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	log      *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		log:      logger.With("component", "session_registry"),
	}
}

func (r *Registry) Create(sess *Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id: %w", shared.ErrPreconditionFailed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s: %w", sess.ID, shared.ErrConflict)
	}

	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	stored := *sess
	stored.History = append([]Message(nil), sess.History...)
	r.sessions[sess.ID] = &stored

	r.log.Info("session created", "session_id", sess.ID, "user_id", sess.UserID, "status", sess.Status)
	return nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, shared.ErrNotFound)
	}
	return snapshot(sess), nil
}

// Update applies mutate to the stored session and stamps UpdatedAt.
func (r *Registry) Update(id string, mutate func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, shared.ErrNotFound)
	}

	mutate(sess)
	sess.UpdatedAt = time.Now()
	return nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	r.log.Info("session deleted", "session_id", id)
	return true
}

func (r *Registry) FindByInstanceID(instanceID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.sessions {
		if sess.InstanceID == instanceID {
			return snapshot(sess)
		}
	}
	return nil
}

// FindByConnectionID resolves the session owned by a user-side transport
// connection, used for cleanup when that connection drops.
func (r *Registry) FindByConnectionID(connID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.sessions {
		if sess.UserConnectionID == connID {
			return snapshot(sess)
		}
	}
	return nil
}

// FindActiveByUserID returns the user's most recently created session that
// has not reached a terminal status.
func (r *Registry) FindActiveByUserID(userID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Session
	for _, sess := range r.sessions {
		if sess.UserID != userID {
			continue
		}
		switch sess.Status {
		case StatusAITalking, StatusWaitingHuman, StatusHumanTalking:
			if best == nil || sess.CreatedAt.After(best.CreatedAt) {
				best = sess
			}
		}
	}
	if best == nil {
		return nil
	}
	return snapshot(best)
}

// AppendMessage adds one message to the session's conversation history.
// A missing session is reported as false, not an error: provider callbacks
// routinely race session creation.
func (r *Registry) AppendMessage(id string, msg Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		r.log.Warn("message for unknown session dropped", "session_id", id, "role", msg.Role)
		return false
	}

	sess.History = append(sess.History, msg)
	sess.UpdatedAt = time.Now()
	return true
}

func (r *Registry) ListByStatus(status Status) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, sess := range r.sessions {
		if sess.Status == status {
			out = append(out, snapshot(sess))
		}
	}
	return out
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, snapshot(sess))
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CleanupEnded drops ended sessions older than maxAge and returns how many
// were removed.
func (r *Registry) CleanupEnded(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sess := range r.sessions {
		if sess.Status != StatusEnded || sess.EndedAt.IsZero() {
			continue
		}
		if now.Sub(sess.EndedAt) > maxAge {
			delete(r.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		r.log.Info("cleaned up ended sessions", "count", removed)
	}
	return removed
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.sessions)}
	for _, sess := range r.sessions {
		switch sess.Status {
		case StatusAITalking:
			s.AITalking++
		case StatusWaitingHuman:
			s.WaitingHuman++
		case StatusHumanTalking:
			s.HumanTalking++
		case StatusEnded:
			s.Ended++
		}
	}
	return s
}

func snapshot(sess *Session) *Session {
	copied := *sess
	copied.History = append([]Message(nil), sess.History...)
	return &copied
}
