package gateway

import (
	"log/slog"
	"sync"
)

// endpoint is the send side of one connected client.
type endpoint interface {
	enqueue(data []byte) bool
	Close() error
}

// Hub indexes live connections by agent id and by user id, and is the
// coordinator's notifier. One connection per identity: a re-login supersedes
// the previous socket, which is closed.
type Hub struct {
	agents map[string]endpoint
	users  map[string]endpoint
	mu     sync.RWMutex
	log    *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		agents: make(map[string]endpoint),
		users:  make(map[string]endpoint),
		log:    logger.With("component", "gateway_hub"),
	}
}

func (h *Hub) RegisterAgent(agentID string, conn endpoint) {
	h.mu.Lock()
	old, had := h.agents[agentID]
	h.agents[agentID] = conn
	h.mu.Unlock()

	if had && old != conn {
		h.log.Info("superseding agent connection", "agent_id", agentID)
		old.Close()
	}
}

// UnregisterAgent drops the mapping only if conn still owns it, so a
// superseded connection's teardown cannot evict its replacement.
func (h *Hub) UnregisterAgent(agentID string, conn endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.agents[agentID] == conn {
		delete(h.agents, agentID)
	}
}

func (h *Hub) RegisterUser(userID string, conn endpoint) {
	h.mu.Lock()
	old, had := h.users[userID]
	h.users[userID] = conn
	h.mu.Unlock()

	if had && old != conn {
		h.log.Info("superseding user connection", "user_id", userID)
		old.Close()
	}
}

func (h *Hub) UnregisterUser(userID string, conn endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == conn {
		delete(h.users, userID)
	}
}

func (h *Hub) PushToAgent(agentID, event string, payload any) bool {
	h.mu.RLock()
	conn, ok := h.agents[agentID]
	h.mu.RUnlock()
	if !ok {
		h.log.Warn("push to unknown agent", "agent_id", agentID, "event", event)
		return false
	}
	return h.push(conn, event, payload)
}

func (h *Hub) BroadcastToAgents(event string, payload any) {
	h.mu.RLock()
	conns := make([]endpoint, 0, len(h.agents))
	for _, conn := range h.agents {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.push(conn, event, payload)
	}
}

func (h *Hub) PushToUser(userID, event string, payload any) bool {
	h.mu.RLock()
	conn, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		h.log.Warn("push to unknown user", "user_id", userID, "event", event)
		return false
	}
	return h.push(conn, event, payload)
}

func (h *Hub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *Hub) push(conn endpoint, event string, payload any) bool {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("marshal event failed", "event", event, "error", err)
		return false
	}
	return conn.enqueue(data)
}
