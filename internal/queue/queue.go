package queue

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a queued hand-off request: enough session metadata for an agent's
// pending list, plus when it joined the queue.
type Entry struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	InstanceID     string    `json:"instance_id,omitempty"`
	ChannelID      string    `json:"channel_id,omitempty"`
	TransferReason string    `json:"transfer_reason,omitempty"`
	Keyword        string    `json:"keyword,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

type Stats struct {
	Length          int    `json:"length"`
	AvgWaitSeconds  int    `json:"avg_wait_seconds"`
	MaxWaitSeconds  int    `json:"max_wait_seconds"`
	OldestSessionID string `json:"oldest_session_id,omitempty"`
}

const DefaultAvgServiceSeconds = 60

// WaitQueue is the FIFO of sessions waiting for a human agent. A session id
// appears at most once.
type WaitQueue struct {
	entries []Entry
	mu      sync.Mutex
	log     *slog.Logger
}

func NewWaitQueue(logger *slog.Logger) *WaitQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &WaitQueue{
		log: logger.With("component", "wait_queue"),
	}
}

// Enqueue appends the entry and returns its 1-based position. Enqueuing a
// session that is already queued is a no-op returning its existing position:
// the coordinator reaches this from more than one trigger path.
func (q *WaitQueue) Enqueue(e Entry) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, existing := range q.entries {
		if existing.SessionID == e.SessionID {
			q.log.Warn("session already queued", "session_id", e.SessionID, "position", i+1)
			return i + 1
		}
	}

	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	q.entries = append(q.entries, e)

	pos := len(q.entries)
	q.log.Info("session enqueued", "session_id", e.SessionID, "position", pos)
	return pos
}

// Dequeue removes and returns the head, or nil when empty.
func (q *WaitQueue) Dequeue() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}

	head := q.entries[0]
	q.entries = q.entries[1:]
	q.log.Info("session dequeued", "session_id", head.SessionID)
	return &head
}

// Remove deletes the entry for sessionID wherever it sits, keeping the
// relative order of the rest.
func (q *WaitQueue) Remove(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.SessionID == sessionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			q.log.Info("session removed from queue", "session_id", sessionID)
			return true
		}
	}
	return false
}

func (q *WaitQueue) Peek() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	return &head
}

// Position returns the 1-based position of sessionID, or -1 if absent.
func (q *WaitQueue) Position(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.SessionID == sessionID {
			return i + 1
		}
	}
	return -1
}

func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a snapshot copy; callers must not treat it as live state.
func (q *WaitQueue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *WaitQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = nil
	if n > 0 {
		q.log.Info("queue cleared", "count", n)
	}
	return n
}

// EstimateWait is a linear model: each session ahead costs one average
// service time. Not adaptive to observed handling times.
func EstimateWait(position, avgServiceSeconds int) int {
	if position <= 0 {
		return 0
	}
	if avgServiceSeconds <= 0 {
		avgServiceSeconds = DefaultAvgServiceSeconds
	}
	return (position - 1) * avgServiceSeconds
}

// SweepExpired removes entries older than maxAge and returns their session
// ids. Callers notify the affected sessions.
func (q *WaitQueue) SweepExpired(maxAge time.Duration) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var expired []string
	kept := q.entries[:0]
	for _, e := range q.entries {
		if now.Sub(e.EnqueuedAt) > maxAge {
			expired = append(expired, e.SessionID)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept

	if len(expired) > 0 {
		q.log.Info("swept expired queue entries", "count", len(expired))
	}
	return expired
}

func (q *WaitQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Length: len(q.entries)}
	if len(q.entries) == 0 {
		return s
	}

	now := time.Now()
	total := 0
	for _, e := range q.entries {
		wait := int(now.Sub(e.EnqueuedAt).Seconds())
		total += wait
		if wait > s.MaxWaitSeconds {
			s.MaxWaitSeconds = wait
		}
	}
	s.AvgWaitSeconds = total / len(q.entries)
	s.OldestSessionID = q.entries[0].SessionID
	return s
}
