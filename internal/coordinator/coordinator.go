package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/handoff-backend/internal/agent"
	"github.com/eleven-am/handoff-backend/internal/dto"
	"github.com/eleven-am/handoff-backend/internal/provider"
	"github.com/eleven-am/handoff-backend/internal/queue"
	"github.com/eleven-am/handoff-backend/internal/rtc"
	"github.com/eleven-am/handoff-backend/internal/session"
	"github.com/eleven-am/handoff-backend/internal/shared"
)

var (
	ErrSessionNotWaiting = fmt.Errorf("session is not waiting for an agent: %w", shared.ErrInvalidTransition)
	ErrAgentUnavailable  = errors.New("agent is not available")
	ErrAgentOnCall       = fmt.Errorf("agent has a live call: %w", shared.ErrInvalidTransition)
)

// Notifier pushes gateway events. Implemented by the gateway hub; a nil-safe
// no-op is used in tests.
type Notifier interface {
	PushToAgent(agentID, event string, payload any) bool
	BroadcastToAgents(event string, payload any)
	PushToUser(userID, event string, payload any) bool
}

// Coordinator owns every hand-off state transition. Registries guard their
// own state; the commit mutex serializes multi-registry transitions so two
// agents cannot claim one session.
type Coordinator struct {
	sessions *session.Registry
	agents   *agent.Registry
	queue    *queue.WaitQueue
	tokens   *rtc.TokenService
	notifier Notifier
	log      *slog.Logger

	avgServiceSeconds int

	commitMu sync.Mutex
}

type Params struct {
	Sessions          *session.Registry
	Agents            *agent.Registry
	Queue             *queue.WaitQueue
	Tokens            *rtc.TokenService
	Notifier          Notifier
	Logger            *slog.Logger
	AvgServiceSeconds int
}

func New(p Params) *Coordinator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	avg := p.AvgServiceSeconds
	if avg <= 0 {
		avg = queue.DefaultAvgServiceSeconds
	}
	return &Coordinator{
		sessions:          p.Sessions,
		agents:            p.Agents,
		queue:             p.Queue,
		tokens:            p.Tokens,
		notifier:          p.Notifier,
		log:               logger.With("component", "coordinator"),
		avgServiceSeconds: avg,
	}
}

// RequestTransfer creates a waiting session for the user and either offers it
// to an online agent immediately or queues it. Missing instance and history
// details are resolved from the user's active AI session.
func (c *Coordinator) RequestTransfer(req dto.TransferRequest) (*dto.TransferResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id required: %w", shared.ErrPreconditionFailed)
	}

	instanceID := req.InstanceID
	channelID := req.ChannelID
	history := req.History

	if instanceID == "" || channelID == "" {
		existing := c.sessions.FindActiveByUserID(req.UserID)
		if existing == nil {
			return nil, fmt.Errorf("no active session for user %s: %w", req.UserID, shared.ErrNotFound)
		}
		if instanceID == "" {
			instanceID = existing.InstanceID
		}
		if channelID == "" {
			channelID = existing.ChannelID
		}
		if len(existing.History) > 0 {
			history = existing.History
		}
	}

	sess := &session.Session{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		InstanceID:     instanceID,
		ChannelID:      channelID,
		Status:         session.StatusWaitingHuman,
		History:        history,
		TransferReason: session.TransferReason(req.Reason),
		Keyword:        req.Keyword,
		EnqueuedAt:     time.Now(),
	}
	if err := c.sessions.Create(sess); err != nil {
		return nil, err
	}

	c.log.Info("transfer requested",
		"session_id", sess.ID, "user_id", req.UserID, "reason", req.Reason, "source", req.Source)

	if req.Source == "ai" {
		c.notifier.PushToUser(req.UserID, dto.EventAITriggeredTransfer, dto.AITriggeredTransferPayload{
			SessionID: sess.ID,
			UserID:    req.UserID,
			Reason:    req.Reason,
			Status:    string(session.StatusWaitingHuman),
			Message:   "transferring you to a human agent, please hold",
		})
	}

	if avail := c.agents.GetAvailable(); avail != nil {
		c.notifier.PushToAgent(avail.ID, dto.EventNewSession, newSessionPayload(sess))
		c.log.Info("session offered to agent", "session_id", sess.ID, "agent_id", avail.ID)
		return &dto.TransferResponse{
			SessionID:     sess.ID,
			Status:        string(session.StatusWaitingHuman),
			QueuePosition: 0,
			Message:       "connecting you to a human agent",
		}, nil
	}

	pos := c.queue.Enqueue(entryFromSession(sess))
	return &dto.TransferResponse{
		SessionID:         sess.ID,
		Status:            string(session.StatusWaitingHuman),
		QueuePosition:     pos,
		EstimatedWaitSecs: queue.EstimateWait(pos, c.avgServiceSeconds),
		Message:           "all agents are busy, please hold",
	}, nil
}

// AcceptCall connects agentID to a waiting session. Only an online agent can
// accept. Credentials for both parties are minted first; state is committed
// only after a re-validation, so a failed accept leaves the session waiting
// and the agent untouched.
func (c *Coordinator) AcceptCall(agentID, sessionID string) (*dto.AcceptCallResponse, error) {
	ag, err := c.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if ag.Status != agent.StatusOnline {
		return nil, fmt.Errorf("agent %s is %s: %w", agentID, ag.Status, ErrAgentUnavailable)
	}

	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusWaitingHuman {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrSessionNotWaiting)
	}

	channel := rtc.ChannelForSession(sessionID)
	agentCred, err := c.tokens.IssueCredential(channel, ag.RTCUserID)
	if err != nil {
		return nil, err
	}
	userCred, err := c.tokens.IssueCredential(channel, "user_"+sess.UserID)
	if err != nil {
		return nil, err
	}

	c.commitMu.Lock()
	sess, err = c.sessions.Get(sessionID)
	if err != nil {
		c.commitMu.Unlock()
		return nil, err
	}
	if sess.Status != session.StatusWaitingHuman {
		c.commitMu.Unlock()
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, ErrSessionNotWaiting)
	}
	if fresh, err := c.agents.Get(agentID); err != nil || fresh.Status != agent.StatusOnline {
		c.commitMu.Unlock()
		return nil, fmt.Errorf("agent %s: %w", agentID, ErrAgentUnavailable)
	}

	c.queue.Remove(sessionID)
	now := time.Now()
	if err := c.sessions.Update(sessionID, func(s *session.Session) {
		s.Status = session.StatusHumanTalking
		s.AgentID = ag.ID
		s.AgentName = ag.Name
		s.ChannelID = channel
		s.TransferredAt = now
	}); err != nil {
		c.commitMu.Unlock()
		return nil, err
	}
	if err := c.agents.SetStatus(agentID, agent.StatusBusy, sessionID); err != nil {
		c.commitMu.Unlock()
		return nil, err
	}
	c.commitMu.Unlock()

	c.log.Info("call accepted", "session_id", sessionID, "agent_id", agentID, "channel_id", channel)

	c.notifier.PushToUser(sess.UserID, dto.EventTakeoverSuccess, dto.TakeoverSuccessPayload{
		SessionID: sessionID,
		UserID:    sess.UserID,
		AgentID:   ag.ID,
		AgentName: ag.Name,
		RTC:       dto.NewRTCInfo(channel, c.tokens.URL(), userCred),
		Message:   "you are connected to a human agent",
	})
	c.broadcastPending()

	return &dto.AcceptCallResponse{
		SessionID: sessionID,
		UserID:    sess.UserID,
		RTC:       dto.NewRTCInfo(channel, c.tokens.URL(), agentCred),
	}, nil
}

// RejectCall marks the session rejected and removes it from the queue. A
// rejected session is never re-queued; the user falls back to the AI call.
func (c *Coordinator) RejectCall(agentID, sessionID, reason string) error {
	if reason == "" {
		reason = "agent busy"
	}

	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	c.queue.Remove(sessionID)
	if err := c.sessions.Update(sessionID, func(s *session.Session) {
		s.Status = session.StatusRejected
		s.RejectReason = reason
		s.EndedAt = time.Now()
	}); err != nil {
		return err
	}

	c.log.Info("session rejected", "session_id", sessionID, "agent_id", agentID, "reason", reason)

	c.notifier.PushToUser(sess.UserID, dto.EventSessionRejected, dto.SessionRejectedPayload{
		SessionID: sessionID,
		Reason:    reason,
		Message:   "all agents are busy, please retry later or continue with the AI agent",
	})
	c.broadcastPending()
	return nil
}

// Hangup ends the session from either side. When an agent was attached the
// call duration is folded into their stats and they return to online.
func (c *Coordinator) Hangup(sessionID, endedBy string) error {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	if sess.Status == session.StatusWaitingHuman {
		c.queue.Remove(sessionID)
	}

	now := time.Now()
	if err := c.sessions.Update(sessionID, func(s *session.Session) {
		s.Status = session.StatusEnded
		s.EndedBy = endedBy
		s.EndedAt = now
	}); err != nil {
		return err
	}

	if sess.AgentID != "" {
		if !sess.TransferredAt.IsZero() {
			duration := now.Sub(sess.TransferredAt).Seconds()
			if err := c.agents.RecordCallCompletion(sess.AgentID, duration); err != nil {
				c.log.Warn("call stats not recorded", "agent_id", sess.AgentID, "error", err)
			}
		}
		if err := c.agents.SetStatus(sess.AgentID, agent.StatusOnline, ""); err != nil {
			c.log.Warn("agent not restored to online", "agent_id", sess.AgentID, "error", err)
		}
	}

	c.log.Info("session ended", "session_id", sessionID, "ended_by", endedBy)

	switch endedBy {
	case "agent":
		c.notifier.PushToUser(sess.UserID, dto.EventSessionEndedByAgent, dto.SessionEndedPayload{
			SessionID: sessionID,
			UserID:    sess.UserID,
			AgentID:   sess.AgentID,
			AgentName: sess.AgentName,
			Message:   "the agent has ended the call",
		})
		c.notifier.BroadcastToAgents(dto.EventSessionEnded, dto.SessionEndedPayload{SessionID: sessionID})
	case "user":
		c.notifier.BroadcastToAgents(dto.EventSessionEndedByUser, dto.SessionEndedPayload{
			SessionID: sessionID,
			UserID:    sess.UserID,
			Message:   "the user has hung up",
		})
	}
	return nil
}

// HandleAgentOnline assigns the head of the queue, if any, to the agent that
// just became available. The entry leaves the queue on offer; accepting is
// validated against the session status, not queue membership.
func (c *Coordinator) HandleAgentOnline(agentID string) {
	next := c.queue.Dequeue()
	if next == nil {
		return
	}

	payload := dto.NewSessionPayload{
		SessionID:      next.SessionID,
		UserID:         next.UserID,
		InstanceID:     next.InstanceID,
		ChannelID:      next.ChannelID,
		TransferReason: next.TransferReason,
		Keyword:        next.Keyword,
		EnqueuedAt:     next.EnqueuedAt,
	}
	if sess, err := c.sessions.Get(next.SessionID); err == nil {
		payload.History = sess.History
	}

	c.notifier.PushToAgent(agentID, dto.EventNewSession, payload)
	c.log.Info("queued session assigned", "session_id", next.SessionID, "agent_id", agentID)
}

// HandleStatusChange applies a manual status change from the agent console.
// An agent with a live call cannot flip back to online; the call must end
// first.
func (c *Coordinator) HandleStatusChange(agentID string, status agent.Status) error {
	ag, err := c.agents.Get(agentID)
	if err != nil {
		return err
	}

	if status == agent.StatusOnline && ag.Status == agent.StatusBusy && ag.CurrentSessionID != "" {
		if sess, err := c.sessions.Get(ag.CurrentSessionID); err == nil && sess.Status == session.StatusHumanTalking {
			return fmt.Errorf("agent %s serving session %s: %w", agentID, ag.CurrentSessionID, ErrAgentOnCall)
		}
	}

	if err := c.agents.SetStatus(agentID, status, ag.CurrentSessionID); err != nil {
		return err
	}

	if status == agent.StatusOnline {
		c.HandleAgentOnline(agentID)
	}
	return nil
}

// HandleAgentDisconnect cleans up after an agent's connection drops. A live
// call goes back to the tail of the queue so another agent can pick it up.
func (c *Coordinator) HandleAgentDisconnect(connID string) {
	ag, err := c.agents.GetByConnectionID(connID)
	if err != nil {
		return
	}

	if ag.Status == agent.StatusBusy && ag.CurrentSessionID != "" {
		sess, err := c.sessions.Get(ag.CurrentSessionID)
		if err == nil {
			c.log.Warn("agent disconnected during call",
				"agent_id", ag.ID, "session_id", sess.ID)

			now := time.Now()
			_ = c.sessions.Update(sess.ID, func(s *session.Session) {
				s.Status = session.StatusWaitingHuman
				s.AgentID = ""
				s.AgentName = ""
				s.EnqueuedAt = now
			})
			c.queue.Enqueue(queue.Entry{
				SessionID:      sess.ID,
				UserID:         sess.UserID,
				InstanceID:     sess.InstanceID,
				ChannelID:      sess.ChannelID,
				TransferReason: string(sess.TransferReason),
				Keyword:        sess.Keyword,
				EnqueuedAt:     now,
			})

			c.notifier.PushToUser(sess.UserID, dto.EventAgentDisconnected, dto.AgentDisconnectedPayload{
				SessionID: sess.ID,
				Message:   "the agent lost connection, reassigning you to another agent",
			})
		}
	}

	c.agents.RemoveByConnectionID(connID)
	c.broadcastPending()
}

// HandleUserDisconnect cleans up a waiting session whose user-side connection
// dropped, e.g. a page refresh while queued.
func (c *Coordinator) HandleUserDisconnect(connID string) {
	sess := c.sessions.FindByConnectionID(connID)
	if sess == nil || sess.Status != session.StatusWaitingHuman {
		return
	}

	c.queue.Remove(sess.ID)
	_ = c.sessions.Update(sess.ID, func(s *session.Session) {
		s.Status = session.StatusUserDisconnected
		s.EndedAt = time.Now()
	})

	c.log.Info("waiting session cleaned up after user disconnect", "session_id", sess.ID)
	c.broadcastPending()
}

// SweepQueue expires entries that waited longer than maxAge. Expired sessions
// end with ended_by timeout and their users are told to retry.
func (c *Coordinator) SweepQueue(maxAge time.Duration) []string {
	expired := c.queue.SweepExpired(maxAge)
	for _, id := range expired {
		sess, err := c.sessions.Get(id)
		if err != nil {
			continue
		}
		_ = c.sessions.Update(id, func(s *session.Session) {
			s.Status = session.StatusEnded
			s.EndedBy = "timeout"
			s.EndedAt = time.Now()
		})
		c.notifier.PushToUser(sess.UserID, dto.EventSessionTimeout, dto.SessionTimeoutPayload{
			SessionID: id,
			Message:   "wait timed out, please request an agent again",
		})
	}
	if len(expired) > 0 {
		c.broadcastPending()
	}
	return expired
}

// RecordChatRecord correlates provider dialogue turns to a session and
// appends them to its history. Correlation falls back from instance id to the
// single active session, then to the most recent active one.
func (c *Coordinator) RecordChatRecord(instanceID string, dialogues []provider.Dialogue) int {
	sess := c.correlate(instanceID)
	if sess == nil {
		c.log.Warn("chat record dropped, no session correlated", "instance_id", instanceID)
		return 0
	}

	appended := 0
	var msgs []session.Message
	for _, d := range dialogues {
		msg := session.Message{
			ID:        d.DialogueID,
			Role:      roleForProducer(d.Producer),
			Text:      d.Text,
			Timestamp: time.UnixMilli(d.Time),
		}
		if msg.ID == "" {
			msg.ID = shared.NewID("msg_")
		}
		if c.sessions.AppendMessage(sess.ID, msg) {
			msgs = append(msgs, msg)
			appended++
		}
	}

	if appended > 0 {
		c.notifier.PushToUser(sess.UserID, dto.EventSessionMessageUpdate, dto.SessionMessageUpdatePayload{
			SessionID: sess.ID,
			Messages:  msgs,
		})
	}
	return appended
}

func (c *Coordinator) correlate(instanceID string) *session.Session {
	if instanceID != "" {
		if sess := c.sessions.FindByInstanceID(instanceID); sess != nil {
			return sess
		}
	}

	var active []*session.Session
	for _, sess := range c.sessions.All() {
		switch sess.Status {
		case session.StatusAITalking, session.StatusWaitingHuman, session.StatusHumanTalking:
			active = append(active, sess)
		}
	}
	if len(active) == 0 {
		return nil
	}

	if len(active) == 1 {
		c.log.Info("chat record correlated to single active session",
			"instance_id", instanceID, "session_id", active[0].ID)
		return active[0]
	}

	best := active[0]
	for _, sess := range active[1:] {
		if sess.CreatedAt.After(best.CreatedAt) {
			best = sess
		}
	}
	c.log.Warn("chat record correlated to most recent active session",
		"instance_id", instanceID, "session_id", best.ID, "active_count", len(active))
	return best
}

func (c *Coordinator) broadcastPending() {
	c.notifier.BroadcastToAgents(dto.EventPendingSessions, c.queue.Entries())
}

func newSessionPayload(sess *session.Session) dto.NewSessionPayload {
	return dto.NewSessionPayload{
		SessionID:      sess.ID,
		UserID:         sess.UserID,
		InstanceID:     sess.InstanceID,
		ChannelID:      sess.ChannelID,
		History:        sess.History,
		TransferReason: string(sess.TransferReason),
		Keyword:        sess.Keyword,
		EnqueuedAt:     sess.EnqueuedAt,
	}
}

func entryFromSession(sess *session.Session) queue.Entry {
	return queue.Entry{
		SessionID:      sess.ID,
		UserID:         sess.UserID,
		InstanceID:     sess.InstanceID,
		ChannelID:      sess.ChannelID,
		TransferReason: string(sess.TransferReason),
		Keyword:        sess.Keyword,
		EnqueuedAt:     sess.EnqueuedAt,
	}
}

func roleForProducer(producer string) session.Role {
	if producer == "user" {
		return session.RoleUser
	}
	return session.RoleAI
}
