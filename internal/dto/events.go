package dto

import (
	"time"

	"github.com/eleven-am/handoff-backend/internal/queue"
	"github.com/eleven-am/handoff-backend/internal/rtc"
	"github.com/eleven-am/handoff-backend/internal/session"
)

// Gateway event names. Inbound events arrive from connected clients,
// outbound events are pushed by the server. The set is closed: unknown
// inbound types are rejected.
const (
	// inbound, agent connections
	EventAgentLogin         = "agent-login"
	EventAgentStatusChange  = "agent-status-change"
	EventAgentAcceptSession = "agent-accept-session"
	EventAgentRejectSession = "agent-reject-session"
	EventAgentHangup        = "agent-hangup"
	EventPing               = "ping"

	// inbound, user connections
	EventUserHangup = "user-hangup"

	// outbound, agent connections
	EventLoginSuccess       = "login-success"
	EventLoginError         = "login-error"
	EventPendingSessions    = "pending-sessions"
	EventNewSession         = "new-session"
	EventAcceptAcknowledged = "accept-acknowledged"
	EventAcceptError        = "accept-error"
	EventSessionEnded       = "session-ended"
	EventSessionEndedByUser = "session-ended-by-user"
	EventPong               = "pong"
	EventError              = "error"

	// outbound, user connections
	EventTakeoverSuccess      = "takeover-success"
	EventSessionRejected      = "session-rejected"
	EventSessionEndedByAgent  = "session-ended-by-agent"
	EventAgentDisconnected    = "agent-disconnected"
	EventSessionTimeout       = "session-timeout"
	EventAITriggeredTransfer  = "ai-triggered-transfer"
	EventSessionMessageUpdate = "session-message-update"
)

type AgentLoginPayload struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type AgentStatusChangePayload struct {
	Status string `json:"status"`
}

type SessionRefPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

type UserHangupPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type LoginSuccessPayload struct {
	AgentID         string        `json:"agent_id"`
	Name            string        `json:"name"`
	PendingSessions []queue.Entry `json:"pending_sessions"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewSessionPayload is pushed to one agent when a waiting session is offered
// to them, either directly on transfer or when they come back online.
type NewSessionPayload struct {
	SessionID      string            `json:"session_id"`
	UserID         string            `json:"user_id"`
	InstanceID     string            `json:"instance_id,omitempty"`
	ChannelID      string            `json:"channel_id,omitempty"`
	History        []session.Message `json:"conversation_history,omitempty"`
	TransferReason string            `json:"transfer_reason,omitempty"`
	Keyword        string            `json:"keyword,omitempty"`
	EnqueuedAt     time.Time         `json:"enqueued_at,omitzero"`
}

type AcceptAcknowledgedPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type SessionRejectedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

type SessionEndedPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Message   string `json:"message,omitempty"`
}

// TakeoverSuccessPayload tells the user client to leave the AI channel and
// join the human agent's channel with a fresh credential.
type TakeoverSuccessPayload struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	AgentID   string   `json:"agent_id"`
	AgentName string   `json:"agent_name"`
	RTC       *RTCInfo `json:"rtc_info,omitempty"`
	Message   string   `json:"message"`
}

type RTCInfo struct {
	ChannelID string `json:"channel_id"`
	Token     string `json:"token"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url,omitempty"`
}

func NewRTCInfo(channelID, url string, cred *rtc.Credential) *RTCInfo {
	if cred == nil {
		return nil
	}
	return &RTCInfo{
		ChannelID: channelID,
		Token:     cred.Token,
		Nonce:     cred.Nonce,
		Timestamp: cred.Timestamp,
		URL:       url,
	}
}

type AgentDisconnectedPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type SessionTimeoutPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type AITriggeredTransferPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type SessionMessageUpdatePayload struct {
	SessionID string            `json:"session_id"`
	Messages  []session.Message `json:"messages"`
}
