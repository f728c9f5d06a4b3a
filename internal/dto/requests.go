package dto

import "github.com/eleven-am/handoff-backend/internal/session"

// TransferRequest asks for a hand-off to a human agent. SessionID is
// optional: when absent the coordinator resolves the caller's active AI
// session by user id.
type TransferRequest struct {
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id,omitempty"`
	InstanceID string            `json:"instance_id,omitempty"`
	ChannelID  string            `json:"channel_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Keyword    string            `json:"keyword,omitempty"`
	History    []session.Message `json:"conversation_history,omitempty"`
	Source     string            `json:"source,omitempty"`
}

type TransferResponse struct {
	SessionID         string `json:"session_id"`
	Status            string `json:"status"`
	QueuePosition     int    `json:"queue_position"`
	EstimatedWaitSecs int    `json:"estimated_wait_seconds,omitempty"`
	Message           string `json:"message"`
}

type AcceptCallRequest struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
}

type AcceptCallResponse struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	RTC       *RTCInfo `json:"rtc_info"`
}

type RejectCallRequest struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	Reason    string `json:"reason,omitempty"`
}

type HangupRequest struct {
	SessionID string `json:"session_id"`
}

type StartCallRequest struct {
	UserID string `json:"user_id"`
}

type StartCallResponse struct {
	SessionID  string   `json:"session_id"`
	InstanceID string   `json:"instance_id"`
	RTC        *RTCInfo `json:"rtc_info"`
}

type StopCallRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`
}
