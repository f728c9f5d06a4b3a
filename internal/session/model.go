package session

import "time"

type Status string

const (
	StatusAITalking        Status = "ai_talking"
	StatusWaitingHuman     Status = "waiting_human"
	StatusHumanTalking     Status = "human_talking"
	StatusRejected         Status = "rejected"
	StatusEnded            Status = "ended"
	StatusUserDisconnected Status = "user_disconnected"
)

type TransferReason string

const (
	ReasonUserRequested   TransferReason = "user_requested"
	ReasonAISuggested     TransferReason = "ai_suggested"
	ReasonKeywordDetected TransferReason = "keyword_detected"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks one user's conversation from the AI call through an
// optional human hand-off to termination.
type Session struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	InstanceID       string         `json:"instance_id"`
	ChannelID        string         `json:"channel_id"`
	UserConnectionID string         `json:"user_connection_id,omitempty"`
	Status           Status         `json:"status"`
	History          []Message      `json:"conversation_history"`
	TransferReason   TransferReason `json:"transfer_reason,omitempty"`
	Keyword          string         `json:"keyword,omitempty"`
	AgentID          string         `json:"agent_id,omitempty"`
	AgentName        string         `json:"agent_name,omitempty"`
	RejectReason     string         `json:"reject_reason,omitempty"`
	EndedBy          string         `json:"ended_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	EnqueuedAt       time.Time      `json:"enqueued_at,omitzero"`
	TransferredAt    time.Time      `json:"transferred_at,omitzero"`
	EndedAt          time.Time      `json:"ended_at,omitzero"`
}

type Stats struct {
	Total        int `json:"total"`
	AITalking    int `json:"ai_talking"`
	WaitingHuman int `json:"waiting_human"`
	HumanTalking int `json:"human_talking"`
	Ended        int `json:"ended"`
}
