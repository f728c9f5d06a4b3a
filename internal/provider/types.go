package provider

import "github.com/eleven-am/handoff-backend/internal/rtc"

// Instance is one provisioned AI agent call on the provider side.
type Instance struct {
	InstanceID string          `json:"instance_id"`
	ChannelID  string          `json:"channel_id"`
	Credential *rtc.Credential `json:"credential"`
}

// Dialogue is one conversation turn reported by the provider's chat_record
// callback.
type Dialogue struct {
	DialogueID string `json:"dialogueId"`
	Producer   string `json:"producer"`
	Text       string `json:"text"`
	Time       int64  `json:"time"`
}

// CallbackRequest is the provider webhook envelope. Correlating identifiers
// are optional; some events arrive without any.
type CallbackRequest struct {
	RequestID  string     `json:"requestId"`
	Event      string     `json:"event"`
	InstanceID string     `json:"instanceId"`
	Dialogues  []Dialogue `json:"dialogues"`
}

const EventChatRecord = "chat_record"

// DialogueSink receives correlated chat records; implemented by the
// assignment coordinator.
type DialogueSink interface {
	RecordChatRecord(instanceID string, dialogues []Dialogue) int
}
