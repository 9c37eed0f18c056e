package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message senders. Classification only governs agent turns.
const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// Message is a single transcript entry. Messages are immutable once created,
// except that Text may be overwritten in place (same ID) to show an upload
// progressing to success or failure.
type Message struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Sender       string    `json:"sender"` // "user" or "agent"
	Timestamp    time.Time `json:"timestamp"`
	ImagePreview string    `json:"image_preview,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
}

// NewMessage creates a transcript message with a fresh UUID.
func NewMessage(text, sender string) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// ChatHistoryEntry is the persisted form of a recent conversation, kept per
// identity so a reload can find the most recent session id even when the
// session-id keys were cleared.
type ChatHistoryEntry struct {
	gorm.Model
	IdentityKey string    `json:"identity_key" gorm:"index"`
	SessionID   string    `json:"session_id"`
	LastMessage string    `json:"last_message"`
	LastActive  time.Time `json:"last_active"`
}
