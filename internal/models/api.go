package models

import "time"

// SessionDetails is the upstream bot's view of a conversation, used to
// rehydrate the transcript on restore.
type SessionDetails struct {
	SessionID   string        `json:"session_id"`
	PhoneNumber string        `json:"phoneNumber"`
	Status      string        `json:"status"`
	History     []HistoryTurn `json:"history"`
	UserID      string        `json:"userId"`
	CreatedAt   time.Time     `json:"created_at"`
}

// HistoryTurn is one entry of the backend-held history.
type HistoryTurn struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Messages converts the backend history into transcript messages in
// insertion order.
func (d SessionDetails) Messages() []Message {
	msgs := make([]Message, 0, len(d.History))
	for _, turn := range d.History {
		sender := turn.Sender
		if sender != SenderUser {
			sender = SenderAgent
		}
		msg := NewMessage(turn.Text, sender)
		if !turn.Timestamp.IsZero() {
			msg.Timestamp = turn.Timestamp
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
