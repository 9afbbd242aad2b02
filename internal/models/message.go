package models

import "time"

// MaxMessageLength bounds message content.
const MaxMessageLength = 1000

// Message belongs to exactly one case and one sender. Append-only; display
// order is timestamp ascending.
type Message struct {
	ID        string    `db:"id" json:"id"`
	CaseID    string    `db:"case_id" json:"case_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`

	// Joined sender display fields.
	SenderName string   `db:"sender_name" json:"sender_name,omitempty"`
	SenderRole UserRole `db:"sender_role" json:"sender_role,omitempty"`
}
