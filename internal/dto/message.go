package dto

import (
	"time"

	"github.com/dentalink/dentalink-api/internal/models"
)

// CreateMessageRequest posts into a case thread.
type CreateMessageRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// MessageItem is one thread entry, timestamp ascending.
type MessageItem struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"`
	SenderID   string          `json:"senderId"`
	SenderName string          `json:"senderName"`
	SenderRole models.UserRole `json:"senderRole"`
	Timestamp  time.Time       `json:"timestamp"`
}

// MessageThread bundles the thread with minimal case context.
type MessageThread struct {
	Messages []MessageItem     `json:"messages"`
	CaseInfo MessageThreadCase `json:"caseInfo"`
}

// MessageThreadCase summarises the parent case for the thread view.
type MessageThreadCase struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Status models.CaseStatus `json:"status"`
	Clinic string            `json:"clinic"`
	Lab    *string           `json:"lab,omitempty"`
}
