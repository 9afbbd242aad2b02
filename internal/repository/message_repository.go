package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dentalink/dentalink-api/internal/models"
)

// MessageRepository provides database access for per-case message threads.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new instance of MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message into a case thread.
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, case_id, sender_id, content, timestamp)
	VALUES (:id, :case_id, :sender_id, :content, :timestamp)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListByCase returns a case's thread oldest first, with sender name and role
// joined in so the client never looks up users separately.
func (r *MessageRepository) ListByCase(ctx context.Context, caseID string) ([]models.Message, error) {
	const query = `SELECT m.id, m.case_id, m.sender_id, m.content, m.timestamp,
		u.name AS sender_name, u.role AS sender_role
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	WHERE m.case_id = $1
	ORDER BY m.timestamp ASC`
	messages := []models.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, caseID); err != nil {
		return nil, fmt.Errorf("list case messages: %w", err)
	}
	return messages, nil
}

// CountByCaseIDs returns the message count per case for a set of cases.
func (r *MessageRepository) CountByCaseIDs(ctx context.Context, caseIDs []string) (map[string]int, error) {
	result := make(map[string]int, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}
	const query = `SELECT case_id, COUNT(*) AS total FROM messages WHERE case_id = ANY($1) GROUP BY case_id`
	rows := []struct {
		CaseID string `db:"case_id"`
		Total  int    `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(caseIDs)); err != nil {
		return nil, fmt.Errorf("count messages by cases: %w", err)
	}
	for _, row := range rows {
		result[row.CaseID] = row.Total
	}
	return result, nil
}
