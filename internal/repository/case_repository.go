package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dentalink/dentalink-api/internal/models"
)

// CaseRepository provides database access for marketplace cases. All state
// changes are conditional updates keyed on the status (and, for claims, the
// lab binding) the caller observed, so concurrent writers cannot double-apply
// a transition; a conditional update that touches zero rows returns
// sql.ErrNoRows and the service layer decides what that means.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository creates a new instance of CaseRepository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `id, title, case_notes, tooth_number, status, status_history, clinic_id, lab_id, created_at, updated_at`

// Create inserts a new case. A fresh case starts NEW with an empty history;
// the first history entry is written by the claiming lab's decision.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.Status = models.StatusNew
	if c.StatusHistory == nil {
		c.StatusHistory = models.StatusHistory{}
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	const query = `INSERT INTO cases (id, title, case_notes, tooth_number, status, status_history, clinic_id, lab_id, created_at, updated_at)
	VALUES (:id, :title, :case_notes, :tooth_number, :status, :status_history, :clinic_id, :lab_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetByID returns a case by identifier.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 LIMIT 1`
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

// ListByClinic returns all cases submitted by a clinic, newest first.
func (r *CaseRepository) ListByClinic(ctx context.Context, clinicID string) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE clinic_id = $1 ORDER BY created_at DESC`
	cases := []models.Case{}
	if err := r.db.SelectContext(ctx, &cases, query, clinicID); err != nil {
		return nil, fmt.Errorf("list clinic cases: %w", err)
	}
	return cases, nil
}

// ListIncoming returns the cases a lab can decide on: cases targeted directly
// at the lab plus all unclaimed pool cases, all still NEW. Targeted cases sort
// first so direct requests are not buried under the pool.
func (r *CaseRepository) ListIncoming(ctx context.Context, labID string) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases
	WHERE status = 'NEW' AND (lab_id = $1 OR lab_id IS NULL)
	ORDER BY (lab_id = $1) DESC, created_at DESC`
	cases := []models.Case{}
	if err := r.db.SelectContext(ctx, &cases, query, labID); err != nil {
		return nil, fmt.Errorf("list incoming cases: %w", err)
	}
	return cases, nil
}

// ListJobs returns the cases a lab has accepted and is working on, newest
// first. Rejected cases stay out of the job board.
func (r *CaseRepository) ListJobs(ctx context.Context, labID string) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases
	WHERE lab_id = $1 AND status NOT IN ('NEW', 'REJECTED')
	ORDER BY created_at DESC`
	cases := []models.Case{}
	if err := r.db.SelectContext(ctx, &cases, query, labID); err != nil {
		return nil, fmt.Errorf("list lab jobs: %w", err)
	}
	return cases, nil
}

// ClaimFromPool binds a lab to an unclaimed NEW pool case and moves it to the
// decided status in one atomic statement, appending the history entry in the
// same write. Exactly one of any number of concurrent claimers can match the
// lab_id IS NULL predicate; everyone else gets sql.ErrNoRows.
func (r *CaseRepository) ClaimFromPool(ctx context.Context, caseID, labID string, newStatus models.CaseStatus, change models.StatusChange) (*models.Case, error) {
	entry, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}
	query := `UPDATE cases
	SET lab_id = $2, status = $3,
		status_history = COALESCE(status_history, '[]'::jsonb) || $4::jsonb,
		updated_at = $5
	WHERE id = $1 AND lab_id IS NULL AND status = 'NEW'
	RETURNING ` + caseColumns
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, caseID, labID, newStatus, entry, change.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("claim case: %w", err)
	}
	return &c, nil
}

// DecideTargeted applies a lab's decision to a case that was sent directly to
// it. The lab_id predicate keeps a lab from deciding someone else's case even
// if it guesses the id; the status predicate keeps a decision from landing
// twice.
func (r *CaseRepository) DecideTargeted(ctx context.Context, caseID, labID string, newStatus models.CaseStatus, change models.StatusChange) (*models.Case, error) {
	entry, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}
	query := `UPDATE cases
	SET status = $3,
		status_history = COALESCE(status_history, '[]'::jsonb) || $4::jsonb,
		updated_at = $5
	WHERE id = $1 AND lab_id = $2 AND status = 'NEW'
	RETURNING ` + caseColumns
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, caseID, labID, newStatus, entry, change.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("decide targeted case: %w", err)
	}
	return &c, nil
}

// AdvanceStatus moves a case forward along the fabrication lifecycle. The
// WHERE clause pins the status the caller validated against, so a racing
// advance that already moved the row produces zero rows instead of skipping
// a stage.
func (r *CaseRepository) AdvanceStatus(ctx context.Context, caseID string, from, to models.CaseStatus, change models.StatusChange) (*models.Case, error) {
	entry, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}
	query := `UPDATE cases
	SET status = $3,
		status_history = COALESCE(status_history, '[]'::jsonb) || $4::jsonb,
		updated_at = $5
	WHERE id = $1 AND status = $2
	RETURNING ` + caseColumns
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, caseID, from, to, entry, change.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("advance case status: %w", err)
	}
	return &c, nil
}

// Cancel marks a case CANCELLED if it is still inside the cancellation
// window. Cancellation is not part of the fabrication progression and does
// not append a history entry.
func (r *CaseRepository) Cancel(ctx context.Context, caseID, clinicID string) (*models.Case, error) {
	query := `UPDATE cases
	SET status = 'CANCELLED', updated_at = $3
	WHERE id = $1 AND clinic_id = $2 AND status IN ('NEW', 'ACCEPTED')
	RETURNING ` + caseColumns
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, caseID, clinicID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("cancel case: %w", err)
	}
	return &c, nil
}

// CountByClinicStatus returns the per-status case counts for a clinic.
func (r *CaseRepository) CountByClinicStatus(ctx context.Context, clinicID string) (map[models.CaseStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM cases WHERE clinic_id = $1 GROUP BY status`
	return r.countByStatus(ctx, query, clinicID)
}

// CountByLabStatus returns the per-status case counts for a lab's bound cases.
func (r *CaseRepository) CountByLabStatus(ctx context.Context, labID string) (map[models.CaseStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM cases WHERE lab_id = $1 GROUP BY status`
	return r.countByStatus(ctx, query, labID)
}

// CountIncoming returns the number of NEW cases a lab can decide on.
func (r *CaseRepository) CountIncoming(ctx context.Context, labID string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM cases WHERE status = 'NEW' AND (lab_id = $1 OR lab_id IS NULL)`
	if err := r.db.GetContext(ctx, &total, query, labID); err != nil {
		return 0, fmt.Errorf("count incoming cases: %w", err)
	}
	return total, nil
}

// CountPool returns the number of unclaimed pool cases.
func (r *CaseRepository) CountPool(ctx context.Context) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM cases WHERE lab_id IS NULL AND status = 'NEW'`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count pool cases: %w", err)
	}
	return total, nil
}

func (r *CaseRepository) countByStatus(ctx context.Context, query string, arg interface{}) (map[models.CaseStatus]int, error) {
	rows := []struct {
		Status models.CaseStatus `db:"status"`
		Total  int               `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, arg); err != nil {
		return nil, fmt.Errorf("count cases by status: %w", err)
	}
	counts := make(map[models.CaseStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
