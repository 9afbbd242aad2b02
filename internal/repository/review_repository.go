package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dentalink/dentalink-api/internal/models"
)

// ReviewRepository provides database access for lab reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new instance of ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. The unique index on case_id makes a second review
// for the same case fail with a constraint violation.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.Timestamp.IsZero() {
		review.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO reviews (id, case_id, clinic_id, lab_id, rating, comment, timestamp)
	VALUES (:id, :case_id, :clinic_id, :lab_id, :rating, :comment, :timestamp)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByCase returns the review of a case, if any.
func (r *ReviewRepository) FindByCase(ctx context.Context, caseID string) (*models.Review, error) {
	const query = `SELECT id, case_id, clinic_id, lab_id, rating, comment, timestamp FROM reviews WHERE case_id = $1 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, caseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by case: %w", err)
	}
	return &review, nil
}

// ListByLab returns a lab's reviews newest first, with the reviewing clinic's
// name and the case title joined in.
func (r *ReviewRepository) ListByLab(ctx context.Context, labID string) ([]models.Review, error) {
	const query = `SELECT rv.id, rv.case_id, rv.clinic_id, rv.lab_id, rv.rating, rv.comment, rv.timestamp,
		c.name AS clinic_name, cs.title AS case_title
	FROM reviews rv
	JOIN clinics c ON c.id = rv.clinic_id
	JOIN cases cs ON cs.id = rv.case_id
	WHERE rv.lab_id = $1
	ORDER BY rv.timestamp DESC`
	reviews := []models.Review{}
	if err := r.db.SelectContext(ctx, &reviews, query, labID); err != nil {
		return nil, fmt.Errorf("list lab reviews: %w", err)
	}
	return reviews, nil
}

// CountByLab returns the number of reviews a lab has received.
func (r *ReviewRepository) CountByLab(ctx context.Context, labID string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM reviews WHERE lab_id = $1`
	if err := r.db.GetContext(ctx, &total, query, labID); err != nil {
		return 0, fmt.Errorf("count lab reviews: %w", err)
	}
	return total, nil
}
