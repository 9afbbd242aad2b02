package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dentalink/dentalink-api/internal/models"
)

// LabRepository provides database access for lab profiles and the discovery
// directory.
type LabRepository struct {
	db *sqlx.DB
}

// NewLabRepository creates a new instance of LabRepository.
func NewLabRepository(db *sqlx.DB) *LabRepository {
	return &LabRepository{db: db}
}

const labColumns = `id, user_id, name, services, specialties, turnaround_time, location, latitude, longitude, rating, logo, created_at, updated_at`

// FindByUserID returns the lab profile owned by a user.
func (r *LabRepository) FindByUserID(ctx context.Context, userID string) (*models.Lab, error) {
	query := `SELECT ` + labColumns + ` FROM labs WHERE user_id = $1 LIMIT 1`
	var lab models.Lab
	if err := r.db.GetContext(ctx, &lab, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lab by user: %w", err)
	}
	return &lab, nil
}

// FindByID returns a lab profile by identifier.
func (r *LabRepository) FindByID(ctx context.Context, id string) (*models.Lab, error) {
	query := `SELECT ` + labColumns + ` FROM labs WHERE id = $1 LIMIT 1`
	var lab models.Lab
	if err := r.db.GetContext(ctx, &lab, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lab: %w", err)
	}
	return &lab, nil
}

// FindByIDs returns labs keyed by id for a set of identifiers.
func (r *LabRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Lab, error) {
	result := make(map[string]models.Lab, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + labColumns + ` FROM labs WHERE id = ANY($1)`
	labs := []models.Lab{}
	if err := r.db.SelectContext(ctx, &labs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find labs by ids: %w", err)
	}
	for _, l := range labs {
		result[l.ID] = l
	}
	return result, nil
}

// Update saves the mutable profile fields.
func (r *LabRepository) Update(ctx context.Context, lab *models.Lab) error {
	lab.UpdatedAt = time.Now().UTC()
	const query = `UPDATE labs
	SET name = :name, services = :services, specialties = :specialties,
		turnaround_time = :turnaround_time, location = :location,
		latitude = :latitude, longitude = :longitude, logo = :logo,
		updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lab); err != nil {
		return fmt.Errorf("update lab: %w", err)
	}
	return nil
}

// List returns labs matching the directory filters, best rated first.
func (r *LabRepository) List(ctx context.Context, filter models.LabFilter) ([]models.Lab, error) {
	query := `SELECT ` + labColumns + ` FROM labs`
	conditions := []string{}
	args := []interface{}{}

	if len(filter.Specialties) > 0 {
		args = append(args, pq.Array(filter.Specialties))
		conditions = append(conditions, fmt.Sprintf("specialties && $%d", len(args)))
	}
	if filter.MaxTurnaroundTime != nil {
		args = append(args, *filter.MaxTurnaroundTime)
		conditions = append(conditions, fmt.Sprintf("turnaround_time <= $%d", len(args)))
	}
	if filter.MinRating != nil {
		args = append(args, *filter.MinRating)
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)))
	}
	if filter.Location != "" {
		args = append(args, "%"+filter.Location+"%")
		conditions = append(conditions, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rating DESC, name ASC"

	labs := []models.Lab{}
	if err := r.db.SelectContext(ctx, &labs, query, args...); err != nil {
		return nil, fmt.Errorf("list labs: %w", err)
	}
	return labs, nil
}

// ReviewCounts returns the number of reviews per lab for a set of labs.
func (r *LabRepository) ReviewCounts(ctx context.Context, labIDs []string) (map[string]int, error) {
	const query = `SELECT lab_id, COUNT(*) AS total FROM reviews WHERE lab_id = ANY($1) GROUP BY lab_id`
	return r.countsByLab(ctx, query, labIDs)
}

// CompletedCaseCounts returns the number of delivered cases per lab.
func (r *LabRepository) CompletedCaseCounts(ctx context.Context, labIDs []string) (map[string]int, error) {
	const query = `SELECT lab_id, COUNT(*) AS total FROM cases WHERE lab_id = ANY($1) AND status = 'DELIVERED' GROUP BY lab_id`
	return r.countsByLab(ctx, query, labIDs)
}

func (r *LabRepository) countsByLab(ctx context.Context, query string, labIDs []string) (map[string]int, error) {
	result := make(map[string]int, len(labIDs))
	if len(labIDs) == 0 {
		return result, nil
	}
	rows := []struct {
		LabID string `db:"lab_id"`
		Total int    `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(labIDs)); err != nil {
		return nil, fmt.Errorf("count by lab: %w", err)
	}
	for _, row := range rows {
		result[row.LabID] = row.Total
	}
	return result, nil
}

// UpdateRating recomputes the stored average from the reviews table so the
// directory never shows a stale aggregate after a new review lands.
func (r *LabRepository) UpdateRating(ctx context.Context, labID string) (float64, error) {
	const query = `UPDATE labs
	SET rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE lab_id = $1), 0),
		updated_at = $2
	WHERE id = $1
	RETURNING rating`
	var rating float64
	if err := r.db.GetContext(ctx, &rating, query, labID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("update lab rating: %w", err)
	}
	return rating, nil
}
