package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dentalink/dentalink-api/internal/models"
)

// ClinicRepository provides database access for clinic profiles and
// favourite-lab bookmarks.
type ClinicRepository struct {
	db *sqlx.DB
}

// NewClinicRepository creates a new instance of ClinicRepository.
func NewClinicRepository(db *sqlx.DB) *ClinicRepository {
	return &ClinicRepository{db: db}
}

const clinicColumns = `id, user_id, name, phone, address, specialties, created_at, updated_at`

// FindByUserID returns the clinic profile owned by a user.
func (r *ClinicRepository) FindByUserID(ctx context.Context, userID string) (*models.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE user_id = $1 LIMIT 1`
	var clinic models.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find clinic by user: %w", err)
	}
	return &clinic, nil
}

// FindByID returns a clinic profile by identifier.
func (r *ClinicRepository) FindByID(ctx context.Context, id string) (*models.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1 LIMIT 1`
	var clinic models.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find clinic: %w", err)
	}
	return &clinic, nil
}

// FindByIDs returns clinics keyed by id for a set of identifiers.
func (r *ClinicRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Clinic, error) {
	result := make(map[string]models.Clinic, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = ANY($1)`
	clinics := []models.Clinic{}
	if err := r.db.SelectContext(ctx, &clinics, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find clinics by ids: %w", err)
	}
	for _, c := range clinics {
		result[c.ID] = c
	}
	return result, nil
}

// Update saves the mutable profile fields.
func (r *ClinicRepository) Update(ctx context.Context, clinic *models.Clinic) error {
	clinic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clinics
	SET name = :name, phone = :phone, address = :address, specialties = :specialties, updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, clinic); err != nil {
		return fmt.Errorf("update clinic: %w", err)
	}
	return nil
}

// AddFavorite bookmarks a lab for a clinic. Adding an existing bookmark is a
// no-op thanks to the unique constraint on (clinic_id, lab_id).
func (r *ClinicRepository) AddFavorite(ctx context.Context, clinicID, labID string) error {
	const query = `INSERT INTO favorite_labs (id, clinic_id, lab_id, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (clinic_id, lab_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), clinicID, labID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add favorite lab: %w", err)
	}
	return nil
}

// RemoveFavorite deletes a bookmark. Removing a bookmark that does not exist
// returns sql.ErrNoRows.
func (r *ClinicRepository) RemoveFavorite(ctx context.Context, clinicID, labID string) error {
	const query = `DELETE FROM favorite_labs WHERE clinic_id = $1 AND lab_id = $2`
	result, err := r.db.ExecContext(ctx, query, clinicID, labID)
	if err != nil {
		return fmt.Errorf("remove favorite lab: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove favorite lab rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListFavorites returns the labs a clinic has bookmarked, newest first.
func (r *ClinicRepository) ListFavorites(ctx context.Context, clinicID string) ([]models.FavoriteLabEntry, error) {
	const query = `SELECT l.id, l.user_id, l.name, l.services, l.specialties, l.turnaround_time,
		l.location, l.latitude, l.longitude, l.rating, l.logo, l.created_at, l.updated_at,
		f.created_at AS favorited_at
	FROM favorite_labs f
	JOIN labs l ON l.id = f.lab_id
	WHERE f.clinic_id = $1
	ORDER BY f.created_at DESC`
	labs := []models.FavoriteLabEntry{}
	if err := r.db.SelectContext(ctx, &labs, query, clinicID); err != nil {
		return nil, fmt.Errorf("list favorite labs: %w", err)
	}
	return labs, nil
}

// FavoriteLabIDs returns the set of lab ids a clinic has bookmarked.
func (r *ClinicRepository) FavoriteLabIDs(ctx context.Context, clinicID string) (map[string]bool, error) {
	ids := []string{}
	const query = `SELECT lab_id FROM favorite_labs WHERE clinic_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, clinicID); err != nil {
		return nil, fmt.Errorf("list favorite lab ids: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
