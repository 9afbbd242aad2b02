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

// FileRepository provides database access for case attachments.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new instance of FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, case_id, filename, original_name, file_path, file_type, file_size, uploaded_at`

// Create inserts a file record.
func (r *FileRepository) Create(ctx context.Context, f *models.File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO files (id, case_id, filename, original_name, file_path, file_type, file_size, uploaded_at)
	VALUES (:id, :case_id, :filename, :original_name, :file_path, :file_type, :file_size, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID returns a file record by identifier.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 LIMIT 1`
	var f models.File
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &f, nil
}

// ListByCase returns all attachments of a case in upload order.
func (r *FileRepository) ListByCase(ctx context.Context, caseID string) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE case_id = $1 ORDER BY uploaded_at ASC`
	files := []models.File{}
	if err := r.db.SelectContext(ctx, &files, query, caseID); err != nil {
		return nil, fmt.Errorf("list case files: %w", err)
	}
	return files, nil
}

// ListByCaseIDs returns the attachments for a set of cases keyed by case id,
// so list endpoints can hydrate file summaries in a single query.
func (r *FileRepository) ListByCaseIDs(ctx context.Context, caseIDs []string) (map[string][]models.File, error) {
	result := make(map[string][]models.File, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files WHERE case_id = ANY($1) ORDER BY uploaded_at ASC`
	files := []models.File{}
	if err := r.db.SelectContext(ctx, &files, query, pq.Array(caseIDs)); err != nil {
		return nil, fmt.Errorf("list files by cases: %w", err)
	}
	for _, f := range files {
		result[f.CaseID] = append(result[f.CaseID], f)
	}
	return result, nil
}
