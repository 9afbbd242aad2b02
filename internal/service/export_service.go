package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
	"github.com/dentalink/dentalink-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type exportCaseLists interface {
	ListByClinic(ctx context.Context, clinicID string) ([]models.Case, error)
	ListJobs(ctx context.Context, labID string) ([]models.Case, error)
}

// ExportService renders a clinic's case register or a lab's job register as
// CSV or PDF.
type ExportService struct {
	cases   exportCaseLists
	clinics caseClinicStore
	labs    caseLabStore
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(cases exportCaseLists, clinics caseClinicStore, labs caseLabStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		cases:   cases,
		clinics: clinics,
		labs:    labs,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// ExportResult carries the rendered document and serving metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Cases renders the caller's case register. Clinics export their submitted
// cases, labs their bound jobs.
func (s *ExportService) Cases(ctx context.Context, claims *models.JWTClaims, format ExportFormat) (*ExportResult, error) {
	var (
		cases []models.Case
		title string
		err   error
	)

	switch claims.Role {
	case models.RoleClinic:
		clinic, clinicErr := s.clinics.FindByUserID(ctx, claims.UserID)
		if clinicErr != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinic profile not found")
		}
		cases, err = s.cases.ListByClinic(ctx, clinic.ID)
		title = fmt.Sprintf("Case Register - %s", clinic.Name)
	case models.RoleLab:
		lab, labErr := s.labs.FindByUserID(ctx, claims.UserID)
		if labErr != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab profile not found")
		}
		cases, err = s.cases.ListJobs(ctx, lab.ID)
		title = fmt.Sprintf("Job Register - %s", lab.Name)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cases")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Tooth", "Status", "Created", "Updated", "History Entries"},
	}
	for _, c := range cases {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":              c.ID,
			"Title":           c.Title,
			"Tooth":           c.ToothNumber,
			"Status":          string(c.Status),
			"Created":         c.CreatedAt.UTC().Format(time.RFC3339),
			"Updated":         c.UpdatedAt.UTC().Format(time.RFC3339),
			"History Entries": strconv.Itoa(len(c.StatusHistory)),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case ExportCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("cases-%s.csv", stamp),
		}, nil
	case ExportPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("cases-%s.pdf", stamp),
		}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
}
