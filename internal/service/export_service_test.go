package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type exportCaseListsStub struct {
	clinicCases []models.Case
	labJobs     []models.Case
}

func (s exportCaseListsStub) ListByClinic(ctx context.Context, clinicID string) ([]models.Case, error) {
	return s.clinicCases, nil
}

func (s exportCaseListsStub) ListJobs(ctx context.Context, labID string) ([]models.Case, error) {
	return s.labJobs, nil
}

func newExportServiceForTest(lists exportCaseListsStub) *ExportService {
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	return NewExportService(lists, clinics, labs, nil)
}

func exportCases() []models.Case {
	return []models.Case{
		{
			ID: "case-1", Title: "Crown #14", ToothNumber: "14", Status: models.StatusDelivered,
			StatusHistory: models.StatusHistory{{Status: models.StatusAccepted}, {Status: models.StatusDelivered}},
			CreatedAt:     time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
			UpdatedAt:     time.Date(2025, 5, 9, 14, 0, 0, 0, time.UTC),
		},
		{
			ID: "case-2", Title: "Bridge, lower", ToothNumber: "31", Status: models.StatusNew,
			CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportServiceClinicCSV(t *testing.T) {
	svc := newExportServiceForTest(exportCaseListsStub{clinicCases: exportCases()})

	result, err := svc.Cases(context.Background(), clinicClaims("user-clinic"), ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Content)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "History Entries")
	assert.Contains(t, body, "case-1")
	assert.Contains(t, body, "DELIVERED")
	// A comma inside a field must stay quoted.
	assert.Contains(t, body, `"Bridge, lower"`)
}

func TestExportServiceLabPDF(t *testing.T) {
	svc := newExportServiceForTest(exportCaseListsStub{labJobs: exportCases()})

	result, err := svc.Cases(context.Background(), labClaims("user-lab"), ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	assert.True(t, len(result.Content) > 0)
	assert.Equal(t, "%PDF", string(result.Content[:4]))
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	svc := newExportServiceForTest(exportCaseListsStub{})

	_, err := svc.Cases(context.Background(), clinicClaims("user-clinic"), ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceMissingProfile(t *testing.T) {
	svc := newExportServiceForTest(exportCaseListsStub{})

	_, err := svc.Cases(context.Background(), clinicClaims("user-unknown"), ExportCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
