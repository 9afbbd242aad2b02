package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/models"
)

func newCaseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func caseRows(id, status string, labID interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "case_notes", "tooth_number", "status", "status_history", "clinic_id", "lab_id", "created_at", "updated_at"}).
		AddRow(id, "Crown #14", nil, "14", status, []byte(`[]`), "clinic-1", labID, time.Now(), time.Now())
}

func TestCaseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectExec("INSERT INTO cases").
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := &models.Case{Title: "Crown #14", ToothNumber: "14", ClinicID: "clinic-1"}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.StatusNew, c.Status)
	assert.NotNil(t, c.StatusHistory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryClaimFromPoolWins(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery(`UPDATE cases\s+SET lab_id = \$2, status = \$3`).
		WithArgs("case-1", "lab-1", models.StatusAccepted, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(caseRows("case-1", "ACCEPTED", "lab-1"))

	change := models.StatusChange{Status: models.StatusAccepted, Timestamp: time.Now().UTC(), UpdatedBy: "lab-1"}
	c, err := repo.ClaimFromPool(context.Background(), "case-1", "lab-1", models.StatusAccepted, change)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryClaimFromPoolLost(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	// Another lab already matched lab_id IS NULL; zero rows come back.
	mock.ExpectQuery(`UPDATE cases\s+SET lab_id = \$2, status = \$3`).
		WithArgs("case-1", "lab-2", models.StatusAccepted, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	change := models.StatusChange{Status: models.StatusAccepted, Timestamp: time.Now().UTC(), UpdatedBy: "lab-2"}
	_, err := repo.ClaimFromPool(context.Background(), "case-1", "lab-2", models.StatusAccepted, change)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryDecideTargeted(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery(`UPDATE cases\s+SET status = \$3`).
		WithArgs("case-1", "lab-1", models.StatusRejected, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(caseRows("case-1", "REJECTED", "lab-1"))

	change := models.StatusChange{Status: models.StatusRejected, Timestamp: time.Now().UTC(), UpdatedBy: "lab-1"}
	c, err := repo.DecideTargeted(context.Background(), "case-1", "lab-1", models.StatusRejected, change)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryAdvanceStatus(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery(`UPDATE cases\s+SET status = \$3`).
		WithArgs("case-1", models.StatusAccepted, models.StatusDesigning, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(caseRows("case-1", "DESIGNING", "lab-1"))

	change := models.StatusChange{Status: models.StatusDesigning, Timestamp: time.Now().UTC(), UpdatedBy: "lab-1"}
	c, err := repo.AdvanceStatus(context.Background(), "case-1", models.StatusAccepted, models.StatusDesigning, change)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDesigning, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryAdvanceStatusRace(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery(`UPDATE cases\s+SET status = \$3`).
		WithArgs("case-1", models.StatusAccepted, models.StatusDesigning, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	change := models.StatusChange{Status: models.StatusDesigning, Timestamp: time.Now().UTC(), UpdatedBy: "lab-1"}
	_, err := repo.AdvanceStatus(context.Background(), "case-1", models.StatusAccepted, models.StatusDesigning, change)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryCancelWindow(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery(`UPDATE cases\s+SET status = 'CANCELLED'`).
		WithArgs("case-1", "clinic-1", sqlmock.AnyArg()).
		WillReturnRows(caseRows("case-1", "CANCELLED", nil))

	c, err := repo.Cancel(context.Background(), "case-1", "clinic-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, c.Status)

	mock.ExpectQuery(`UPDATE cases\s+SET status = 'CANCELLED'`).
		WithArgs("case-1", "clinic-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Cancel(context.Background(), "case-1", "clinic-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryListIncoming(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	rows := caseRows("case-1", "NEW", "lab-1").
		AddRow("case-2", "Bridge #21", nil, "21", "NEW", []byte(`[]`), "clinic-2", nil, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .* FROM cases\s+WHERE status = 'NEW' AND \(lab_id = \$1 OR lab_id IS NULL\)`).
		WithArgs("lab-1").
		WillReturnRows(rows)

	list, err := repo.ListIncoming(context.Background(), "lab-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryCountByClinicStatus(t *testing.T) {
	db, mock, cleanup := newCaseRepoMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("NEW", 2).
		AddRow("DELIVERED", 5)
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS total FROM cases WHERE clinic_id = \$1 GROUP BY status`).
		WithArgs("clinic-1").
		WillReturnRows(rows)

	counts, err := repo.CountByClinicStatus(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.StatusNew])
	assert.Equal(t, 5, counts[models.StatusDelivered])
	assert.NoError(t, mock.ExpectationsWereMet())
}
