package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/models"
)

func newLabRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func labRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "services", "specialties", "turnaround_time", "location", "latitude", "longitude", "rating", "logo", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, "user-"+id, "Lab "+id, "{}", "{crowns}", 7, "Hanoi", nil, nil, 4.5, nil, time.Now(), time.Now())
	}
	return rows
}

func TestLabRepositoryListUnfiltered(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()
	repo := NewLabRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM labs ORDER BY rating DESC, name ASC")).
		WillReturnRows(labRows("a", "b"))

	labs, err := repo.List(context.Background(), models.LabFilter{})
	require.NoError(t, err)
	assert.Len(t, labs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLabRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()
	repo := NewLabRepository(db)

	turnaround := 5
	rating := 4.0
	mock.ExpectQuery(regexp.QuoteMeta("WHERE specialties && $1 AND turnaround_time <= $2 AND rating >= $3 AND location ILIKE $4 AND name ILIKE $5")).
		WithArgs(sqlmock.AnyArg(), 5, 4.0, "%Hanoi%", "%pro%").
		WillReturnRows(labRows("a"))

	labs, err := repo.List(context.Background(), models.LabFilter{
		Specialties:       []string{"crowns"},
		MaxTurnaroundTime: &turnaround,
		MinRating:         &rating,
		Location:          "Hanoi",
		Search:            "pro",
	})
	require.NoError(t, err)
	assert.Len(t, labs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLabRepositoryFindByIDsEmpty(t *testing.T) {
	db, _, cleanup := newLabRepoMock(t)
	defer cleanup()
	repo := NewLabRepository(db)

	result, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestLabRepositoryUpdateRating(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()
	repo := NewLabRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE labs")).
		WithArgs("lab-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(4.33))

	rating, err := repo.UpdateRating(context.Background(), "lab-1")
	require.NoError(t, err)
	assert.Equal(t, 4.33, rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLabRepositoryCompletedCaseCounts(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()
	repo := NewLabRepository(db)

	rows := sqlmock.NewRows([]string{"lab_id", "total"}).
		AddRow("lab-1", 8).
		AddRow("lab-2", 3)
	mock.ExpectQuery(regexp.QuoteMeta("FROM cases WHERE lab_id = ANY($1) AND status = 'DELIVERED' GROUP BY lab_id")).
		WillReturnRows(rows)

	counts, err := repo.CompletedCaseCounts(context.Background(), []string{"lab-1", "lab-2"})
	require.NoError(t, err)
	assert.Equal(t, 8, counts["lab-1"])
	assert.Equal(t, 3, counts["lab-2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
