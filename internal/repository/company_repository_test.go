package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-placement-api/internal/models"
)

func TestCompanyRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "batch_year", "min_cgpa", "max_backlogs", "allowed_specializations", "bond_required", "created_at"}).
		AddRow("acme", "Acme Corp", 2026, 7.0, -1, "{CSE,IT}", true, time.Now())
	mock.ExpectQuery("SELECT id, name, batch_year, min_cgpa").
		WithArgs("acme").
		WillReturnRows(rows)

	company, err := repo.FindByID(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", company.Name)

	criteria := company.Criteria()
	require.NotNil(t, criteria.MinCGPA)
	assert.Equal(t, 7.0, *criteria.MinCGPA)
	assert.Equal(t, models.UnlimitedBacklogs, criteria.MaxBacklogs)
	assert.Equal(t, []string{"CSE", "IT"}, criteria.AllowedSpecializations)
	assert.True(t, criteria.BondRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	mock.ExpectQuery("SELECT id, name, batch_year, min_cgpa").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryFindPositionByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCompanyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "company_id", "job_type", "title", "created_at"}).
		AddRow("pos-1", "acme", "internship", "SDE Intern", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, company_id, title, job_type, created_at FROM positions WHERE id = $1")).
		WithArgs("pos-1").
		WillReturnRows(rows)

	position, err := repo.FindPositionByID(context.Background(), "pos-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeInternship, position.JobType)
	assert.Equal(t, "acme", position.CompanyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
