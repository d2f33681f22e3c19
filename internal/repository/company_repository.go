package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-placement-api/internal/models"
)

// CompanyRepository reads companies and positions. Both are owned by the
// dashboard's CRUD layer; the engine only consumes criteria and position
// metadata from here.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository constructs the repository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// FindByID returns a company with its criteria columns.
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*models.Company, error) {
	const query = `SELECT id, name, batch_year, min_cgpa, max_backlogs, allowed_specializations, bond_required, created_at
        FROM companies WHERE id = $1`
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, err
	}
	return &company, nil
}

// FindPositionByID returns a position by id.
func (r *CompanyRepository) FindPositionByID(ctx context.Context, id string) (*models.Position, error) {
	const query = `SELECT id, company_id, title, job_type, created_at FROM positions WHERE id = $1`
	var position models.Position
	if err := r.db.GetContext(ctx, &position, query, id); err != nil {
		return nil, err
	}
	return &position, nil
}
