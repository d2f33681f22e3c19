package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-placement-api/internal/models"
)

// RosterRepository reads the student roster and applies the two mutators
// the engine is allowed to call: placement status and the dream-company
// usage flag. Academic fields are never written here.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

const studentColumns = `id, registration_number, full_name, cgpa, backlog_count, specialization,
        percentile_10, percentile_12, placement_status, dream_company_used, batch_year,
        placed_position_id, created_at, updated_at`

// List returns students filtered by the provided criteria.
func (r *RosterRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := `FROM students`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR registration_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.BatchYear > 0 {
		conditions = append(conditions, fmt.Sprintf("batch_year = $%d", len(args)+1))
		args = append(args, filter.BatchYear)
	}
	if filter.Specialization != "" {
		conditions = append(conditions, fmt.Sprintf("specialization = $%d", len(args)+1))
		args = append(args, filter.Specialization)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("placement_status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"registration_number": "registration_number",
		"full_name":           "full_name",
		"cgpa":                "cgpa",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "registration_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentColumns, base+clause, orderBy, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by id.
func (r *RosterRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByBatch returns the complete roster for a batch year.
func (r *RosterRepository) ListByBatch(ctx context.Context, batchYear int) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE batch_year = $1 ORDER BY registration_number`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, batchYear); err != nil {
		return nil, fmt.Errorf("list roster for batch %d: %w", batchYear, err)
	}
	return students, nil
}

// ListByIDs returns students for the given ids, in no particular order.
func (r *RosterRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = ANY($1)`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	return students, nil
}

// ListByRegistrationNumbers resolves registration numbers to students.
func (r *RosterRepository) ListByRegistrationNumbers(ctx context.Context, numbers []string) ([]models.Student, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM students WHERE registration_number = ANY($1)`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, pq.Array(numbers)); err != nil {
		return nil, fmt.Errorf("list students by registration numbers: %w", err)
	}
	return students, nil
}

// SetPlacementStatus updates a student's placement status and the position
// that produced it. positionID is nil when reverting to unplaced.
func (r *RosterRepository) SetPlacementStatus(ctx context.Context, studentID string, status models.PlacementStatus, positionID *string) error {
	const query = `UPDATE students SET placement_status = $2, placed_position_id = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, studentID, status, positionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set placement status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set placement status: student %s not found", studentID)
	}
	return nil
}

// SetDreamCompanyUsed flips the one-shot dream-company flag.
func (r *RosterRepository) SetDreamCompanyUsed(ctx context.Context, studentID string, used bool) error {
	const query = `UPDATE students SET dream_company_used = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, studentID, used, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set dream company used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set dream company used: student %s not found", studentID)
	}
	return nil
}
