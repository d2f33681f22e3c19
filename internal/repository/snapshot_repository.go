package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// SnapshotRepository persists eligibility snapshots, their entry partition
// and the append-only override log. Mutations go through a version
// compare-and-swap so concurrent writers lose cleanly instead of clobbering
// each other.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type snapshotRow struct {
	ID        string    `db:"id"`
	CompanyID string    `db:"company_id"`
	BatchYear int       `db:"batch_year"`
	Criteria  []byte    `db:"criteria"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row *snapshotRow) toModel() (*models.EligibilitySnapshot, error) {
	snapshot := &models.EligibilitySnapshot{
		ID:        row.ID,
		CompanyID: row.CompanyID,
		BatchYear: row.BatchYear,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Criteria, &snapshot.Criteria); err != nil {
		return nil, fmt.Errorf("decode snapshot criteria: %w", err)
	}
	return snapshot, nil
}

// Create inserts a snapshot with its full entry partition in one
// transaction. The unique constraint on (company_id, batch_year) makes the
// calculate action first-writer-wins; losers get ErrAlreadyExists.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error {
	criteria, err := json.Marshal(snapshot.Criteria)
	if err != nil {
		return fmt.Errorf("encode snapshot criteria: %w", err)
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	snapshot.Version = 1
	snapshot.CreatedAt = now
	snapshot.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertSnapshot = `INSERT INTO eligibility_snapshots (id, company_id, batch_year, criteria, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertSnapshot, snapshot.ID, snapshot.CompanyID, snapshot.BatchYear, criteria, snapshot.Version, snapshot.CreatedAt, snapshot.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.ErrAlreadyExists
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := insertEntries(ctx, tx, snapshot.ID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot create: %w", err)
	}
	return nil
}

// Replace swaps the stored snapshot for (company, batch) with a freshly
// calculated one. Entries and the override log of the prior snapshot go
// with it; overrides were judged against criteria that may no longer hold.
func (r *SnapshotRepository) Replace(ctx context.Context, snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error {
	criteria, err := json.Marshal(snapshot.Criteria)
	if err != nil {
		return fmt.Errorf("encode snapshot criteria: %w", err)
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	snapshot.Version = 1
	snapshot.CreatedAt = now
	snapshot.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deletePrior = `DELETE FROM eligibility_snapshots WHERE company_id = $1 AND batch_year = $2`
	if _, err := tx.ExecContext(ctx, deletePrior, snapshot.CompanyID, snapshot.BatchYear); err != nil {
		return fmt.Errorf("delete prior snapshot: %w", err)
	}

	const insertSnapshot = `INSERT INTO eligibility_snapshots (id, company_id, batch_year, criteria, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertSnapshot, snapshot.ID, snapshot.CompanyID, snapshot.BatchYear, criteria, snapshot.Version, snapshot.CreatedAt, snapshot.UpdatedAt); err != nil {
		return fmt.Errorf("insert replacement snapshot: %w", err)
	}

	if err := insertEntries(ctx, tx, snapshot.ID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot replace: %w", err)
	}
	return nil
}

func insertEntries(ctx context.Context, tx *sqlx.Tx, snapshotID string, entries []models.SnapshotEntry) error {
	const insertEntry = `INSERT INTO snapshot_entries (snapshot_id, student_id, status, reason)
        VALUES (:snapshot_id, :student_id, :status, :reason)`
	for i := range entries {
		entries[i].SnapshotID = snapshotID
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := tx.NamedExecContext(ctx, insertEntry, entries); err != nil {
		return fmt.Errorf("insert snapshot entries: %w", err)
	}
	return nil
}

// FindByID returns a snapshot by id.
func (r *SnapshotRepository) FindByID(ctx context.Context, id string) (*models.EligibilitySnapshot, error) {
	const query = `SELECT id, company_id, batch_year, criteria, version, created_at, updated_at
        FROM eligibility_snapshots WHERE id = $1`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel()
}

// FindByCompanyBatch returns the snapshot for a (company, batch) pair.
func (r *SnapshotRepository) FindByCompanyBatch(ctx context.Context, companyID string, batchYear int) (*models.EligibilitySnapshot, error) {
	const query = `SELECT id, company_id, batch_year, criteria, version, created_at, updated_at
        FROM eligibility_snapshots WHERE company_id = $1 AND batch_year = $2`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, companyID, batchYear); err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListEntries returns the full partition for a snapshot.
func (r *SnapshotRepository) ListEntries(ctx context.Context, snapshotID string) ([]models.SnapshotEntry, error) {
	const query = `SELECT snapshot_id, student_id, status, reason FROM snapshot_entries
        WHERE snapshot_id = $1 ORDER BY student_id`
	var entries []models.SnapshotEntry
	if err := r.db.SelectContext(ctx, &entries, query, snapshotID); err != nil {
		return nil, fmt.Errorf("list snapshot entries: %w", err)
	}
	return entries, nil
}

// FindEntry returns one student's side of the partition.
func (r *SnapshotRepository) FindEntry(ctx context.Context, snapshotID, studentID string) (*models.SnapshotEntry, error) {
	const query = `SELECT snapshot_id, student_id, status, reason FROM snapshot_entries
        WHERE snapshot_id = $1 AND student_id = $2`
	var entry models.SnapshotEntry
	if err := r.db.GetContext(ctx, &entry, query, snapshotID, studentID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListOverrides returns the full override log, oldest first.
func (r *SnapshotRepository) ListOverrides(ctx context.Context, snapshotID string) ([]models.Override, error) {
	const query = `SELECT id, snapshot_id, student_id, kind, reason, prior_status, prior_reason, active, created_at
        FROM snapshot_overrides WHERE snapshot_id = $1 ORDER BY created_at, id`
	var overrides []models.Override
	if err := r.db.SelectContext(ctx, &overrides, query, snapshotID); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}

// FindActiveOverride returns the student's active override, if any.
func (r *SnapshotRepository) FindActiveOverride(ctx context.Context, snapshotID, studentID string) (*models.Override, error) {
	const query = `SELECT id, snapshot_id, student_id, kind, reason, prior_status, prior_reason, active, created_at
        FROM snapshot_overrides WHERE snapshot_id = $1 AND student_id = $2 AND active ORDER BY created_at DESC LIMIT 1`
	var override models.Override
	if err := r.db.GetContext(ctx, &override, query, snapshotID, studentID); err != nil {
		return nil, err
	}
	return &override, nil
}

// ApplyOverride appends an override record and moves the student's entry to
// eligible, guarded by the snapshot version. A zero-row version bump means
// another writer got there first.
func (r *SnapshotRepository) ApplyOverride(ctx context.Context, snapshotID string, version int, override *models.Override) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	override.SnapshotID = snapshotID
	override.Active = true
	override.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin override apply: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := bumpSnapshotVersion(ctx, tx, snapshotID, version); err != nil {
		return err
	}

	const deactivatePrior = `UPDATE snapshot_overrides SET active = FALSE WHERE snapshot_id = $1 AND student_id = $2 AND active`
	if _, err := tx.ExecContext(ctx, deactivatePrior, snapshotID, override.StudentID); err != nil {
		return fmt.Errorf("supersede prior override: %w", err)
	}

	const insertOverride = `INSERT INTO snapshot_overrides (id, snapshot_id, student_id, kind, reason, prior_status, prior_reason, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, insertOverride, override.ID, override.SnapshotID, override.StudentID, override.Kind, override.Reason, override.PriorStatus, override.PriorReason, override.Active, override.CreatedAt); err != nil {
		return fmt.Errorf("insert override: %w", err)
	}

	const moveEntry = `UPDATE snapshot_entries SET status = $3, reason = '' WHERE snapshot_id = $1 AND student_id = $2`
	if _, err := tx.ExecContext(ctx, moveEntry, snapshotID, override.StudentID, models.EligibilityStatusEligible); err != nil {
		return fmt.Errorf("move entry to eligible: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit override apply: %w", err)
	}
	return nil
}

// RevertOverride deactivates the student's active override and restores the
// entry to the verdict recorded at apply time. The log keeps the
// deactivated row; history is superseded, never deleted.
func (r *SnapshotRepository) RevertOverride(ctx context.Context, snapshotID string, version int, override *models.Override) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin override revert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := bumpSnapshotVersion(ctx, tx, snapshotID, version); err != nil {
		return err
	}

	const deactivate = `UPDATE snapshot_overrides SET active = FALSE WHERE id = $1 AND active`
	res, err := tx.ExecContext(ctx, deactivate, override.ID)
	if err != nil {
		return fmt.Errorf("deactivate override: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.ErrConcurrentModification
	}

	const moveEntry = `UPDATE snapshot_entries SET status = $3, reason = $4 WHERE snapshot_id = $1 AND student_id = $2`
	if _, err := tx.ExecContext(ctx, moveEntry, snapshotID, override.StudentID, override.PriorStatus, override.PriorReason); err != nil {
		return fmt.Errorf("restore entry verdict: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit override revert: %w", err)
	}
	return nil
}

func bumpSnapshotVersion(ctx context.Context, tx *sqlx.Tx, snapshotID string, version int) error {
	const bump = `UPDATE eligibility_snapshots SET version = version + 1, updated_at = $3 WHERE id = $1 AND version = $2`
	res, err := tx.ExecContext(ctx, bump, snapshotID, version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bump snapshot version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump snapshot version: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM eligibility_snapshots WHERE id = $1)`, snapshotID); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("check snapshot existence: %w", err)
		}
		if !exists {
			return appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return appErrors.ErrConcurrentModification
	}
	return nil
}
