package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

// RoundRepository persists round events and their frozen member universes.
// Funnel counts are always derived from member rows on read; only the
// universe itself is fixed at creation.
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository constructs the repository.
func NewRoundRepository(db *sqlx.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// MaxRoundNumber returns the highest round number for a position, 0 when
// no round exists yet.
func (r *RoundRepository) MaxRoundNumber(ctx context.Context, positionID string) (int, error) {
	const query = `SELECT COALESCE(MAX(round_number), 0) FROM round_events WHERE position_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, positionID); err != nil {
		return 0, fmt.Errorf("max round number: %w", err)
	}
	return max, nil
}

// Create inserts a round with its universe frozen into member rows. The
// unique constraint on (position_id, round_number) rejects a concurrent
// creator of the same round.
func (r *RoundRepository) Create(ctx context.Context, round *models.RoundEvent, universe []string) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	round.Status = models.RoundStatusUpcoming
	round.Version = 1
	round.CreatedAt = now
	round.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRound = `INSERT INTO round_events (id, position_id, round_number, status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertRound, round.ID, round.PositionID, round.RoundNumber, round.Status, round.Version, round.CreatedAt, round.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.ErrOutOfOrder
		}
		return fmt.Errorf("insert round: %w", err)
	}

	if len(universe) > 0 {
		members := make([]models.RoundMember, 0, len(universe))
		for _, studentID := range universe {
			members = append(members, models.RoundMember{RoundID: round.ID, StudentID: studentID})
		}
		const insertMember = `INSERT INTO round_members (round_id, student_id, applied, attended, qualified)
            VALUES (:round_id, :student_id, :applied, :attended, :qualified)`
		if _, err := tx.NamedExecContext(ctx, insertMember, members); err != nil {
			return fmt.Errorf("insert round members: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round create: %w", err)
	}
	return nil
}

// FindByID returns a round by id.
func (r *RoundRepository) FindByID(ctx context.Context, id string) (*models.RoundEvent, error) {
	const query = `SELECT id, position_id, round_number, status, version, created_at, updated_at
        FROM round_events WHERE id = $1`
	var round models.RoundEvent
	if err := r.db.GetContext(ctx, &round, query, id); err != nil {
		return nil, err
	}
	return &round, nil
}

// ListByPosition returns a position's rounds ordered by round number.
func (r *RoundRepository) ListByPosition(ctx context.Context, positionID string) ([]models.RoundEvent, error) {
	const query = `SELECT id, position_id, round_number, status, version, created_at, updated_at
        FROM round_events WHERE position_id = $1 ORDER BY round_number`
	var rounds []models.RoundEvent
	if err := r.db.SelectContext(ctx, &rounds, query, positionID); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return rounds, nil
}

// ListMembers returns a round's member rows.
func (r *RoundRepository) ListMembers(ctx context.Context, roundID string) ([]models.RoundMember, error) {
	const query = `SELECT round_id, student_id, applied, attended, qualified FROM round_members
        WHERE round_id = $1 ORDER BY student_id`
	var members []models.RoundMember
	if err := r.db.SelectContext(ctx, &members, query, roundID); err != nil {
		return nil, fmt.Errorf("list round members: %w", err)
	}
	return members, nil
}

// QualifiedIDs returns the canonical qualified set of a round.
func (r *RoundRepository) QualifiedIDs(ctx context.Context, roundID string) ([]string, error) {
	const query = `SELECT student_id FROM round_members WHERE round_id = $1 AND qualified ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, roundID); err != nil {
		return nil, fmt.Errorf("list qualified ids: %w", err)
	}
	return ids, nil
}

// Counts derives the funnel numbers for a round from its member rows.
func (r *RoundRepository) Counts(ctx context.Context, roundID string) (*models.RoundCounts, error) {
	const query = `SELECT COUNT(*) AS eligible_count,
        COUNT(*) FILTER (WHERE attended) AS attended_count,
        COUNT(*) FILTER (WHERE qualified) AS qualified_count
        FROM round_members WHERE round_id = $1`
	var counts models.RoundCounts
	if err := r.db.GetContext(ctx, &counts, query, roundID); err != nil {
		return nil, fmt.Errorf("derive round counts: %w", err)
	}
	return &counts, nil
}

// AppliedCount derives the application tally, meaningful for round 1 only.
func (r *RoundRepository) AppliedCount(ctx context.Context, roundID string) (int, error) {
	const query = `SELECT COUNT(*) FROM round_members WHERE round_id = $1 AND applied`
	var count int
	if err := r.db.GetContext(ctx, &count, query, roundID); err != nil {
		return 0, fmt.Errorf("derive applied count: %w", err)
	}
	return count, nil
}

// SetApplications marks the applied flag for the given members.
func (r *RoundRepository) SetApplications(ctx context.Context, roundID string, version int, studentIDs []string) error {
	return r.updateMembers(ctx, roundID, version, "applied", studentIDs, nil)
}

// SetAttendance replaces the attended set and moves the round to the given
// status.
func (r *RoundRepository) SetAttendance(ctx context.Context, roundID string, version int, studentIDs []string, status models.RoundStatus) error {
	return r.updateMembers(ctx, roundID, version, "attended", studentIDs, &status)
}

// SetResults replaces the qualified set and moves the round to the given
// status. The flag update is a full overwrite, so re-applying an identical
// set is a no-op beyond the version bump.
func (r *RoundRepository) SetResults(ctx context.Context, roundID string, version int, studentIDs []string, status models.RoundStatus) error {
	return r.updateMembers(ctx, roundID, version, "qualified", studentIDs, &status)
}

func (r *RoundRepository) updateMembers(ctx context.Context, roundID string, version int, column string, studentIDs []string, status *models.RoundStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := bumpRoundVersion(ctx, tx, roundID, version, status); err != nil {
		return err
	}

	reset := fmt.Sprintf(`UPDATE round_members SET %s = FALSE WHERE round_id = $1`, column)
	if _, err := tx.ExecContext(ctx, reset, roundID); err != nil {
		return fmt.Errorf("reset %s flags: %w", column, err)
	}
	if len(studentIDs) > 0 {
		mark := fmt.Sprintf(`UPDATE round_members SET %s = TRUE WHERE round_id = $1 AND student_id = ANY($2)`, column)
		if _, err := tx.ExecContext(ctx, mark, roundID, pq.Array(studentIDs)); err != nil {
			return fmt.Errorf("mark %s flags: %w", column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round update: %w", err)
	}
	return nil
}

func bumpRoundVersion(ctx context.Context, tx *sqlx.Tx, roundID string, version int, status *models.RoundStatus) error {
	var res sql.Result
	var err error
	if status != nil {
		const bump = `UPDATE round_events SET version = version + 1, status = $3, updated_at = $4 WHERE id = $1 AND version = $2`
		res, err = tx.ExecContext(ctx, bump, roundID, version, *status, time.Now().UTC())
	} else {
		const bump = `UPDATE round_events SET version = version + 1, updated_at = $3 WHERE id = $1 AND version = $2`
		res, err = tx.ExecContext(ctx, bump, roundID, version, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("bump round version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump round version: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM round_events WHERE id = $1)`, roundID); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("check round existence: %w", err)
		}
		if !exists {
			return appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return appErrors.ErrConcurrentModification
	}
	return nil
}
