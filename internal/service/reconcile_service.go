package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
	"github.com/noah-isme/campus-placement-api/pkg/jobs"
)

// PlacementUpdateJobType labels placement propagation jobs on the queue.
const PlacementUpdateJobType = "placement_update"

// PlacementUpdate is the payload carried to the roster mutator when a
// result reconciliation changes a student's placement.
type PlacementUpdate struct {
	StudentID  string                 `json:"student_id"`
	Status     models.PlacementStatus `json:"status"`
	PositionID *string                `json:"position_id,omitempty"`
}

type rosterPlacementAccess interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Student, error)
	SetPlacementStatus(ctx context.Context, studentID string, status models.PlacementStatus, positionID *string) error
}

// ReconcileService computes qualified-set diffs and drives their placement
// side effects. A student removed from a qualified set is only reverted to
// unplaced when their placement was recorded through this very position;
// anyone placed through an independent position is surfaced for manual
// review instead of being guessed at.
type ReconcileService struct {
	roster rosterPlacementAccess
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewReconcileService constructs ReconcileService. The queue is optional;
// without one, placement updates are applied synchronously.
func NewReconcileService(roster rosterPlacementAccess, queue *jobs.Queue, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{roster: roster, queue: queue, logger: logger}
}

// Diff computes the change set between the recorded and submitted
// qualified sets and annotates removals that need manual review.
func (s *ReconcileService) Diff(ctx context.Context, previous, submitted []string, positionID string) (models.ResultDiff, error) {
	diff := DiffQualified(previous, submitted)
	if len(diff.Removed) == 0 {
		return diff, nil
	}
	removed, err := s.roster.ListByIDs(ctx, diff.Removed)
	if err != nil {
		return models.ResultDiff{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load removed students")
	}
	for _, student := range removed {
		if student.PlacementStatus != models.PlacementStatusPlaced {
			continue
		}
		if student.PlacedPositionID == nil || *student.PlacedPositionID != positionID {
			diff.ReviewRequired = append(diff.ReviewRequired, student.ID)
		}
	}
	return diff, nil
}

// ApplyPlacements propagates the diff's placement consequences for a
// placement-type position. Internship positions never change placement
// status. Updates are idempotent: re-running the same diff converges on
// the same roster state.
func (s *ReconcileService) ApplyPlacements(ctx context.Context, diff models.ResultDiff, position *models.Position) error {
	if position.JobType != models.JobTypePlacement {
		return nil
	}

	review := toSet(diff.ReviewRequired)
	positionID := position.ID

	for _, studentID := range diff.Added {
		if err := s.dispatch(ctx, PlacementUpdate{StudentID: studentID, Status: models.PlacementStatusPlaced, PositionID: &positionID}); err != nil {
			return err
		}
	}
	for _, studentID := range diff.Removed {
		if _, flagged := review[studentID]; flagged {
			continue
		}
		if err := s.dispatch(ctx, PlacementUpdate{StudentID: studentID, Status: models.PlacementStatusUnplaced}); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReconcileService) dispatch(ctx context.Context, update PlacementUpdate) error {
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: PlacementUpdateJobType, Payload: update})
		if err == nil {
			return nil
		}
		s.logger.Warn("placement update enqueue failed, applying inline",
			zap.String("student_id", update.StudentID),
			zap.Error(err),
		)
	}
	if err := s.roster.SetPlacementStatus(ctx, update.StudentID, update.Status, update.PositionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update placement status")
	}
	return nil
}

// ApplyPlacementUpdate is the queue handler counterpart of dispatch.
func (s *ReconcileService) ApplyPlacementUpdate(ctx context.Context, job jobs.Job) error {
	update, ok := job.Payload.(PlacementUpdate)
	if !ok {
		return appErrors.Clone(appErrors.ErrInternal, "unexpected placement job payload")
	}
	return s.roster.SetPlacementStatus(ctx, update.StudentID, update.Status, update.PositionID)
}
