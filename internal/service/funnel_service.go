package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

type roundRepository interface {
	MaxRoundNumber(ctx context.Context, positionID string) (int, error)
	Create(ctx context.Context, round *models.RoundEvent, universe []string) error
	FindByID(ctx context.Context, id string) (*models.RoundEvent, error)
	ListByPosition(ctx context.Context, positionID string) ([]models.RoundEvent, error)
	ListMembers(ctx context.Context, roundID string) ([]models.RoundMember, error)
	QualifiedIDs(ctx context.Context, roundID string) ([]string, error)
	Counts(ctx context.Context, roundID string) (*models.RoundCounts, error)
	AppliedCount(ctx context.Context, roundID string) (int, error)
	SetApplications(ctx context.Context, roundID string, version int, studentIDs []string) error
	SetAttendance(ctx context.Context, roundID string, version int, studentIDs []string, status models.RoundStatus) error
	SetResults(ctx context.Context, roundID string, version int, studentIDs []string, status models.RoundStatus) error
}

type positionReader interface {
	FindByID(ctx context.Context, id string) (*models.Company, error)
	FindPositionByID(ctx context.Context, id string) (*models.Position, error)
}

type snapshotReader interface {
	FindByCompanyBatch(ctx context.Context, companyID string, batchYear int) (*models.EligibilitySnapshot, error)
	ListEntries(ctx context.Context, snapshotID string) ([]models.SnapshotEntry, error)
}

// CreateRoundRequest describes round scheduling payload.
type CreateRoundRequest struct {
	RoundNumber int `json:"round_number" validate:"required,min=1"`
}

// MemberSetRequest carries a student id set for attendance, application or
// result recording.
type MemberSetRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required"`
}

// RecordResultsRequest is the result upload payload.
type RecordResultsRequest struct {
	StudentIDs []string          `json:"student_ids" validate:"required"`
	Mode       models.ResultMode `json:"mode" validate:"required,oneof=initial edit"`
}

// FunnelService enforces the strictly ordered recruitment funnel per
// position: rounds are created in sequence, each round's universe is
// frozen from its predecessor's qualified set, and only the latest
// completed round may ever be corrected.
type FunnelService struct {
	rounds    roundRepository
	positions positionReader
	snapshots snapshotReader
	reconcile *ReconcileService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFunnelService constructs FunnelService.
func NewFunnelService(rounds roundRepository, positions positionReader, snapshots snapshotReader, reconcile *ReconcileService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *FunnelService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FunnelService{rounds: rounds, positions: positions, snapshots: snapshots, reconcile: reconcile, cache: cache, validator: validate, logger: logger}
}

func funnelCacheKey(positionID string) string {
	return fmt.Sprintf("funnel:%s", positionID)
}

// CreateRound schedules the next round for a position. Round numbers are
// strictly sequential; round 1 consumes the snapshot's eligible set as its
// universe, round N the qualified set of round N-1. Creating round N+1
// permanently locks round N.
func (s *FunnelService) CreateRound(ctx context.Context, positionID string, req CreateRoundRequest) (*models.RoundSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
	}
	position, err := s.positions.FindPositionByID(ctx, positionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "position not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load position")
	}
	max, err := s.rounds.MaxRoundNumber(ctx, positionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve round order")
	}
	if req.RoundNumber != max+1 {
		return nil, appErrors.ErrOutOfOrder
	}

	universe, err := s.roundUniverse(ctx, position, req.RoundNumber)
	if err != nil {
		return nil, err
	}

	round := &models.RoundEvent{PositionID: positionID, RoundNumber: req.RoundNumber}
	if err := s.rounds.Create(ctx, round, universe); err != nil {
		return nil, err
	}

	s.invalidate(ctx, positionID)
	s.logger.Info("round created",
		zap.String("position_id", positionID),
		zap.Int("round_number", round.RoundNumber),
		zap.Int("universe_size", len(universe)),
	)
	return s.summary(ctx, round, true)
}

func (s *FunnelService) roundUniverse(ctx context.Context, position *models.Position, roundNumber int) ([]string, error) {
	if roundNumber == 1 {
		company, err := s.positions.FindByID(ctx, position.CompanyID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
		}
		snapshot, err := s.snapshots.FindByCompanyBatch(ctx, company.ID, company.BatchYear)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "eligibility snapshot not calculated for company")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
		}
		entries, err := s.snapshots.ListEntries(ctx, snapshot.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot entries")
		}
		var universe []string
		for _, entry := range entries {
			if entry.Status == models.EligibilityStatusEligible {
				universe = append(universe, entry.StudentID)
			}
		}
		return universe, nil
	}

	previous, err := s.findRound(ctx, position.ID, roundNumber-1)
	if err != nil {
		return nil, err
	}
	if previous.Status != models.RoundStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrOutOfOrder, "previous round has no recorded results")
	}
	qualified, err := s.rounds.QualifiedIDs(ctx, previous.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous qualified set")
	}
	return qualified, nil
}

func (s *FunnelService) findRound(ctx context.Context, positionID string, roundNumber int) (*models.RoundEvent, error) {
	rounds, err := s.rounds.ListByPosition(ctx, positionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rounds")
	}
	for i := range rounds {
		if rounds[i].RoundNumber == roundNumber {
			return &rounds[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "round not found")
}

// ListRounds returns the position's funnel with derived counts, oldest
// round first.
func (s *FunnelService) ListRounds(ctx context.Context, positionID string) ([]models.RoundSummary, error) {
	key := funnelCacheKey(positionID)
	var cached []models.RoundSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	rounds, err := s.rounds.ListByPosition(ctx, positionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rounds")
	}
	var maxRound int
	for _, round := range rounds {
		if round.RoundNumber > maxRound {
			maxRound = round.RoundNumber
		}
	}
	summaries := make([]models.RoundSummary, 0, len(rounds))
	for i := range rounds {
		summary, err := s.summary(ctx, &rounds[i], rounds[i].RoundNumber == maxRound)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	_ = s.cache.Set(ctx, key, summaries, 0)
	return summaries, nil
}

func (s *FunnelService) summary(ctx context.Context, round *models.RoundEvent, isLatest bool) (*models.RoundSummary, error) {
	counts, err := s.rounds.Counts(ctx, round.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive round counts")
	}
	if round.RoundNumber == 1 {
		applied, err := s.rounds.AppliedCount(ctx, round.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive applied count")
		}
		counts.AppliedCount = &applied
	}
	return &models.RoundSummary{
		RoundEvent:  *round,
		RoundCounts: *counts,
		Editable:    isLatest && round.Status == models.RoundStatusCompleted,
	}, nil
}

// RecordApplications marks who applied in round 1. Later rounds inherit
// their universe from the prior round's qualified set, so applications are
// meaningless past round 1.
func (s *FunnelService) RecordApplications(ctx context.Context, roundID string, req MemberSetRequest) (*models.RoundSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applications payload")
	}
	round, members, err := s.loadRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.RoundNumber != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "applications are only recorded for round 1")
	}
	if round.Status == models.RoundStatusCompleted {
		return nil, appErrors.ErrAlreadyFinalized
	}
	if err := requireSubset(req.StudentIDs, memberIDs(members), "applications outside round universe"); err != nil {
		return nil, err
	}
	if err := s.rounds.SetApplications(ctx, round.ID, round.Version, req.StudentIDs); err != nil {
		return nil, err
	}

	s.invalidate(ctx, round.PositionID)
	return s.refresh(ctx, round.ID)
}

// RecordAttendance replaces the round's attended set. Attendance marks the
// round ongoing; a completed round's attendance is frozen.
func (s *FunnelService) RecordAttendance(ctx context.Context, roundID string, req MemberSetRequest) (*models.RoundSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	round, members, err := s.loadRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status == models.RoundStatusCompleted {
		return nil, appErrors.ErrAlreadyFinalized
	}
	if err := requireSubset(req.StudentIDs, memberIDs(members), "attendance outside round universe"); err != nil {
		return nil, err
	}
	if err := s.rounds.SetAttendance(ctx, round.ID, round.Version, req.StudentIDs, models.RoundStatusOngoing); err != nil {
		return nil, err
	}

	s.invalidate(ctx, round.PositionID)
	return s.refresh(ctx, round.ID)
}

// RecordResults records or corrects the round's qualified set. Initial
// mode finalizes an open round; edit mode corrects the latest completed
// round and is refused the instant a later round exists. Both paths flow
// through the reconciler, which propagates placement consequences.
func (s *FunnelService) RecordResults(ctx context.Context, roundID string, req RecordResultsRequest) (*models.RoundSummary, *models.ResultDiff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid results payload")
	}
	round, members, err := s.loadRound(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}

	switch req.Mode {
	case models.ResultModeInitial:
		if round.Status == models.RoundStatusCompleted {
			return nil, nil, appErrors.ErrAlreadyFinalized
		}
	case models.ResultModeEdit:
		editable, err := s.isEditable(ctx, round)
		if err != nil {
			return nil, nil, err
		}
		if !editable {
			return nil, nil, appErrors.ErrEditLocked
		}
	}

	if err := requireSubset(req.StudentIDs, attendedIDs(members), "qualified ids outside attended set"); err != nil {
		return nil, nil, err
	}

	position, err := s.positions.FindPositionByID(ctx, round.PositionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "position not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load position")
	}

	previous := qualifiedMemberIDs(members)
	diff, err := s.reconcile.Diff(ctx, previous, req.StudentIDs, round.PositionID)
	if err != nil {
		return nil, nil, err
	}
	canonical := ApplyDiff(previous, diff)

	if err := s.rounds.SetResults(ctx, round.ID, round.Version, canonical, models.RoundStatusCompleted); err != nil {
		return nil, nil, err
	}
	if err := s.reconcile.ApplyPlacements(ctx, diff, position); err != nil {
		return nil, nil, err
	}

	s.invalidate(ctx, round.PositionID)
	s.logger.Info("round results recorded",
		zap.String("round_id", round.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("added", len(diff.Added)),
		zap.Int("removed", len(diff.Removed)),
	)
	summary, err := s.refresh(ctx, round.ID)
	if err != nil {
		return nil, nil, err
	}
	return summary, &diff, nil
}

// PreviewResults computes the diff a submission would produce without
// touching any state. Used to render the confirmation summary.
func (s *FunnelService) PreviewResults(ctx context.Context, roundID string, req MemberSetRequest) (*models.ResultDiff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid results payload")
	}
	round, members, err := s.loadRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireSubset(req.StudentIDs, attendedIDs(members), "qualified ids outside attended set"); err != nil {
		return nil, err
	}
	diff, err := s.reconcile.Diff(ctx, qualifiedMemberIDs(members), req.StudentIDs, round.PositionID)
	if err != nil {
		return nil, err
	}
	return &diff, nil
}

func (s *FunnelService) isEditable(ctx context.Context, round *models.RoundEvent) (bool, error) {
	if round.Status != models.RoundStatusCompleted {
		return false, nil
	}
	max, err := s.rounds.MaxRoundNumber(ctx, round.PositionID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve round order")
	}
	return round.RoundNumber == max, nil
}

func (s *FunnelService) loadRound(ctx context.Context, roundID string) (*models.RoundEvent, []models.RoundMember, error) {
	round, err := s.rounds.FindByID(ctx, roundID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load round")
	}
	members, err := s.rounds.ListMembers(ctx, roundID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load round members")
	}
	return round, members, nil
}

func (s *FunnelService) refresh(ctx context.Context, roundID string) (*models.RoundSummary, error) {
	round, err := s.rounds.FindByID(ctx, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload round")
	}
	max, err := s.rounds.MaxRoundNumber(ctx, round.PositionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve round order")
	}
	return s.summary(ctx, round, round.RoundNumber == max)
}

func (s *FunnelService) invalidate(ctx context.Context, positionID string) {
	if err := s.cache.Invalidate(ctx, funnelCacheKey(positionID)); err != nil {
		s.logger.Warn("funnel cache invalidation failed", zap.String("position_id", positionID), zap.Error(err))
	}
}

func memberIDs(members []models.RoundMember) map[string]struct{} {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m.StudentID] = struct{}{}
	}
	return set
}

func attendedIDs(members []models.RoundMember) map[string]struct{} {
	set := make(map[string]struct{})
	for _, m := range members {
		if m.Attended {
			set[m.StudentID] = struct{}{}
		}
	}
	return set
}

func qualifiedMemberIDs(members []models.RoundMember) []string {
	var ids []string
	for _, m := range members {
		if m.Qualified {
			ids = append(ids, m.StudentID)
		}
	}
	return ids
}

func requireSubset(ids []string, allowed map[string]struct{}, message string) error {
	for _, id := range ids {
		if _, ok := allowed[id]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: %s", message, id))
		}
	}
	return nil
}
