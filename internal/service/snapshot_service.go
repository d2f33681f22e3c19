package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

type snapshotRepository interface {
	Create(ctx context.Context, snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error
	Replace(ctx context.Context, snapshot *models.EligibilitySnapshot, entries []models.SnapshotEntry) error
	FindByID(ctx context.Context, id string) (*models.EligibilitySnapshot, error)
	FindByCompanyBatch(ctx context.Context, companyID string, batchYear int) (*models.EligibilitySnapshot, error)
	ListEntries(ctx context.Context, snapshotID string) ([]models.SnapshotEntry, error)
	FindEntry(ctx context.Context, snapshotID, studentID string) (*models.SnapshotEntry, error)
	ListOverrides(ctx context.Context, snapshotID string) ([]models.Override, error)
	FindActiveOverride(ctx context.Context, snapshotID, studentID string) (*models.Override, error)
	ApplyOverride(ctx context.Context, snapshotID string, version int, override *models.Override) error
	RevertOverride(ctx context.Context, snapshotID string, version int, override *models.Override) error
}

type rosterAccess interface {
	ListByBatch(ctx context.Context, batchYear int) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	SetDreamCompanyUsed(ctx context.Context, studentID string, used bool) error
}

type companyReader interface {
	FindByID(ctx context.Context, id string) (*models.Company, error)
}

// SnapshotService owns the eligibility snapshot lifecycle: the one-time
// calculate action, explicit replacement, and the two sanctioned override
// paths with their inverse.
type SnapshotService struct {
	repo    snapshotRepository
	roster  rosterAccess
	company companyReader
	cache   *CacheService
	logger  *zap.Logger
}

// NewSnapshotService constructs SnapshotService.
func NewSnapshotService(repo snapshotRepository, roster rosterAccess, company companyReader, cache *CacheService, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{repo: repo, roster: roster, company: company, cache: cache, logger: logger}
}

func snapshotCacheKey(companyID string, batchYear int) string {
	return fmt.Sprintf("snapshot:%s:%d", companyID, batchYear)
}

// Calculate evaluates the batch roster against the company's criteria and
// persists the resulting partition. It is a one-time action per
// (company, batch): a second call fails with AlreadyExists rather than
// silently overwriting.
func (s *SnapshotService) Calculate(ctx context.Context, companyID string, batchYear int) (*models.SnapshotDetail, error) {
	return s.calculate(ctx, companyID, batchYear, false)
}

// Replace recalculates the snapshot, discarding the previous partition and
// its override log. Recalculation is always explicit.
func (s *SnapshotService) Replace(ctx context.Context, companyID string, batchYear int) (*models.SnapshotDetail, error) {
	return s.calculate(ctx, companyID, batchYear, true)
}

func (s *SnapshotService) calculate(ctx context.Context, companyID string, batchYear int, replace bool) (*models.SnapshotDetail, error) {
	if batchYear <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch year must be positive")
	}
	company, err := s.company.FindByID(ctx, companyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	roster, err := s.roster.ListByBatch(ctx, batchYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	criteria := company.Criteria()
	entries := make([]models.SnapshotEntry, 0, len(roster))
	for _, student := range roster {
		eligible, reason := Evaluate(student, criteria)
		status := models.EligibilityStatusEligible
		if !eligible {
			status = models.EligibilityStatusIneligible
		}
		entries = append(entries, models.SnapshotEntry{StudentID: student.ID, Status: status, Reason: reason})
	}

	snapshot := &models.EligibilitySnapshot{CompanyID: companyID, BatchYear: batchYear, Criteria: criteria}
	if replace {
		err = s.repo.Replace(ctx, snapshot, entries)
	} else {
		err = s.repo.Create(ctx, snapshot, entries)
	}
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrAlreadyExists.Code {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist snapshot")
	}

	s.invalidate(ctx, companyID, batchYear)
	s.logger.Info("snapshot calculated",
		zap.String("company_id", companyID),
		zap.Int("batch_year", batchYear),
		zap.Int("roster_size", len(entries)),
		zap.Bool("replace", replace),
	)
	return s.detail(ctx, snapshot)
}

// Get returns the snapshot for a (company, batch) pair with its partition,
// override log and derived counts.
func (s *SnapshotService) Get(ctx context.Context, companyID string, batchYear int) (*models.SnapshotDetail, error) {
	key := snapshotCacheKey(companyID, batchYear)
	var cached models.SnapshotDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	snapshot, err := s.repo.FindByCompanyBatch(ctx, companyID, batchYear)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	detail, err := s.detail(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, detail, 0)
	return detail, nil
}

// GetByID returns the snapshot detail by snapshot id.
func (s *SnapshotService) GetByID(ctx context.Context, snapshotID string) (*models.SnapshotDetail, error) {
	snapshot, err := s.repo.FindByID(ctx, snapshotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	return s.detail(ctx, snapshot)
}

func (s *SnapshotService) detail(ctx context.Context, snapshot *models.EligibilitySnapshot) (*models.SnapshotDetail, error) {
	entries, err := s.repo.ListEntries(ctx, snapshot.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot entries")
	}
	overrides, err := s.repo.ListOverrides(ctx, snapshot.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load override log")
	}
	detail := &models.SnapshotDetail{EligibilitySnapshot: *snapshot, Entries: entries, Overrides: overrides}
	for _, entry := range entries {
		if entry.Status == models.EligibilityStatusEligible {
			detail.EligibleCount++
		} else {
			detail.IneligibleCount++
		}
	}
	return detail, nil
}

// ApplyDreamCompanyOverride re-admits a placed student to the eligible set,
// consuming their single dream-company use. Preconditions, in order:
// the student is currently ineligible, is placed, and has not used the
// privilege yet.
func (s *SnapshotService) ApplyDreamCompanyOverride(ctx context.Context, snapshotID, studentID string) (*models.SnapshotDetail, error) {
	snapshot, entry, err := s.loadForOverride(ctx, snapshotID, studentID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EligibilityStatusIneligible {
		return nil, appErrors.ErrNotIneligible
	}
	student, err := s.roster.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.PlacementStatus != models.PlacementStatusPlaced {
		return nil, appErrors.ErrNotPlaced
	}
	if student.DreamCompanyUsed {
		return nil, appErrors.ErrAlreadyUsed
	}

	override := &models.Override{
		StudentID:   studentID,
		Kind:        models.OverrideKindDreamCompany,
		PriorStatus: entry.Status,
		PriorReason: entry.Reason,
	}
	if err := s.repo.ApplyOverride(ctx, snapshot.ID, snapshot.Version, override); err != nil {
		return nil, err
	}
	if err := s.roster.SetDreamCompanyUsed(ctx, studentID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag dream company use")
	}

	s.invalidate(ctx, snapshot.CompanyID, snapshot.BatchYear)
	s.logger.Info("dream company override applied",
		zap.String("snapshot_id", snapshot.ID),
		zap.String("student_id", studentID),
	)
	return s.GetByID(ctx, snapshot.ID)
}

// ApplyManualOverride admits a student by administrator decision. A
// non-blank reason is mandatory; there is no eligibility precondition, and
// an already-eligible student still gets an audit record appended.
func (s *SnapshotService) ApplyManualOverride(ctx context.Context, snapshotID, studentID, reason string) (*models.SnapshotDetail, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "override reason is required")
	}
	snapshot, entry, err := s.loadForOverride(ctx, snapshotID, studentID)
	if err != nil {
		return nil, err
	}

	override := &models.Override{
		StudentID:   studentID,
		Kind:        models.OverrideKindManual,
		Reason:      reason,
		PriorStatus: entry.Status,
		PriorReason: entry.Reason,
	}
	if err := s.repo.ApplyOverride(ctx, snapshot.ID, snapshot.Version, override); err != nil {
		return nil, err
	}

	s.invalidate(ctx, snapshot.CompanyID, snapshot.BatchYear)
	s.logger.Info("manual override applied",
		zap.String("snapshot_id", snapshot.ID),
		zap.String("student_id", studentID),
	)
	return s.GetByID(ctx, snapshot.ID)
}

// RemoveOverride reverses the student's active override, restoring the
// verdict recorded at apply time. For a dream-company override the usage
// flag is cleared again. Automatic eligibility has nothing to remove.
func (s *SnapshotService) RemoveOverride(ctx context.Context, snapshotID, studentID string) (*models.SnapshotDetail, error) {
	snapshot, err := s.repo.FindByID(ctx, snapshotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	override, err := s.repo.FindActiveOverride(ctx, snapshot.ID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActiveOverride
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load override")
	}

	if err := s.repo.RevertOverride(ctx, snapshot.ID, snapshot.Version, override); err != nil {
		return nil, err
	}
	if override.Kind == models.OverrideKindDreamCompany {
		if err := s.roster.SetDreamCompanyUsed(ctx, studentID, false); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore dream company flag")
		}
	}

	s.invalidate(ctx, snapshot.CompanyID, snapshot.BatchYear)
	s.logger.Info("override removed",
		zap.String("snapshot_id", snapshot.ID),
		zap.String("student_id", studentID),
		zap.String("kind", string(override.Kind)),
	)
	return s.GetByID(ctx, snapshot.ID)
}

func (s *SnapshotService) loadForOverride(ctx context.Context, snapshotID, studentID string) (*models.EligibilitySnapshot, *models.SnapshotEntry, error) {
	snapshot, err := s.repo.FindByID(ctx, snapshotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	entry, err := s.repo.FindEntry(ctx, snapshot.ID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not in snapshot roster")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot entry")
	}
	return snapshot, entry, nil
}

func (s *SnapshotService) invalidate(ctx context.Context, companyID string, batchYear int) {
	if err := s.cache.Invalidate(ctx, snapshotCacheKey(companyID, batchYear)); err != nil {
		s.logger.Warn("snapshot cache invalidation failed",
			zap.String("company_id", companyID),
			zap.Int("batch_year", batchYear),
			zap.Error(err),
		)
	}
}
