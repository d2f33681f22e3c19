package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

type rosterRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByRegistrationNumbers(ctx context.Context, numbers []string) ([]models.Student, error)
	SetPlacementStatus(ctx context.Context, studentID string, status models.PlacementStatus, positionID *string) error
}

// UpdatePlacementRequest is the external resolution surface for placement
// status, used when a review_required case is settled by hand.
type UpdatePlacementRequest struct {
	Status     models.PlacementStatus `json:"status" validate:"required,oneof=unplaced placed"`
	PositionID *string                `json:"position_id,omitempty"`
}

// ExtractRegistrationsRequest carries raw registration number text.
type ExtractRegistrationsRequest struct {
	Raw string `json:"raw" validate:"required"`
}

// RosterService serves the read-only roster views and the placement
// mutator the engine exposes on behalf of the roster collaborator.
type RosterService struct {
	repo      rosterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(repo rosterRepository, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *RosterService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a student by id.
func (s *RosterService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// UpdatePlacement applies an externally resolved placement decision.
func (s *RosterService) UpdatePlacement(ctx context.Context, id string, req UpdatePlacementRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid placement payload")
	}
	if req.Status == models.PlacementStatusUnplaced && req.PositionID != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unplaced status cannot carry a position")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetPlacementStatus(ctx, id, req.Status, req.PositionID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update placement status")
	}
	s.logger.Info("placement status updated", zap.String("student_id", id), zap.String("status", string(req.Status)))
	return s.Get(ctx, id)
}

// ExtractRegistrations resolves newline or comma separated registration
// numbers against the roster. Unknown numbers are reported, not rejected:
// bulk uploads routinely contain strays.
func (s *RosterService) ExtractRegistrations(ctx context.Context, req ExtractRegistrationsRequest) (*models.RegistrationExtract, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "registration text is required")
	}

	numbers := splitRegistrations(req.Raw)
	if len(numbers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no registration numbers found")
	}

	students, err := s.repo.ListByRegistrationNumbers(ctx, numbers)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve registration numbers")
	}
	known := make(map[string]string, len(students))
	for _, student := range students {
		known[student.RegistrationNumber] = student.ID
	}

	extract := &models.RegistrationExtract{}
	for _, number := range numbers {
		if id, ok := known[number]; ok {
			extract.StudentIDs = append(extract.StudentIDs, id)
		} else {
			extract.Unknown = append(extract.Unknown, number)
		}
	}
	return extract, nil
}

func splitRegistrations(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';' || r == '\t' || r == ' '
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		number := strings.TrimSpace(f)
		if number == "" {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		out = append(out, number)
	}
	return out
}
