package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
	"github.com/noah-isme/campus-placement-api/pkg/export"
)

// ExportFormat selects the rendered report encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type rosterNameReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

// ExportResult is a rendered report ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
}

// ExportService renders eligibility lists and funnel reports for download.
type ExportService struct {
	snapshots *SnapshotService
	funnels   *FunnelService
	roster    rosterNameReader
	csv       csvRenderer
	pdf       pdfRenderer
	cfg       ExportConfig
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(snapshots *SnapshotService, funnels *FunnelService, roster rosterNameReader, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{snapshots: snapshots, funnels: funnels, roster: roster, csv: csv, pdf: pdf, cfg: cfg, logger: logger}
}

// SnapshotReport renders the eligible/ineligible partition with override
// context for one (company, batch) snapshot.
func (s *ExportService) SnapshotReport(ctx context.Context, companyID string, batchYear int, format ExportFormat) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	detail, err := s.snapshots.Get(ctx, companyID, batchYear)
	if err != nil {
		return nil, err
	}
	if len(detail.Entries) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("snapshot exceeds export limit of %d rows", s.cfg.MaxRows))
	}

	ids := make([]string, 0, len(detail.Entries))
	for _, entry := range detail.Entries {
		ids = append(ids, entry.StudentID)
	}
	names, err := s.studentIndex(ctx, ids)
	if err != nil {
		return nil, err
	}

	activeOverride := make(map[string]models.OverrideKind)
	for _, override := range detail.Overrides {
		if override.Active {
			activeOverride[override.StudentID] = override.Kind
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Registration No", "Name", "Specialization", "CGPA", "Status", "Reason", "Override"},
	}
	for _, entry := range detail.Entries {
		student := names[entry.StudentID]
		dataset.Rows = append(dataset.Rows, []string{
			student.RegistrationNumber,
			student.FullName,
			student.Specialization,
			strconv.FormatFloat(student.CGPA, 'f', 2, 64),
			string(entry.Status),
			entry.Reason,
			string(activeOverride[entry.StudentID]),
		})
	}

	title := fmt.Sprintf("Eligibility %s batch %d", companyID, batchYear)
	filename := fmt.Sprintf("eligibility_%s_%d.%s", companyID, batchYear, format)
	return s.render(dataset, title, filename, format)
}

// FunnelReport renders a position's per-round funnel counts.
func (s *ExportService) FunnelReport(ctx context.Context, positionID string, format ExportFormat) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	summaries, err := s.funnels.ListRounds(ctx, positionID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Round", "Status", "Eligible", "Applied", "Attended", "Qualified"},
	}
	for _, summary := range summaries {
		applied := ""
		if summary.AppliedCount != nil {
			applied = strconv.Itoa(*summary.AppliedCount)
		}
		dataset.Rows = append(dataset.Rows, []string{
			strconv.Itoa(summary.RoundNumber),
			string(summary.Status),
			strconv.Itoa(summary.EligibleCount),
			applied,
			strconv.Itoa(summary.AttendedCount),
			strconv.Itoa(summary.QualifiedCount),
		})
	}

	title := fmt.Sprintf("Funnel %s", positionID)
	filename := fmt.Sprintf("funnel_%s.%s", positionID, format)
	return s.render(dataset, title, filename, format)
}

func (s *ExportService) render(dataset export.Dataset, title, filename string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var contentType string
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func (s *ExportService) studentIndex(ctx context.Context, ids []string) (map[string]models.Student, error) {
	students, err := s.roster.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students for export")
	}
	index := make(map[string]models.Student, len(students))
	for _, student := range students {
		index[student.ID] = student
	}
	return index, nil
}
