package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-placement-api/internal/service"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
	"github.com/noah-isme/campus-placement-api/pkg/response"
)

type exportService interface {
	SnapshotReport(ctx context.Context, companyID string, batchYear int, format service.ExportFormat) (*service.ExportResult, error)
	FunnelReport(ctx context.Context, positionID string, format service.ExportFormat) (*service.ExportResult, error)
}

// ExportHandler serves downloadable snapshot and funnel reports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// SnapshotReport godoc
// @Summary Download the eligibility list for a company and batch
// @Tags Exports
// @Produce application/octet-stream
// @Param companyId path string true "Company ID"
// @Param year path int true "Batch year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /companies/{companyId}/batches/{year}/snapshot/export [get]
func (h *ExportHandler) SnapshotReport(c *gin.Context) {
	batchYear, ok := batchYearParam(c)
	if !ok {
		return
	}
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.SnapshotReport(c.Request.Context(), c.Param("companyId"), batchYear, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveExport(c, result)
}

// FunnelReport godoc
// @Summary Download the round funnel report for a position
// @Tags Exports
// @Produce application/octet-stream
// @Param positionId path string true "Position ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /positions/{positionId}/rounds/export [get]
func (h *ExportHandler) FunnelReport(c *gin.Context) {
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.FunnelReport(c.Request.Context(), c.Param("positionId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveExport(c, result)
}

func exportFormat(c *gin.Context) (service.ExportFormat, error) {
	switch format := service.ExportFormat(c.DefaultQuery("format", "csv")); format {
	case service.ExportFormatCSV, service.ExportFormatPDF:
		return format, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func serveExport(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
