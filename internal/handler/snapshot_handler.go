package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-placement-api/internal/models"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
	"github.com/noah-isme/campus-placement-api/pkg/response"
)

type snapshotService interface {
	Calculate(ctx context.Context, companyID string, batchYear int) (*models.SnapshotDetail, error)
	Replace(ctx context.Context, companyID string, batchYear int) (*models.SnapshotDetail, error)
	Get(ctx context.Context, companyID string, batchYear int) (*models.SnapshotDetail, error)
	ApplyDreamCompanyOverride(ctx context.Context, snapshotID, studentID string) (*models.SnapshotDetail, error)
	ApplyManualOverride(ctx context.Context, snapshotID, studentID, reason string) (*models.SnapshotDetail, error)
	RemoveOverride(ctx context.Context, snapshotID, studentID string) (*models.SnapshotDetail, error)
}

// SnapshotHandler exposes eligibility snapshot and override endpoints.
type SnapshotHandler struct {
	snapshots snapshotService
}

// NewSnapshotHandler constructs SnapshotHandler.
func NewSnapshotHandler(snapshots snapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

type overrideRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Reason    string `json:"reason"`
}

func batchYearParam(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch year"))
		return 0, false
	}
	return year, true
}

// Calculate godoc
// @Summary Calculate the eligibility snapshot for a company and batch
// @Tags Snapshots
// @Produce json
// @Param companyId path string true "Company ID"
// @Param year path int true "Batch year"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /companies/{companyId}/batches/{year}/snapshot [post]
func (h *SnapshotHandler) Calculate(c *gin.Context) {
	year, ok := batchYearParam(c)
	if !ok {
		return
	}
	detail, err := h.snapshots.Calculate(c.Request.Context(), c.Param("companyId"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Replace godoc
// @Summary Explicitly recalculate the snapshot, discarding overrides
// @Tags Snapshots
// @Produce json
// @Param companyId path string true "Company ID"
// @Param year path int true "Batch year"
// @Success 200 {object} response.Envelope
// @Router /companies/{companyId}/batches/{year}/snapshot [put]
func (h *SnapshotHandler) Replace(c *gin.Context) {
	year, ok := batchYearParam(c)
	if !ok {
		return
	}
	detail, err := h.snapshots.Replace(c.Request.Context(), c.Param("companyId"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Get godoc
// @Summary Get the snapshot with entries, overrides and derived counts
// @Tags Snapshots
// @Produce json
// @Param companyId path string true "Company ID"
// @Param year path int true "Batch year"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /companies/{companyId}/batches/{year}/snapshot [get]
func (h *SnapshotHandler) Get(c *gin.Context) {
	year, ok := batchYearParam(c)
	if !ok {
		return
	}
	detail, err := h.snapshots.Get(c.Request.Context(), c.Param("companyId"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ApplyDreamOverride godoc
// @Summary Re-admit a placed student using their dream company privilege
// @Tags Overrides
// @Accept json
// @Produce json
// @Param id path string true "Snapshot ID"
// @Param payload body overrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /snapshots/{id}/overrides/dream [post]
func (h *SnapshotHandler) ApplyDreamOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	detail, err := h.snapshots.ApplyDreamCompanyOverride(c.Request.Context(), c.Param("id"), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ApplyManualOverride godoc
// @Summary Admit a student by administrator decision with a mandatory reason
// @Tags Overrides
// @Accept json
// @Produce json
// @Param id path string true "Snapshot ID"
// @Param payload body overrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /snapshots/{id}/overrides/manual [post]
func (h *SnapshotHandler) ApplyManualOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	detail, err := h.snapshots.ApplyManualOverride(c.Request.Context(), c.Param("id"), req.StudentID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// RemoveOverride godoc
// @Summary Reverse a student's active override
// @Tags Overrides
// @Produce json
// @Param id path string true "Snapshot ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /snapshots/{id}/overrides/{studentId} [delete]
func (h *SnapshotHandler) RemoveOverride(c *gin.Context) {
	detail, err := h.snapshots.RemoveOverride(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
