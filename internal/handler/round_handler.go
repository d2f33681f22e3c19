package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-placement-api/internal/models"
	"github.com/noah-isme/campus-placement-api/internal/service"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
	"github.com/noah-isme/campus-placement-api/pkg/response"
)

type funnelService interface {
	CreateRound(ctx context.Context, positionID string, req service.CreateRoundRequest) (*models.RoundSummary, error)
	ListRounds(ctx context.Context, positionID string) ([]models.RoundSummary, error)
	RecordApplications(ctx context.Context, roundID string, req service.MemberSetRequest) (*models.RoundSummary, error)
	RecordAttendance(ctx context.Context, roundID string, req service.MemberSetRequest) (*models.RoundSummary, error)
	RecordResults(ctx context.Context, roundID string, req service.RecordResultsRequest) (*models.RoundSummary, *models.ResultDiff, error)
	PreviewResults(ctx context.Context, roundID string, req service.MemberSetRequest) (*models.ResultDiff, error)
}

// RoundHandler exposes the round funnel endpoints.
type RoundHandler struct {
	funnels funnelService
}

// NewRoundHandler constructs RoundHandler.
func NewRoundHandler(funnels funnelService) *RoundHandler {
	return &RoundHandler{funnels: funnels}
}

// Create godoc
// @Summary Schedule the next round for a position
// @Tags Rounds
// @Accept json
// @Produce json
// @Param positionId path string true "Position ID"
// @Param payload body service.CreateRoundRequest true "Round payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /positions/{positionId}/rounds [post]
func (h *RoundHandler) Create(c *gin.Context) {
	var req service.CreateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "round_number is required"))
		return
	}
	summary, err := h.funnels.CreateRound(c.Request.Context(), c.Param("positionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, summary)
}

// List godoc
// @Summary List a position's rounds with derived funnel counts
// @Tags Rounds
// @Produce json
// @Param positionId path string true "Position ID"
// @Success 200 {object} response.Envelope
// @Router /positions/{positionId}/rounds [get]
func (h *RoundHandler) List(c *gin.Context) {
	summaries, err := h.funnels.ListRounds(c.Request.Context(), c.Param("positionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// RecordApplications godoc
// @Summary Record who applied in round 1
// @Tags Rounds
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param payload body service.MemberSetRequest true "Applicant ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rounds/{id}/applications [post]
func (h *RoundHandler) RecordApplications(c *gin.Context) {
	var req service.MemberSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_ids is required"))
		return
	}
	summary, err := h.funnels.RecordApplications(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// RecordAttendance godoc
// @Summary Record the attended set for a round
// @Tags Rounds
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param payload body service.MemberSetRequest true "Attendee ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rounds/{id}/attendance [post]
func (h *RoundHandler) RecordAttendance(c *gin.Context) {
	var req service.MemberSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_ids is required"))
		return
	}
	summary, err := h.funnels.RecordAttendance(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// RecordResults godoc
// @Summary Record or correct the qualified set for a round
// @Tags Rounds
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param payload body service.RecordResultsRequest true "Result payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds/{id}/results [post]
func (h *RoundHandler) RecordResults(c *gin.Context) {
	var req service.RecordResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_ids and mode are required"))
		return
	}
	summary, diff, err := h.funnels.RecordResults(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"diff": diff})
}

// PreviewResults godoc
// @Summary Preview the change set a result submission would produce
// @Tags Rounds
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param payload body service.MemberSetRequest true "Qualified ids"
// @Success 200 {object} response.Envelope
// @Router /rounds/{id}/results/preview [post]
func (h *RoundHandler) PreviewResults(c *gin.Context) {
	var req service.MemberSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_ids is required"))
		return
	}
	diff, err := h.funnels.PreviewResults(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diff, nil)
}
