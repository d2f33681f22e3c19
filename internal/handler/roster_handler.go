package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-placement-api/internal/models"
	"github.com/noah-isme/campus-placement-api/internal/service"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
	"github.com/noah-isme/campus-placement-api/pkg/response"
)

type rosterService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	UpdatePlacement(ctx context.Context, id string, req service.UpdatePlacementRequest) (*models.Student, error)
	ExtractRegistrations(ctx context.Context, req service.ExtractRegistrationsRequest) (*models.RegistrationExtract, error)
}

// RosterHandler exposes roster endpoints.
type RosterHandler struct {
	roster rosterService
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(roster rosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or registration number"
// @Param batch query int false "Filter by batch year"
// @Param specialization query string false "Filter by specialization"
// @Param status query string false "Filter by placement status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *RosterHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Specialization = c.Query("specialization")
	if status := c.Query("status"); status != "" {
		filter.Status = models.PlacementStatus(status)
	}
	if batch, err := strconv.Atoi(c.Query("batch")); err == nil {
		filter.BatchYear = batch
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.roster.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	student, err := h.roster.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// UpdatePlacement godoc
// @Summary Apply an externally resolved placement decision
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdatePlacementRequest true "Placement payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/placement [patch]
func (h *RosterHandler) UpdatePlacement(c *gin.Context) {
	var req service.UpdatePlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status is required"))
		return
	}
	student, err := h.roster.UpdatePlacement(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ExtractRegistrations godoc
// @Summary Resolve raw registration numbers to student ids
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.ExtractRegistrationsRequest true "Raw registration number text"
// @Success 200 {object} response.Envelope
// @Router /students/registrations/extract [post]
func (h *RosterHandler) ExtractRegistrations(c *gin.Context) {
	var req service.ExtractRegistrationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "raw registration text is required"))
		return
	}
	extract, err := h.roster.ExtractRegistrations(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extract, nil)
}
