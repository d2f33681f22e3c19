package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-placement-api/internal/models"
	"github.com/noah-isme/campus-placement-api/internal/service"
	appErrors "github.com/noah-isme/campus-placement-api/pkg/errors"
)

type funnelServiceMock struct {
	summary *models.RoundSummary
	list    []models.RoundSummary
	diff    *models.ResultDiff
	err     error

	createCalled  bool
	resultsCalled bool
	previewCalled bool

	lastPositionID string
	lastRoundID    string
	lastCreate     service.CreateRoundRequest
	lastMembers    service.MemberSetRequest
	lastResults    service.RecordResultsRequest
}

func (m *funnelServiceMock) CreateRound(ctx context.Context, positionID string, req service.CreateRoundRequest) (*models.RoundSummary, error) {
	m.createCalled = true
	m.lastPositionID = positionID
	m.lastCreate = req
	return m.summary, m.err
}

func (m *funnelServiceMock) ListRounds(ctx context.Context, positionID string) ([]models.RoundSummary, error) {
	m.lastPositionID = positionID
	return m.list, m.err
}

func (m *funnelServiceMock) RecordApplications(ctx context.Context, roundID string, req service.MemberSetRequest) (*models.RoundSummary, error) {
	m.lastRoundID = roundID
	m.lastMembers = req
	return m.summary, m.err
}

func (m *funnelServiceMock) RecordAttendance(ctx context.Context, roundID string, req service.MemberSetRequest) (*models.RoundSummary, error) {
	m.lastRoundID = roundID
	m.lastMembers = req
	return m.summary, m.err
}

func (m *funnelServiceMock) RecordResults(ctx context.Context, roundID string, req service.RecordResultsRequest) (*models.RoundSummary, *models.ResultDiff, error) {
	m.resultsCalled = true
	m.lastRoundID = roundID
	m.lastResults = req
	return m.summary, m.diff, m.err
}

func (m *funnelServiceMock) PreviewResults(ctx context.Context, roundID string, req service.MemberSetRequest) (*models.ResultDiff, error) {
	m.previewCalled = true
	m.lastRoundID = roundID
	m.lastMembers = req
	return m.diff, m.err
}

func TestRoundHandlerCreate(t *testing.T) {
	mockSvc := &funnelServiceMock{summary: &models.RoundSummary{}}
	handler := NewRoundHandler(mockSvc)

	c, w := snapshotTestContext(t, http.MethodPost, "/positions/pos-1/rounds", []byte(`{"round_number":1}`))
	c.Params = gin.Params{{Key: "positionId", Value: "pos-1"}}

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
	assert.Equal(t, "pos-1", mockSvc.lastPositionID)
	assert.Equal(t, 1, mockSvc.lastCreate.RoundNumber)
}

func TestRoundHandlerCreateOutOfOrder(t *testing.T) {
	mockSvc := &funnelServiceMock{err: appErrors.ErrOutOfOrder}
	handler := NewRoundHandler(mockSvc)

	c, w := snapshotTestContext(t, http.MethodPost, "/positions/pos-1/rounds", []byte(`{"round_number":3}`))
	c.Params = gin.Params{{Key: "positionId", Value: "pos-1"}}

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "OUT_OF_ORDER")
}

func TestRoundHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &funnelServiceMock{}
	handler := NewRoundHandler(mockSvc)

	c, w := snapshotTestContext(t, http.MethodPost, "/positions/pos-1/rounds", []byte(`{"round_number":`))
	c.Params = gin.Params{{Key: "positionId", Value: "pos-1"}}

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.createCalled)
}

func TestRoundHandlerRecordResults(t *testing.T) {
	mockSvc := &funnelServiceMock{
		summary: &models.RoundSummary{},
		diff:    &models.ResultDiff{Added: []string{"s3"}, Removed: []string{"s2"}},
	}
	handler := NewRoundHandler(mockSvc)

	c, w := snapshotTestContext(t, http.MethodPost, "/rounds/round-1/results",
		[]byte(`{"student_ids":["s1","s3"],"mode":"edit"}`))
	c.Params = gin.Params{{Key: "id", Value: "round-1"}}

	handler.RecordResults(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.resultsCalled)
	assert.Equal(t, "round-1", mockSvc.lastRoundID)
	assert.Equal(t, models.ResultModeEdit, mockSvc.lastResults.Mode)
	assert.Contains(t, w.Body.String(), `"diff"`)
}

func TestRoundHandlerRecordResultsEditLocked(t *testing.T) {
	mockSvc := &funnelServiceMock{err: appErrors.ErrEditLocked}
	handler := NewRoundHandler(mockSvc)

	c, w := snapshotTestContext(t, http.MethodPost, "/rounds/round-1/results",
		[]byte(`{"student_ids":["s1"],"mode":"edit"}`))
	c.Params = gin.Params{{Key: "id", Value: "round-1"}}

	handler.RecordResults(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "EDIT_LOCKED")
}

func TestRoundHandlerPreviewResults(t *testing.T) {
	mockSvc := &funnelServiceMock{diff: &models.ResultDiff{Unchanged: []string{"s1"}}}
	handler := NewRoundHandler(mockSvc)

	c, w := snapshotTestContext(t, http.MethodPost, "/rounds/round-1/results/preview",
		[]byte(`{"student_ids":["s1"]}`))
	c.Params = gin.Params{{Key: "id", Value: "round-1"}}

	handler.PreviewResults(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.previewCalled)
	assert.Equal(t, []string{"s1"}, mockSvc.lastMembers.StudentIDs)
}
