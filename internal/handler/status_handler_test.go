package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/middleware"
	"github.com/noah-isme/scms-api/internal/models"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

type statusServiceMock struct {
	updateResp    *models.Complaint
	updateErr     error
	allowedResp   []models.ComplaintStatus
	allowedErr    error
	updateCalled  bool
	allowedCalled bool
	lastID        string
	lastReq       dto.UpdateStatusRequest
	lastActor     *models.User
}

func (m *statusServiceMock) UpdateStatus(ctx context.Context, complaintID string, req dto.UpdateStatusRequest, actor *models.User) (*models.Complaint, error) {
	m.updateCalled = true
	m.lastID = complaintID
	m.lastReq = req
	m.lastActor = actor
	return m.updateResp, m.updateErr
}

func (m *statusServiceMock) AllowedTransitions(ctx context.Context, complaintID string, actor *models.User) ([]models.ComplaintStatus, error) {
	m.allowedCalled = true
	m.lastID = complaintID
	return m.allowedResp, m.allowedErr
}

func TestStatusHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statusServiceMock{
		updateResp: &models.Complaint{ID: "cmp-1", Status: models.ComplaintStatusInProgress},
	}
	handler := NewStatusHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/complaints/cmp-1/status", bytes.NewBufferString(`{"status":"IN_PROGRESS"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "cmp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.updateCalled)
	assert.Equal(t, "cmp-1", mockSvc.lastID)
	assert.Equal(t, models.ComplaintStatusInProgress, mockSvc.lastReq.Status)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "teacher-1", mockSvc.lastActor.ID)
}

func TestStatusHandlerUpdateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statusServiceMock{}
	handler := NewStatusHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/complaints/cmp-1/status", bytes.NewBufferString(`{"status":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.updateCalled)
}

func TestStatusHandlerUpdateMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatusHandler(&statusServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/complaints/cmp-1/status", bytes.NewBufferString(`{"status":"RESOLVED"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusHandlerUpdateConflictPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statusServiceMock{
		updateErr: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move from RESOLVED to PENDING"),
	}
	handler := NewStatusHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/complaints/cmp-1/status", bytes.NewBufferString(`{"status":"PENDING"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.UpdateStatus(c)
	require.Equal(t, appErrors.ErrInvalidTransition.Status, w.Code)
}

func TestStatusHandlerAllowedTransitions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statusServiceMock{
		allowedResp: []models.ComplaintStatus{models.ComplaintStatusAssigned, models.ComplaintStatusCancelled},
	}
	handler := NewStatusHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/complaints/cmp-1/transitions", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "cmp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.AllowedTransitions(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.allowedCalled)
	assert.Contains(t, w.Body.String(), "ASSIGNED")
}
