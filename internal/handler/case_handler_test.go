package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/middleware"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type caseServiceMock struct {
	createResp *dto.CaseDetail
	createErr  error
	detailResp *dto.CaseDetail
	detailErr  error
	decideResp *dto.CaseSummary
	decideErr  error
	statusResp *dto.CaseSummary
	statusErr  error
	cancelResp *dto.CaseSummary
	cancelErr  error

	decideCalled bool
	lastCaseID   string
	lastDecision dto.CaseDecisionRequest
}

func (m *caseServiceMock) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateCaseRequest) (*dto.CaseDetail, error) {
	return m.createResp, m.createErr
}

func (m *caseServiceMock) Detail(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.CaseDetail, error) {
	m.lastCaseID = caseID
	return m.detailResp, m.detailErr
}

func (m *caseServiceMock) Decide(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.CaseDecisionRequest) (*dto.CaseSummary, error) {
	m.decideCalled = true
	m.lastCaseID = caseID
	m.lastDecision = req
	return m.decideResp, m.decideErr
}

func (m *caseServiceMock) UpdateStatus(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.UpdateCaseStatusRequest) (*dto.CaseSummary, error) {
	return m.statusResp, m.statusErr
}

func (m *caseServiceMock) Cancel(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.CaseSummary, error) {
	m.lastCaseID = caseID
	return m.cancelResp, m.cancelErr
}

func (m *caseServiceMock) ClinicCases(ctx context.Context, claims *models.JWTClaims) ([]dto.ClinicCaseItem, error) {
	return []dto.ClinicCaseItem{}, nil
}

func (m *caseServiceMock) IncomingCases(ctx context.Context, claims *models.JWTClaims) ([]dto.IncomingCaseItem, error) {
	return []dto.IncomingCaseItem{}, nil
}

func (m *caseServiceMock) LabJobs(ctx context.Context, claims *models.JWTClaims) ([]dto.LabJobItem, error) {
	return []dto.LabJobItem{}, nil
}

type claimMetricsMock struct {
	claims      []string
	transitions []string
}

func (m *claimMetricsMock) RecordClaim(outcome string) {
	m.claims = append(m.claims, outcome)
}

func (m *claimMetricsMock) RecordTransition(to string) {
	m.transitions = append(m.transitions, to)
}

func newCaseTestContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestCaseHandlerDecideRecordsWin(t *testing.T) {
	mockSvc := &caseServiceMock{
		decideResp: &dto.CaseSummary{ID: "case-1", Status: models.StatusAccepted},
	}
	metrics := &claimMetricsMock{}
	handler := NewCaseHandler(mockSvc, metrics)

	payload, _ := json.Marshal(dto.CaseDecisionRequest{Action: models.DecisionAccept})
	c, w := newCaseTestContext(t, http.MethodPost, "/cases/case-1/decision", payload, &models.JWTClaims{UserID: "u1", Role: models.RoleLab})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.decideCalled)
	assert.Equal(t, "case-1", mockSvc.lastCaseID)
	assert.Equal(t, []string{"won"}, metrics.claims)
}

func TestCaseHandlerDecideClaimConflict(t *testing.T) {
	mockSvc := &caseServiceMock{
		decideErr: appErrors.Clone(appErrors.ErrClaimLost, "case already handled by another lab"),
	}
	metrics := &claimMetricsMock{}
	handler := NewCaseHandler(mockSvc, metrics)

	payload, _ := json.Marshal(dto.CaseDecisionRequest{Action: models.DecisionAccept})
	c, w := newCaseTestContext(t, http.MethodPost, "/cases/case-1/decision", payload, &models.JWTClaims{UserID: "u1", Role: models.RoleLab})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{"lost"}, metrics.claims)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrClaimLost.Code, envelope.Error.Code)
}

func TestCaseHandlerDecideForbidden(t *testing.T) {
	mockSvc := &caseServiceMock{
		decideErr: appErrors.Clone(appErrors.ErrForbidden, "case is assigned to another lab"),
	}
	metrics := &claimMetricsMock{}
	handler := NewCaseHandler(mockSvc, metrics)

	payload, _ := json.Marshal(dto.CaseDecisionRequest{Action: models.DecisionAccept})
	c, w := newCaseTestContext(t, http.MethodPost, "/cases/case-1/decision", payload, &models.JWTClaims{UserID: "u1", Role: models.RoleLab})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, []string{"forbidden"}, metrics.claims)
}

func TestCaseHandlerDecideInvalidBody(t *testing.T) {
	handler := NewCaseHandler(&caseServiceMock{}, nil)

	c, w := newCaseTestContext(t, http.MethodPost, "/cases/case-1/decision", []byte(`{"action":`), &models.JWTClaims{UserID: "u1", Role: models.RoleLab})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCaseHandlerUpdateStatusRecordsTransition(t *testing.T) {
	mockSvc := &caseServiceMock{
		statusResp: &dto.CaseSummary{ID: "case-1", Status: models.StatusDesigning},
	}
	metrics := &claimMetricsMock{}
	handler := NewCaseHandler(mockSvc, metrics)

	payload, _ := json.Marshal(dto.UpdateCaseStatusRequest{Status: models.StatusDesigning})
	c, w := newCaseTestContext(t, http.MethodPatch, "/cases/case-1/status", payload, &models.JWTClaims{UserID: "u1", Role: models.RoleLab})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"DESIGNING"}, metrics.transitions)
}

func TestCaseHandlerUpdateStatusIllegal(t *testing.T) {
	mockSvc := &caseServiceMock{
		statusErr: appErrors.Clone(appErrors.ErrValidation, models.TransitionError(models.StatusAccepted, models.StatusDispatched)),
	}
	handler := NewCaseHandler(mockSvc, &claimMetricsMock{})

	payload, _ := json.Marshal(dto.UpdateCaseStatusRequest{Status: models.StatusDispatched})
	c, w := newCaseTestContext(t, http.MethodPatch, "/cases/case-1/status", payload, &models.JWTClaims{UserID: "u1", Role: models.RoleLab})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "valid next status")
}

func TestCaseHandlerCancelOutsideWindow(t *testing.T) {
	mockSvc := &caseServiceMock{
		cancelErr: appErrors.Clone(appErrors.ErrValidation, models.CancelWindowError(models.StatusDesigning)),
	}
	handler := NewCaseHandler(mockSvc, nil)

	c, w := newCaseTestContext(t, http.MethodPost, "/cases/case-1/cancel", nil, &models.JWTClaims{UserID: "u1", Role: models.RoleClinic})
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "NEW or ACCEPTED")
}

func TestCaseHandlerDetailMissingClaims(t *testing.T) {
	handler := NewCaseHandler(&caseServiceMock{}, nil)

	c, w := newCaseTestContext(t, http.MethodGet, "/cases/case-1", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Detail(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCaseHandlerDetailNotFound(t *testing.T) {
	mockSvc := &caseServiceMock{
		detailErr: appErrors.Clone(appErrors.ErrNotFound, "case not found"),
	}
	handler := NewCaseHandler(mockSvc, nil)

	c, w := newCaseTestContext(t, http.MethodGet, "/cases/case-404", nil, &models.JWTClaims{UserID: "u1", Role: models.RoleClinic})
	c.Params = gin.Params{{Key: "id", Value: "case-404"}}

	handler.Detail(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "case-404", mockSvc.lastCaseID)
}
