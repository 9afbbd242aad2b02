package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
	"github.com/dentalink/dentalink-api/pkg/response"
)

type caseService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateCaseRequest) (*dto.CaseDetail, error)
	Detail(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.CaseDetail, error)
	Decide(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.CaseDecisionRequest) (*dto.CaseSummary, error)
	UpdateStatus(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.UpdateCaseStatusRequest) (*dto.CaseSummary, error)
	Cancel(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.CaseSummary, error)
	ClinicCases(ctx context.Context, claims *models.JWTClaims) ([]dto.ClinicCaseItem, error)
	IncomingCases(ctx context.Context, claims *models.JWTClaims) ([]dto.IncomingCaseItem, error)
	LabJobs(ctx context.Context, claims *models.JWTClaims) ([]dto.LabJobItem, error)
}

type claimMetrics interface {
	RecordClaim(outcome string)
	RecordTransition(to string)
}

// CaseHandler exposes the case lifecycle endpoints.
type CaseHandler struct {
	service caseService
	metrics claimMetrics
}

// NewCaseHandler constructs the handler.
func NewCaseHandler(service caseService, metrics claimMetrics) *CaseHandler {
	return &CaseHandler{service: service, metrics: metrics}
}

// Create godoc
// @Summary Submit a new case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.CreateCaseRequest true "Case payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /cases [post]
func (h *CaseHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid case payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Detail godoc
// @Summary Get a case with history and attachments
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id} [get]
func (h *CaseHandler) Detail(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Detail(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Decide godoc
// @Summary Accept or reject a NEW case
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.CaseDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/decision [post]
func (h *CaseHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CaseDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	summary, err := h.service.Decide(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		h.recordClaimOutcome(err)
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordClaim("won")
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// UpdateStatus godoc
// @Summary Advance a case along the fabrication lifecycle
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.UpdateCaseStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/status [patch]
func (h *CaseHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateCaseStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	summary, err := h.service.UpdateStatus(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordTransition(string(summary.Status))
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Cancel godoc
// @Summary Cancel a case still in its cancellation window
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/cancel [post]
func (h *CaseHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.Cancel(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ClinicCases godoc
// @Summary List the clinic's submitted cases
// @Tags Cases
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clinic/cases [get]
func (h *CaseHandler) ClinicCases(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.ClinicCases(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Incoming godoc
// @Summary List cases the lab can decide on
// @Tags Cases
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lab/cases/incoming [get]
func (h *CaseHandler) Incoming(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.IncomingCases(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Jobs godoc
// @Summary List the lab's accepted cases
// @Tags Cases
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lab/cases/jobs [get]
func (h *CaseHandler) Jobs(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.LabJobs(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func (h *CaseHandler) recordClaimOutcome(err error) {
	if h.metrics == nil {
		return
	}
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrClaimLost.Code:
		h.metrics.RecordClaim("lost")
	case appErrors.ErrForbidden.Code:
		h.metrics.RecordClaim("forbidden")
	}
}
