package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	"github.com/dentalink/dentalink-api/internal/service"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
	"github.com/dentalink/dentalink-api/pkg/response"
)

type dashboardService interface {
	Clinic(ctx context.Context, claims *models.JWTClaims) (*dto.ClinicDashboardResponse, error)
	Lab(ctx context.Context, claims *models.JWTClaims) (*dto.LabDashboardResponse, error)
}

type exportService interface {
	Cases(ctx context.Context, claims *models.JWTClaims, format service.ExportFormat) (*service.ExportResult, error)
}

// DashboardHandler exposes the role home views and case exports.
type DashboardHandler struct {
	service  dashboardService
	exporter exportService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, exporter exportService) *DashboardHandler {
	return &DashboardHandler{service: service, exporter: exporter}
}

// Clinic godoc
// @Summary Clinic dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clinic/dashboard [get]
func (h *DashboardHandler) Clinic(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resp, err := h.service.Clinic(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Lab godoc
// @Summary Lab dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lab/dashboard [get]
func (h *DashboardHandler) Lab(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resp, err := h.service.Lab(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Export godoc
// @Summary Export the caller's case register
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /cases/export [get]
func (h *DashboardHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))
	result, err := h.exporter.Cases(c.Request.Context(), claims, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
