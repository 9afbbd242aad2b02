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

type profileService interface {
	Get(ctx context.Context, claims *models.JWTClaims) (*service.Profile, error)
	UpdateName(ctx context.Context, claims *models.JWTClaims, req dto.UpdateProfileRequest) error
	UpdateClinic(ctx context.Context, claims *models.JWTClaims, req dto.ClinicProfileRequest) (*models.Clinic, error)
	UpdateLab(ctx context.Context, claims *models.JWTClaims, req dto.LabProfileRequest) (*models.Lab, error)
}

// ProfileHandler exposes the account and role profile endpoints.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service profileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Get godoc
// @Summary Get the authenticated profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.service.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateName godoc
// @Summary Rename the authenticated account
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "Profile payload"
// @Success 204 {object} nil
// @Security BearerAuth
// @Router /profile [patch]
func (h *ProfileHandler) UpdateName(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid profile payload"))
		return
	}
	if err := h.service.UpdateName(c.Request.Context(), claims, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateClinic godoc
// @Summary Update the clinic profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body dto.ClinicProfileRequest true "Clinic payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clinic/profile [put]
func (h *ProfileHandler) UpdateClinic(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ClinicProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid clinic payload"))
		return
	}
	clinic, err := h.service.UpdateClinic(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clinic, nil)
}

// UpdateLab godoc
// @Summary Update the lab profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body dto.LabProfileRequest true "Lab payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lab/profile [put]
func (h *ProfileHandler) UpdateLab(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.LabProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lab payload"))
		return
	}
	lab, err := h.service.UpdateLab(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lab, nil)
}
