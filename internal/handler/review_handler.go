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

type reviewService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateReviewRequest) (*models.Review, error)
	ListForLab(ctx context.Context, labID string) ([]dto.ReviewItem, error)
	ListOwn(ctx context.Context, claims *models.JWTClaims) ([]dto.ReviewItem, error)
}

// ReviewHandler exposes review endpoints.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Create godoc
// @Summary Review a delivered case
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body dto.CreateReviewRequest true "Review"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	review, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// ForLab godoc
// @Summary List a lab's reviews
// @Tags Reviews
// @Produce json
// @Param labId path string true "Lab ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /labs/{labId}/reviews [get]
func (h *ReviewHandler) ForLab(c *gin.Context) {
	items, err := h.service.ListForLab(c.Request.Context(), c.Param("labId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Own godoc
// @Summary List the authenticated lab's reviews
// @Tags Reviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lab/reviews [get]
func (h *ReviewHandler) Own(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.ListOwn(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
