package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
	"github.com/dentalink/dentalink-api/pkg/response"
)

type directoryService interface {
	Discover(ctx context.Context, claims *models.JWTClaims, filter models.LabFilter) ([]dto.LabDirectoryItem, error)
	Detail(ctx context.Context, claims *models.JWTClaims, labID string) (*dto.LabDirectoryItem, error)
	Recommended(ctx context.Context, claims *models.JWTClaims) ([]dto.LabDirectoryItem, error)
	AddFavorite(ctx context.Context, claims *models.JWTClaims, req dto.FavoriteLabRequest) error
	RemoveFavorite(ctx context.Context, claims *models.JWTClaims, labID string) error
	Favorites(ctx context.Context, claims *models.JWTClaims) ([]dto.FavoriteLabItem, error)
}

// DirectoryHandler exposes lab discovery and favourites for clinics.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(service directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// Discover godoc
// @Summary Browse the lab directory
// @Tags Directory
// @Produce json
// @Param specialties query string false "Comma separated specialties"
// @Param maxTurnaround query int false "Maximum turnaround days"
// @Param minRating query number false "Minimum rating"
// @Param location query string false "Location substring"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /labs [get]
func (h *DirectoryHandler) Discover(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.LabFilter{
		Location: strings.TrimSpace(c.Query("location")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("specialties"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Specialties = append(filter.Specialties, part)
			}
		}
	}
	if raw := c.Query("maxTurnaround"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "maxTurnaround must be a non-negative integer"))
			return
		}
		filter.MaxTurnaroundTime = &v
	}
	if raw := c.Query("minRating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 5 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "minRating must be between 0 and 5"))
			return
		}
		filter.MinRating = &v
	}

	items, err := h.service.Discover(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Detail godoc
// @Summary Get a lab's directory profile
// @Tags Directory
// @Produce json
// @Param labId path string true "Lab ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /labs/{labId} [get]
func (h *DirectoryHandler) Detail(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Detail(c.Request.Context(), claims, c.Param("labId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Recommended godoc
// @Summary Recommended labs for the clinic
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /labs/recommended [get]
func (h *DirectoryHandler) Recommended(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.Recommended(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AddFavorite godoc
// @Summary Bookmark a lab
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.FavoriteLabRequest true "Lab reference"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /clinic/favorites [post]
func (h *DirectoryHandler) AddFavorite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.FavoriteLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid favourite payload"))
		return
	}
	if err := h.service.AddFavorite(c.Request.Context(), claims, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"labId": req.LabID})
}

// RemoveFavorite godoc
// @Summary Remove a lab bookmark
// @Tags Directory
// @Produce json
// @Param labId path string true "Lab ID"
// @Success 204 {object} nil
// @Security BearerAuth
// @Router /clinic/favorites/{labId} [delete]
func (h *DirectoryHandler) RemoveFavorite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveFavorite(c.Request.Context(), claims, c.Param("labId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Favorites godoc
// @Summary List the clinic's bookmarked labs
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clinic/favorites [get]
func (h *DirectoryHandler) Favorites(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.Favorites(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
