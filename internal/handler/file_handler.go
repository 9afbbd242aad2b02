package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
	"github.com/dentalink/dentalink-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, claims *models.JWTClaims, caseID string, header *multipart.FileHeader) (*dto.FileSummary, error)
	List(ctx context.Context, claims *models.JWTClaims, caseID string) ([]dto.FileSummary, error)
	Download(ctx context.Context, claims *models.JWTClaims, fileID string) (*models.File, *os.File, error)
}

// FileHandler exposes case attachment endpoints.
type FileHandler struct {
	service fileService
}

// NewFileHandler constructs the handler.
func NewFileHandler(service fileService) *FileHandler {
	return &FileHandler{service: service}
}

// Upload godoc
// @Summary Attach a file to a case
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Case ID"
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing file field"))
		return
	}
	summary, err := h.service.Upload(c.Request.Context(), claims, c.Param("id"), header)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, summary)
}

// List godoc
// @Summary List a case's attachments
// @Tags Files
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/files [get]
func (h *FileHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	files, err := h.service.List(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, nil)
}

// Download godoc
// @Summary Download an attachment
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /files/{id} [get]
func (h *FileHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	meta, handle, err := h.service.Download(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer handle.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.OriginalName))
	contentType := meta.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, meta.FileSize, contentType, handle, nil)
}
