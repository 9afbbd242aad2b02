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

type messageService interface {
	Post(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.CreateMessageRequest) (*dto.MessageItem, error)
	Thread(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.MessageThread, error)
}

// MessageHandler exposes the per-case thread endpoints.
type MessageHandler struct {
	service messageService
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(service messageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Post godoc
// @Summary Post a message into a case thread
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.CreateMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/messages [post]
func (h *MessageHandler) Post(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid message payload"))
		return
	}
	item, err := h.service.Post(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Thread godoc
// @Summary Read a case thread
// @Tags Messages
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cases/{id}/messages [get]
func (h *MessageHandler) Thread(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	thread, err := h.service.Thread(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thread, nil)
}
