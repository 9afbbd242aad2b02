package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type messageStore interface {
	Create(ctx context.Context, m *models.Message) error
	ListByCase(ctx context.Context, caseID string) ([]models.Message, error)
}

// caseAccessGate verifies the caller may see a case before its thread or
// attachments are touched.
type caseAccessGate interface {
	AuthorizeCaseAccess(ctx context.Context, claims *models.JWTClaims, caseID string) (*models.Case, error)
}

// MessageService manages the per-case communication thread between the
// owning clinic and the bound lab.
type MessageService struct {
	messages  messageStore
	access    caseAccessGate
	clinics   caseClinicStore
	labs      caseLabStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs a MessageService instance.
func NewMessageService(messages messageStore, access caseAccessGate, clinics caseClinicStore, labs caseLabStore, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MessageService{messages: messages, access: access, clinics: clinics, labs: labs, validator: validate, logger: logger}
}

// Post appends a message to a case thread. Only the owning clinic and the
// assigned lab may post, and only once a lab is bound to the case.
func (s *MessageService) Post(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.CreateMessageRequest) (*dto.MessageItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	c, err := s.access.AuthorizeCaseAccess(ctx, claims, caseID)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleLab && c.LabID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case thread is not visible to this lab")
	}
	if c.LabID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "messaging is not available for unassigned cases")
	}

	m := &models.Message{
		CaseID:   caseID,
		SenderID: claims.UserID,
		Content:  req.Content,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to post message")
	}

	return &dto.MessageItem{
		ID:         m.ID,
		Content:    m.Content,
		SenderID:   claims.UserID,
		SenderName: claims.Name,
		SenderRole: claims.Role,
		Timestamp:  m.Timestamp,
	}, nil
}

// Thread returns a case's messages oldest first with a case summary header.
// Pool visibility does not extend to the thread: a lab only reads it once
// bound to the case.
func (s *MessageService) Thread(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.MessageThread, error) {
	c, err := s.access.AuthorizeCaseAccess(ctx, claims, caseID)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleLab && c.LabID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case thread is not visible to this lab")
	}

	messages, err := s.messages.ListByCase(ctx, caseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thread")
	}

	thread := &dto.MessageThread{
		Messages: make([]dto.MessageItem, 0, len(messages)),
		CaseInfo: dto.MessageThreadCase{
			ID:     c.ID,
			Title:  c.Title,
			Status: c.Status,
		},
	}
	for _, m := range messages {
		thread.Messages = append(thread.Messages, dto.MessageItem{
			ID:         m.ID,
			Content:    m.Content,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			SenderRole: m.SenderRole,
			Timestamp:  m.Timestamp,
		})
	}

	if clinics, err := s.clinics.FindByIDs(ctx, []string{c.ClinicID}); err == nil {
		if clinic, ok := clinics[c.ClinicID]; ok {
			thread.CaseInfo.Clinic = clinic.Name
		}
	} else {
		s.logger.Warn("failed to load thread clinic", zap.String("case_id", c.ID), zap.Error(err))
	}
	if c.LabID != nil {
		if labs, err := s.labs.FindByIDs(ctx, []string{*c.LabID}); err == nil {
			if lab, ok := labs[*c.LabID]; ok {
				name := lab.Name
				thread.CaseInfo.Lab = &name
			}
		} else {
			s.logger.Warn("failed to load thread lab", zap.String("case_id", c.ID), zap.Error(err))
		}
	}

	return thread, nil
}
