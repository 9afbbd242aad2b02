package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type caseStore interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	ListByClinic(ctx context.Context, clinicID string) ([]models.Case, error)
	ListIncoming(ctx context.Context, labID string) ([]models.Case, error)
	ListJobs(ctx context.Context, labID string) ([]models.Case, error)
	ClaimFromPool(ctx context.Context, caseID, labID string, newStatus models.CaseStatus, change models.StatusChange) (*models.Case, error)
	DecideTargeted(ctx context.Context, caseID, labID string, newStatus models.CaseStatus, change models.StatusChange) (*models.Case, error)
	AdvanceStatus(ctx context.Context, caseID string, from, to models.CaseStatus, change models.StatusChange) (*models.Case, error)
	Cancel(ctx context.Context, caseID, clinicID string) (*models.Case, error)
}

type caseClinicStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Clinic, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Clinic, error)
}

type caseLabStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Lab, error)
	FindByID(ctx context.Context, id string) (*models.Lab, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Lab, error)
}

type caseFileStore interface {
	ListByCase(ctx context.Context, caseID string) ([]models.File, error)
	ListByCaseIDs(ctx context.Context, caseIDs []string) (map[string][]models.File, error)
}

type caseMessageStore interface {
	CountByCaseIDs(ctx context.Context, caseIDs []string) (map[string]int, error)
}

type caseAuditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type caseCache interface {
	Delete(ctx context.Context, key string) error
}

// CaseService implements the marketplace case lifecycle: submission, the
// single-winner claim of pool cases, ordered status progression with its
// append-only history, and the clinic cancellation window.
type CaseService struct {
	cases     caseStore
	clinics   caseClinicStore
	labs      caseLabStore
	files     caseFileStore
	messages  caseMessageStore
	audit     caseAuditStore
	cache     caseCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCaseService constructs a CaseService instance.
func NewCaseService(cases caseStore, clinics caseClinicStore, labs caseLabStore, files caseFileStore, messages caseMessageStore, audit caseAuditStore, cache caseCache, validate *validator.Validate, logger *zap.Logger) *CaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CaseService{
		cases:     cases,
		clinics:   clinics,
		labs:      labs,
		files:     files,
		messages:  messages,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Create submits a new case for the authenticated clinic. With a labId the
// case goes straight to that lab; without one it enters the general pool.
func (s *CaseService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateCaseRequest) (*dto.CaseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid case payload")
	}

	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}

	var labID *string
	if req.LabID != "" {
		if _, err := s.labs.FindByID(ctx, req.LabID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "lab not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab")
		}
		labID = &req.LabID
	}

	c := &models.Case{
		Title:       req.Title,
		ToothNumber: req.ToothNumber,
		ClinicID:    clinic.ID,
		LabID:       labID,
	}
	if req.CaseNotes != "" {
		c.CaseNotes = &req.CaseNotes
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create case")
	}

	s.recordCaseAudit(ctx, claims.UserID, models.AuditActionCaseCreate, c.ID, fmt.Sprintf(`{"status":%q}`, c.Status))
	s.invalidateDashboards(ctx, c)

	return s.buildDetail(ctx, c)
}

// Detail returns a case with history and attachments. Clinics see their own
// cases; labs see cases bound to them plus unclaimed pool cases they could
// still pick up.
func (s *CaseService) Detail(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.CaseDetail, error) {
	c, _, _, err := s.loadCaseFor(ctx, claims, caseID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, c)
}

// Decide applies a lab's accept or reject verdict to a NEW case. For a pool
// case the conditional claim lets exactly one lab win; every loser gets a
// claim conflict. A rejected case keeps the deciding lab bound and does not
// return to the pool.
func (s *CaseService) Decide(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.CaseDecisionRequest) (*dto.CaseSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	newStatus, ok := req.Action.Status()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be accept or reject")
	}

	lab, err := s.requireLab(ctx, claims)
	if err != nil {
		return nil, err
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	if c.LabID != nil && *c.LabID != lab.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case is assigned to another lab")
	}
	if c.Status != models.StatusNew {
		return nil, appErrors.Clone(appErrors.ErrValidation, "can only accept or reject cases with NEW status")
	}

	change := models.StatusChange{
		Status:    newStatus,
		Timestamp: time.Now().UTC(),
		UpdatedBy: claims.Name,
	}

	var updated *models.Case
	if c.LabID == nil {
		updated, err = s.cases.ClaimFromPool(ctx, caseID, lab.ID, newStatus, change)
	} else {
		updated, err = s.cases.DecideTargeted(ctx, caseID, lab.ID, newStatus, change)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrClaimLost, "case already handled by another lab")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}

	s.recordCaseAudit(ctx, claims.UserID, models.AuditActionCaseDecision, updated.ID, fmt.Sprintf(`{"action":%q,"status":%q}`, req.Action, updated.Status))
	s.invalidateDashboards(ctx, updated)

	return s.buildSummary(ctx, updated)
}

// UpdateStatus advances a bound case one step along the fabrication
// lifecycle. Only the bound lab may advance, and only along the legal
// progression; the error for an illegal move names the valid next statuses.
func (s *CaseService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, caseID string, req dto.UpdateCaseStatusRequest) (*dto.CaseSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	lab, err := s.requireLab(ctx, claims)
	if err != nil {
		return nil, err
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	if c.LabID == nil || *c.LabID != lab.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case is not assigned to this lab")
	}
	if !c.Status.CanTransition(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, models.TransitionError(c.Status, req.Status))
	}

	change := models.StatusChange{
		Status:    req.Status,
		Timestamp: time.Now().UTC(),
		UpdatedBy: claims.Name,
	}
	updated, err := s.cases.AdvanceStatus(ctx, caseID, c.Status, req.Status, change)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "case status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.recordCaseAudit(ctx, claims.UserID, models.AuditActionCaseStatus, updated.ID, fmt.Sprintf(`{"from":%q,"to":%q}`, c.Status, updated.Status))
	s.invalidateDashboards(ctx, updated)

	return s.buildSummary(ctx, updated)
}

// Cancel withdraws a case. Only the owning clinic may cancel, and only while
// the case is still NEW or ACCEPTED.
func (s *CaseService) Cancel(ctx context.Context, claims *models.JWTClaims, caseID string) (*dto.CaseSummary, error) {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	if c.ClinicID != clinic.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case belongs to another clinic")
	}
	if !c.Status.Cancellable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, models.CancelWindowError(c.Status))
	}

	updated, err := s.cases.Cancel(ctx, caseID, clinic.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race against an accept that moved the case onwards;
			// re-read so the error names the status that blocked us.
			current, readErr := s.cases.GetByID(ctx, caseID)
			if readErr == nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, models.CancelWindowError(current.Status))
			}
			return nil, appErrors.Clone(appErrors.ErrValidation, models.CancelWindowError(c.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel case")
	}

	s.recordCaseAudit(ctx, claims.UserID, models.AuditActionCaseCancel, updated.ID, fmt.Sprintf(`{"from":%q}`, c.Status))
	s.invalidateDashboards(ctx, updated)

	return s.buildSummary(ctx, updated)
}

// ClinicCases lists the authenticated clinic's cases with attachments and
// message counts hydrated.
func (s *CaseService) ClinicCases(ctx context.Context, claims *models.JWTClaims) ([]dto.ClinicCaseItem, error) {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}

	cases, err := s.cases.ListByClinic(ctx, clinic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cases")
	}

	caseIDs := caseIDsOf(cases)
	filesByCase, err := s.files.ListByCaseIDs(ctx, caseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	messageCounts, err := s.messages.CountByCaseIDs(ctx, caseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count messages")
	}

	labIDs := []string{}
	for _, c := range cases {
		if c.LabID != nil {
			labIDs = append(labIDs, *c.LabID)
		}
	}
	labsByID, err := s.labs.FindByIDs(ctx, labIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load labs")
	}

	items := make([]dto.ClinicCaseItem, 0, len(cases))
	for _, c := range cases {
		item := dto.ClinicCaseItem{
			ID:           c.ID,
			Title:        c.Title,
			CaseNotes:    c.CaseNotes,
			ToothNumber:  c.ToothNumber,
			Status:       c.Status,
			Files:        fileSummaries(filesByCase[c.ID]),
			MessageCount: messageCounts[c.ID],
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if c.LabID != nil {
			if lab, ok := labsByID[*c.LabID]; ok {
				rating := lab.Rating
				item.Lab = &dto.LabRef{ID: lab.ID, Name: lab.Name, Rating: &rating}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// IncomingCases lists the cases the authenticated lab can decide on: cases
// sent directly to it followed by the unclaimed general pool.
func (s *CaseService) IncomingCases(ctx context.Context, claims *models.JWTClaims) ([]dto.IncomingCaseItem, error) {
	lab, err := s.requireLab(ctx, claims)
	if err != nil {
		return nil, err
	}

	cases, err := s.cases.ListIncoming(ctx, lab.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incoming cases")
	}

	caseIDs := caseIDsOf(cases)
	filesByCase, err := s.files.ListByCaseIDs(ctx, caseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	clinicsByID, err := s.clinicsForCases(ctx, cases)
	if err != nil {
		return nil, err
	}

	items := make([]dto.IncomingCaseItem, 0, len(cases))
	for _, c := range cases {
		item := dto.IncomingCaseItem{
			ID:              c.ID,
			Title:           c.Title,
			CaseNotes:       c.CaseNotes,
			ToothNumber:     c.ToothNumber,
			Status:          c.Status,
			Files:           fileSummaries(filesByCase[c.ID]),
			IsAssignedToLab: c.LabID != nil,
			CreatedAt:       c.CreatedAt,
		}
		if clinic, ok := clinicsByID[c.ClinicID]; ok {
			item.Clinic = &dto.ClinicRef{ID: clinic.ID, Name: clinic.Name}
		}
		items = append(items, item)
	}
	return items, nil
}

// LabJobs lists the cases the authenticated lab has accepted.
func (s *CaseService) LabJobs(ctx context.Context, claims *models.JWTClaims) ([]dto.LabJobItem, error) {
	lab, err := s.requireLab(ctx, claims)
	if err != nil {
		return nil, err
	}

	cases, err := s.cases.ListJobs(ctx, lab.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}

	caseIDs := caseIDsOf(cases)
	filesByCase, err := s.files.ListByCaseIDs(ctx, caseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	messageCounts, err := s.messages.CountByCaseIDs(ctx, caseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count messages")
	}
	clinicsByID, err := s.clinicsForCases(ctx, cases)
	if err != nil {
		return nil, err
	}

	items := make([]dto.LabJobItem, 0, len(cases))
	for _, c := range cases {
		item := dto.LabJobItem{
			ID:           c.ID,
			Title:        c.Title,
			ToothNumber:  c.ToothNumber,
			Status:       c.Status,
			Files:        fileSummaries(filesByCase[c.ID]),
			MessageCount: messageCounts[c.ID],
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if clinic, ok := clinicsByID[c.ClinicID]; ok {
			item.Clinic = &dto.ClinicRef{ID: clinic.ID, Name: clinic.Name}
		}
		items = append(items, item)
	}
	return items, nil
}

// AuthorizeCaseAccess loads a case after verifying the caller may see it. It
// is shared with the message and file flows, which gate on the same rule.
func (s *CaseService) AuthorizeCaseAccess(ctx context.Context, claims *models.JWTClaims, caseID string) (*models.Case, error) {
	c, _, _, err := s.loadCaseFor(ctx, claims, caseID)
	return c, err
}

func (s *CaseService) loadCaseFor(ctx context.Context, claims *models.JWTClaims, caseID string) (*models.Case, *models.Clinic, *models.Lab, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	switch claims.Role {
	case models.RoleClinic:
		clinic, err := s.requireClinic(ctx, claims)
		if err != nil {
			return nil, nil, nil, err
		}
		if c.ClinicID != clinic.ID {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrForbidden, "case belongs to another clinic")
		}
		return c, clinic, nil, nil
	case models.RoleLab:
		lab, err := s.requireLab(ctx, claims)
		if err != nil {
			return nil, nil, nil, err
		}
		bound := c.LabID != nil && *c.LabID == lab.ID
		if !bound && !c.InPool() {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrForbidden, "case is not visible to this lab")
		}
		return c, nil, lab, nil
	}
	return nil, nil, nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
}

func (s *CaseService) requireClinic(ctx context.Context, claims *models.JWTClaims) (*models.Clinic, error) {
	if claims.Role != models.RoleClinic {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "clinic role required")
	}
	clinic, err := s.clinics.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinic profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic profile")
	}
	return clinic, nil
}

func (s *CaseService) requireLab(ctx context.Context, claims *models.JWTClaims) (*models.Lab, error) {
	if claims.Role != models.RoleLab {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lab role required")
	}
	lab, err := s.labs.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab profile")
	}
	return lab, nil
}

func (s *CaseService) clinicsForCases(ctx context.Context, cases []models.Case) (map[string]models.Clinic, error) {
	ids := make([]string, 0, len(cases))
	seen := map[string]bool{}
	for _, c := range cases {
		if !seen[c.ClinicID] {
			seen[c.ClinicID] = true
			ids = append(ids, c.ClinicID)
		}
	}
	clinics, err := s.clinics.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinics")
	}
	return clinics, nil
}

func (s *CaseService) buildDetail(ctx context.Context, c *models.Case) (*dto.CaseDetail, error) {
	detail := &dto.CaseDetail{
		ID:            c.ID,
		Title:         c.Title,
		CaseNotes:     c.CaseNotes,
		ToothNumber:   c.ToothNumber,
		Status:        c.Status,
		StatusHistory: c.StatusHistory,
		Files:         []dto.FileSummary{},
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if detail.StatusHistory == nil {
		detail.StatusHistory = models.StatusHistory{}
	}

	if clinics, err := s.clinics.FindByIDs(ctx, []string{c.ClinicID}); err == nil {
		if clinic, ok := clinics[c.ClinicID]; ok {
			detail.Clinic = &dto.ClinicRef{ID: clinic.ID, Name: clinic.Name}
		}
	} else {
		s.logger.Warn("failed to load case clinic", zap.String("case_id", c.ID), zap.Error(err))
	}
	if c.LabID != nil {
		if labs, err := s.labs.FindByIDs(ctx, []string{*c.LabID}); err == nil {
			if lab, ok := labs[*c.LabID]; ok {
				rating := lab.Rating
				detail.Lab = &dto.LabRef{ID: lab.ID, Name: lab.Name, Rating: &rating}
			}
		} else {
			s.logger.Warn("failed to load case lab", zap.String("case_id", c.ID), zap.Error(err))
		}
	}

	files, err := s.files.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	detail.Files = fileSummaries(files)
	return detail, nil
}

func (s *CaseService) buildSummary(ctx context.Context, c *models.Case) (*dto.CaseSummary, error) {
	summary := &dto.CaseSummary{
		ID:        c.ID,
		Title:     c.Title,
		Status:    c.Status,
		UpdatedAt: c.UpdatedAt,
	}
	if clinics, err := s.clinics.FindByIDs(ctx, []string{c.ClinicID}); err == nil {
		if clinic, ok := clinics[c.ClinicID]; ok {
			summary.Clinic = &dto.ClinicRef{ID: clinic.ID, Name: clinic.Name}
		}
	}
	if c.LabID != nil {
		if labs, err := s.labs.FindByIDs(ctx, []string{*c.LabID}); err == nil {
			if lab, ok := labs[*c.LabID]; ok {
				summary.Lab = &dto.LabRef{ID: lab.ID, Name: lab.Name}
			}
		}
	}
	return summary, nil
}

func (s *CaseService) recordCaseAudit(ctx context.Context, userID, action, caseID, newValues string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "case",
		ResourceID: &caseID,
		NewValues:  []byte(newValues),
	}); err != nil {
		s.logger.Warn("failed to record case audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *CaseService) invalidateDashboards(ctx context.Context, c *models.Case) {
	if s.cache == nil {
		return
	}
	keys := []string{fmt.Sprintf("dashboard:clinic:%s", c.ClinicID)}
	if c.LabID != nil {
		keys = append(keys, fmt.Sprintf("dashboard:lab:%s", *c.LabID))
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.String("key", key), zap.Error(err))
		}
	}
}

func caseIDsOf(cases []models.Case) []string {
	ids := make([]string, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	return ids
}

func fileSummaries(files []models.File) []dto.FileSummary {
	out := make([]dto.FileSummary, 0, len(files))
	for _, f := range files {
		out = append(out, dto.FileSummary{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			FileType:     f.FileType,
			FileSize:     f.FileSize,
			UploadedAt:   f.UploadedAt,
		})
	}
	return out
}
