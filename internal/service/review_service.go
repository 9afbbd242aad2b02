package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type reviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	FindByCase(ctx context.Context, caseID string) (*models.Review, error)
	ListByLab(ctx context.Context, labID string) ([]models.Review, error)
}

type reviewCaseStore interface {
	GetByID(ctx context.Context, id string) (*models.Case, error)
}

type reviewLabStore interface {
	FindByID(ctx context.Context, id string) (*models.Lab, error)
	FindByUserID(ctx context.Context, userID string) (*models.Lab, error)
	UpdateRating(ctx context.Context, labID string) (float64, error)
}

type reviewClinicStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Clinic, error)
}

// ReviewService handles the clinic's one-off rating of a delivered case and
// keeps the lab's stored average in step.
type ReviewService struct {
	reviews   reviewStore
	cases     reviewCaseStore
	labs      reviewLabStore
	clinics   reviewClinicStore
	audit     caseAuditStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs a ReviewService instance.
func NewReviewService(reviews reviewStore, cases reviewCaseStore, labs reviewLabStore, clinics reviewClinicStore, audit caseAuditStore, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{reviews: reviews, cases: cases, labs: labs, clinics: clinics, audit: audit, validator: validate, logger: logger}
}

// Create submits a review. Only the owning clinic may review, only once, and
// only after the case reached DELIVERED.
func (s *ReviewService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
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

	c, err := s.cases.GetByID(ctx, req.CaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	if c.ClinicID != clinic.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "case belongs to another clinic")
	}
	if c.Status != models.StatusDelivered {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("can only review delivered cases, current status is %s", c.Status))
	}
	if c.LabID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case has no lab to review")
	}

	if _, err := s.reviews.FindByCase(ctx, req.CaseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "case has already been reviewed")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}

	review := &models.Review{
		CaseID:   req.CaseID,
		ClinicID: clinic.ID,
		LabID:    *c.LabID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}

	if _, err := s.labs.UpdateRating(ctx, review.LabID); err != nil {
		s.logger.Warn("failed to recompute lab rating", zap.String("lab_id", review.LabID), zap.Error(err))
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionReviewCreate,
		Resource:   "review",
		ResourceID: &review.ID,
		NewValues:  []byte(fmt.Sprintf(`{"rating":%d,"case_id":%q}`, review.Rating, review.CaseID)),
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}

	return review, nil
}

// ListForLab returns a lab's reviews newest first.
func (s *ReviewService) ListForLab(ctx context.Context, labID string) ([]dto.ReviewItem, error) {
	if _, err := s.labs.FindByID(ctx, labID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab")
	}
	reviews, err := s.reviews.ListByLab(ctx, labID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviewItems(reviews), nil
}

// ListOwn returns the authenticated lab's reviews.
func (s *ReviewService) ListOwn(ctx context.Context, claims *models.JWTClaims) ([]dto.ReviewItem, error) {
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
	reviews, err := s.reviews.ListByLab(ctx, lab.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviewItems(reviews), nil
}

func reviewItems(reviews []models.Review) []dto.ReviewItem {
	items := make([]dto.ReviewItem, 0, len(reviews))
	for _, r := range reviews {
		items = append(items, dto.ReviewItem{
			ID:         r.ID,
			Rating:     r.Rating,
			Comment:    r.Comment,
			ClinicName: r.ClinicName,
			CaseTitle:  r.CaseTitle,
			Timestamp:  r.Timestamp,
		})
	}
	return items
}
