package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type profileUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateName(ctx context.Context, id, name string, updatedAt time.Time) error
}

type profileClinicStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Clinic, error)
	Update(ctx context.Context, clinic *models.Clinic) error
}

type profileLabStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Lab, error)
	Update(ctx context.Context, lab *models.Lab) error
}

// ProfileService exposes the authenticated user's account and role profile.
type ProfileService struct {
	users     profileUserStore
	clinics   profileClinicStore
	labs      profileLabStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService instance.
func NewProfileService(users profileUserStore, clinics profileClinicStore, labs profileLabStore, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{users: users, clinics: clinics, labs: labs, validator: validate, logger: logger}
}

// Profile bundles the account with its role-specific profile.
type Profile struct {
	User   models.UserInfo `json:"user"`
	Clinic *models.Clinic  `json:"clinic,omitempty"`
	Lab    *models.Lab     `json:"lab,omitempty"`
}

// Get returns the caller's account and profile.
func (s *ProfileService) Get(ctx context.Context, claims *models.JWTClaims) (*Profile, error) {
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	profile := &Profile{User: models.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}}

	switch user.Role {
	case models.RoleClinic:
		clinic, err := s.clinics.FindByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic profile")
		}
		profile.Clinic = clinic
	case models.RoleLab:
		lab, err := s.labs.FindByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab profile")
		}
		profile.Lab = lab
	}

	return profile, nil
}

// UpdateName renames the account.
func (s *ProfileService) UpdateName(ctx context.Context, claims *models.JWTClaims, req dto.UpdateProfileRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if err := s.users.UpdateName(ctx, claims.UserID, req.Name, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update name")
	}
	return nil
}

// UpdateClinic updates the caller's clinic profile.
func (s *ProfileService) UpdateClinic(ctx context.Context, claims *models.JWTClaims, req dto.ClinicProfileRequest) (*models.Clinic, error) {
	if claims.Role != models.RoleClinic {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "clinic role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clinic payload")
	}

	clinic, err := s.clinics.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinic profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic profile")
	}

	clinic.Name = req.Name
	clinic.Phone = req.Phone
	clinic.Address = req.Address
	clinic.Specialties = req.Specialties
	if err := s.clinics.Update(ctx, clinic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update clinic profile")
	}
	return clinic, nil
}

// UpdateLab updates the caller's lab profile.
func (s *ProfileService) UpdateLab(ctx context.Context, claims *models.JWTClaims, req dto.LabProfileRequest) (*models.Lab, error) {
	if claims.Role != models.RoleLab {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lab role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lab payload")
	}

	lab, err := s.labs.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab profile")
	}

	lab.Name = req.Name
	lab.Services = req.Services
	lab.Specialties = req.Specialties
	lab.TurnaroundTime = req.TurnaroundTime
	lab.Location = req.Location
	lab.Latitude = req.Latitude
	lab.Longitude = req.Longitude
	lab.Logo = req.Logo
	if err := s.labs.Update(ctx, lab); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lab profile")
	}
	return lab, nil
}
