package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

const recentCaseLimit = 5

type dashboardCaseCounts interface {
	CountByClinicStatus(ctx context.Context, clinicID string) (map[models.CaseStatus]int, error)
	CountByLabStatus(ctx context.Context, labID string) (map[models.CaseStatus]int, error)
	CountIncoming(ctx context.Context, labID string) (int, error)
}

type dashboardCaseLists interface {
	ClinicCases(ctx context.Context, claims *models.JWTClaims) ([]dto.ClinicCaseItem, error)
	LabJobs(ctx context.Context, claims *models.JWTClaims) ([]dto.LabJobItem, error)
}

type dashboardDirectory interface {
	Favorites(ctx context.Context, claims *models.JWTClaims) ([]dto.FavoriteLabItem, error)
	Recommended(ctx context.Context, claims *models.JWTClaims) ([]dto.LabDirectoryItem, error)
}

type dashboardReviewStats interface {
	CountByLab(ctx context.Context, labID string) (int, error)
}

// DashboardService aggregates the role home views. Responses are cached per
// profile and invalidated by the case lifecycle mutations.
type DashboardService struct {
	counts    dashboardCaseCounts
	lists     dashboardCaseLists
	directory dashboardDirectory
	reviews   dashboardReviewStats
	clinics   caseClinicStore
	labs      caseLabStore
	cache     directoryCache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(counts dashboardCaseCounts, lists dashboardCaseLists, directory dashboardDirectory, reviews dashboardReviewStats, clinics caseClinicStore, labs caseLabStore, cache directoryCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		counts:    counts,
		lists:     lists,
		directory: directory,
		reviews:   reviews,
		clinics:   clinics,
		labs:      labs,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Clinic builds the clinic home view.
func (s *DashboardService) Clinic(ctx context.Context, claims *models.JWTClaims) (*dto.ClinicDashboardResponse, error) {
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

	key := fmt.Sprintf("dashboard:clinic:%s", clinic.ID)
	if s.cache != nil {
		var cached dto.ClinicDashboardResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	breakdown, err := s.counts.CountByClinicStatus(ctx, clinic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cases")
	}

	resp := &dto.ClinicDashboardResponse{
		StatusBreakdown: dto.StatusBreakdown(breakdown),
		RecentCases:     []dto.ClinicCaseItem{},
		FavoriteLabs:    []dto.FavoriteLabItem{},
		RecommendedLabs: []dto.LabDirectoryItem{},
	}
	for status, n := range breakdown {
		resp.TotalCases += n
		switch status {
		case models.StatusDelivered:
			resp.CompletedCases += n
		case models.StatusCancelled, models.StatusRejected:
		default:
			resp.ActiveCases += n
		}
	}

	cases, err := s.lists.ClinicCases(ctx, claims)
	if err != nil {
		return nil, err
	}
	if len(cases) > recentCaseLimit {
		cases = cases[:recentCaseLimit]
	}
	resp.RecentCases = cases

	if favorites, err := s.directory.Favorites(ctx, claims); err == nil {
		resp.FavoriteLabs = favorites
	} else {
		s.logger.Warn("failed to load dashboard favourites", zap.Error(err))
	}
	if recommended, err := s.directory.Recommended(ctx, claims); err == nil {
		resp.RecommendedLabs = recommended
	} else {
		s.logger.Warn("failed to load dashboard recommendations", zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

// Lab builds the lab home view.
func (s *DashboardService) Lab(ctx context.Context, claims *models.JWTClaims) (*dto.LabDashboardResponse, error) {
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

	key := fmt.Sprintf("dashboard:lab:%s", lab.ID)
	if s.cache != nil {
		var cached dto.LabDashboardResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	breakdown, err := s.counts.CountByLabStatus(ctx, lab.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cases")
	}
	incoming, err := s.counts.CountIncoming(ctx, lab.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count incoming cases")
	}
	reviewCount, err := s.reviews.CountByLab(ctx, lab.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reviews")
	}

	resp := &dto.LabDashboardResponse{
		IncomingCount:   incoming,
		AverageRating:   lab.Rating,
		ReviewCount:     reviewCount,
		StatusBreakdown: dto.StatusBreakdown(breakdown),
		RecentJobs:      []dto.LabJobItem{},
	}
	for status, n := range breakdown {
		switch status {
		case models.StatusDelivered:
			resp.CompletedJobs += n
		case models.StatusNew, models.StatusCancelled, models.StatusRejected:
		default:
			resp.ActiveJobs += n
		}
	}

	jobs, err := s.lists.LabJobs(ctx, claims)
	if err != nil {
		return nil, err
	}
	if len(jobs) > recentCaseLimit {
		jobs = jobs[:recentCaseLimit]
	}
	resp.RecentJobs = jobs

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}
