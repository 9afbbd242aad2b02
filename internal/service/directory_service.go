package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type directoryLabStore interface {
	List(ctx context.Context, filter models.LabFilter) ([]models.Lab, error)
	FindByID(ctx context.Context, id string) (*models.Lab, error)
	ReviewCounts(ctx context.Context, labIDs []string) (map[string]int, error)
	CompletedCaseCounts(ctx context.Context, labIDs []string) (map[string]int, error)
}

type directoryClinicStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Clinic, error)
	AddFavorite(ctx context.Context, clinicID, labID string) error
	RemoveFavorite(ctx context.Context, clinicID, labID string) error
	ListFavorites(ctx context.Context, clinicID string) ([]models.FavoriteLabEntry, error)
	FavoriteLabIDs(ctx context.Context, clinicID string) (map[string]bool, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const recommendedLabLimit = 3

// DirectoryService powers lab discovery for clinics: the filterable
// directory, favourites and specialty-based recommendations.
type DirectoryService struct {
	labs      directoryLabStore
	clinics   directoryClinicStore
	cache     directoryCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(labs directoryLabStore, clinics directoryClinicStore, cache directoryCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DirectoryService{labs: labs, clinics: clinics, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Discover lists labs matching the filter, flagged with the clinic's
// favourites. Unfiltered listings are served from cache when possible; the
// favourite flags are always applied fresh on top.
func (s *DirectoryService) Discover(ctx context.Context, claims *models.JWTClaims, filter models.LabFilter) ([]dto.LabDirectoryItem, error) {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}

	key := directoryCacheKey(filter)
	items := []dto.LabDirectoryItem{}
	cached := false
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &items); err == nil {
			cached = true
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("directory cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	if !cached {
		labs, err := s.labs.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list labs")
		}
		items, err = s.buildDirectoryItems(ctx, labs)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, items, s.cacheTTL); err != nil {
				s.logger.Warn("directory cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	favorites, err := s.clinics.FavoriteLabIDs(ctx, clinic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load favourites")
	}
	for i := range items {
		items[i].IsFavorite = favorites[items[i].ID]
	}
	return items, nil
}

// Detail returns a single lab's directory entry with its review and
// completed-case counts and the clinic's favourite flag.
func (s *DirectoryService) Detail(ctx context.Context, claims *models.JWTClaims, labID string) (*dto.LabDirectoryItem, error) {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}

	lab, err := s.labs.FindByID(ctx, labID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab")
	}

	items, err := s.buildDirectoryItems(ctx, []models.Lab{*lab})
	if err != nil {
		return nil, err
	}
	favorites, err := s.clinics.FavoriteLabIDs(ctx, clinic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load favourites")
	}
	item := items[0]
	item.IsFavorite = favorites[item.ID]
	return &item, nil
}

// Recommended returns the top rated labs sharing a specialty with the
// clinic, falling back to overall top rated when the clinic lists none.
func (s *DirectoryService) Recommended(ctx context.Context, claims *models.JWTClaims) ([]dto.LabDirectoryItem, error) {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.recommendedFor(ctx, clinic)
}

func (s *DirectoryService) recommendedFor(ctx context.Context, clinic *models.Clinic) ([]dto.LabDirectoryItem, error) {
	filter := models.LabFilter{Specialties: clinic.Specialties}
	labs, err := s.labs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list labs")
	}
	if len(labs) == 0 && len(filter.Specialties) > 0 {
		labs, err = s.labs.List(ctx, models.LabFilter{})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list labs")
		}
	}
	if len(labs) > recommendedLabLimit {
		labs = labs[:recommendedLabLimit]
	}

	items, err := s.buildDirectoryItems(ctx, labs)
	if err != nil {
		return nil, err
	}
	favorites, err := s.clinics.FavoriteLabIDs(ctx, clinic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load favourites")
	}
	for i := range items {
		items[i].IsFavorite = favorites[items[i].ID]
	}
	return items, nil
}

// AddFavorite bookmarks a lab for the clinic.
func (s *DirectoryService) AddFavorite(ctx context.Context, claims *models.JWTClaims, req dto.FavoriteLabRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid favourite payload")
	}
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return err
	}
	if _, err := s.labs.FindByID(ctx, req.LabID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lab not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab")
	}
	if err := s.clinics.AddFavorite(ctx, clinic.ID, req.LabID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add favourite")
	}
	return nil
}

// RemoveFavorite deletes a bookmark.
func (s *DirectoryService) RemoveFavorite(ctx context.Context, claims *models.JWTClaims, labID string) error {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return err
	}
	if err := s.clinics.RemoveFavorite(ctx, clinic.ID, labID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "favourite not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove favourite")
	}
	return nil
}

// Favorites lists the clinic's bookmarked labs.
func (s *DirectoryService) Favorites(ctx context.Context, claims *models.JWTClaims) ([]dto.FavoriteLabItem, error) {
	clinic, err := s.requireClinic(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.favoritesFor(ctx, clinic)
}

func (s *DirectoryService) favoritesFor(ctx context.Context, clinic *models.Clinic) ([]dto.FavoriteLabItem, error) {
	entries, err := s.clinics.ListFavorites(ctx, clinic.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list favourites")
	}
	items := make([]dto.FavoriteLabItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.FavoriteLabItem{
			LabID:          entry.ID,
			Name:           entry.Name,
			Specialties:    entry.Specialties,
			Location:       entry.Location,
			TurnaroundTime: entry.TurnaroundTime,
			Rating:         entry.Rating,
			FavoritedAt:    entry.FavoritedAt,
		})
	}
	return items, nil
}

func (s *DirectoryService) buildDirectoryItems(ctx context.Context, labs []models.Lab) ([]dto.LabDirectoryItem, error) {
	labIDs := make([]string, 0, len(labs))
	for _, lab := range labs {
		labIDs = append(labIDs, lab.ID)
	}
	reviewCounts, err := s.labs.ReviewCounts(ctx, labIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reviews")
	}
	caseCounts, err := s.labs.CompletedCaseCounts(ctx, labIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cases")
	}

	items := make([]dto.LabDirectoryItem, 0, len(labs))
	for _, lab := range labs {
		items = append(items, dto.LabDirectoryItem{
			ID:             lab.ID,
			Name:           lab.Name,
			Services:       lab.Services,
			Specialties:    lab.Specialties,
			TurnaroundTime: lab.TurnaroundTime,
			Location:       lab.Location,
			Rating:         lab.Rating,
			Logo:           lab.Logo,
			ReviewCount:    reviewCounts[lab.ID],
			CaseCount:      caseCounts[lab.ID],
		})
	}
	return items, nil
}

func (s *DirectoryService) requireClinic(ctx context.Context, claims *models.JWTClaims) (*models.Clinic, error) {
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

func directoryCacheKey(filter models.LabFilter) string {
	parts := []string{
		strings.Join(filter.Specialties, "|"),
		filter.Location,
		filter.Search,
	}
	if filter.MaxTurnaroundTime != nil {
		parts = append(parts, fmt.Sprintf("t%d", *filter.MaxTurnaroundTime))
	}
	if filter.MinRating != nil {
		parts = append(parts, fmt.Sprintf("r%.2f", *filter.MinRating))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "\x00")))
	return "directory:labs:" + hex.EncodeToString(sum[:])
}
