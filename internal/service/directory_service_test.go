package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type directoryLabStoreStub struct {
	labs      []models.Lab
	listCalls int
}

func (s *directoryLabStoreStub) List(ctx context.Context, filter models.LabFilter) ([]models.Lab, error) {
	s.listCalls++
	if len(filter.Specialties) == 0 {
		return s.labs, nil
	}
	out := []models.Lab{}
	for _, lab := range s.labs {
		for _, want := range filter.Specialties {
			for _, have := range lab.Specialties {
				if want == have {
					out = append(out, lab)
				}
			}
		}
	}
	return out, nil
}

func (s *directoryLabStoreStub) FindByID(ctx context.Context, id string) (*models.Lab, error) {
	for i := range s.labs {
		if s.labs[i].ID == id {
			return &s.labs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *directoryLabStoreStub) ReviewCounts(ctx context.Context, labIDs []string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *directoryLabStoreStub) CompletedCaseCounts(ctx context.Context, labIDs []string) (map[string]int, error) {
	return map[string]int{}, nil
}

type directoryClinicStub struct {
	clinic    *models.Clinic
	favorites map[string]bool
	added     []string
	removed   []string
}

func (s *directoryClinicStub) FindByUserID(ctx context.Context, userID string) (*models.Clinic, error) {
	if s.clinic != nil && s.clinic.UserID == userID {
		return s.clinic, nil
	}
	return nil, sql.ErrNoRows
}

func (s *directoryClinicStub) AddFavorite(ctx context.Context, clinicID, labID string) error {
	s.added = append(s.added, labID)
	s.favorites[labID] = true
	return nil
}

func (s *directoryClinicStub) RemoveFavorite(ctx context.Context, clinicID, labID string) error {
	if !s.favorites[labID] {
		return sql.ErrNoRows
	}
	delete(s.favorites, labID)
	s.removed = append(s.removed, labID)
	return nil
}

func (s *directoryClinicStub) ListFavorites(ctx context.Context, clinicID string) ([]models.FavoriteLabEntry, error) {
	return []models.FavoriteLabEntry{}, nil
}

func (s *directoryClinicStub) FavoriteLabIDs(ctx context.Context, clinicID string) (map[string]bool, error) {
	return s.favorites, nil
}

type directoryCacheStub struct {
	store map[string][]byte
	hits  int
	sets  int
}

func (s *directoryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	s.hits++
	return json.Unmarshal(raw, dest)
}

func (s *directoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.sets++
	s.store[key] = raw
	return nil
}

func newDirectoryServiceForTest(labs []models.Lab) (*DirectoryService, *directoryLabStoreStub, *directoryClinicStub, *directoryCacheStub) {
	labStore := &directoryLabStoreStub{labs: labs}
	clinicStore := &directoryClinicStub{
		clinic:    &models.Clinic{ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic", Specialties: []string{"crowns"}},
		favorites: map[string]bool{},
	}
	cache := &directoryCacheStub{store: map[string][]byte{}}
	svc := NewDirectoryService(labStore, clinicStore, cache, time.Minute, nil, nil)
	return svc, labStore, clinicStore, cache
}

func directoryLabs() []models.Lab {
	return []models.Lab{
		{ID: "lab-1", Name: "Alpha Lab", Specialties: []string{"crowns"}, Rating: 4.8},
		{ID: "lab-2", Name: "Beta Lab", Specialties: []string{"implants"}, Rating: 4.5},
		{ID: "lab-3", Name: "Gamma Lab", Specialties: []string{"crowns"}, Rating: 4.1},
		{ID: "lab-4", Name: "Delta Lab", Specialties: []string{"veneers"}, Rating: 3.9},
	}
}

func TestDirectoryServiceDiscoverCachesListings(t *testing.T) {
	svc, labStore, _, cache := newDirectoryServiceForTest(directoryLabs())
	claims := clinicClaims("user-clinic")

	items, err := svc.Discover(context.Background(), claims, models.LabFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, 1, labStore.listCalls)
	assert.Equal(t, 1, cache.sets)

	// Second call with the same filter is served from cache.
	items, err = svc.Discover(context.Background(), claims, models.LabFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, 1, labStore.listCalls)
	assert.Equal(t, 1, cache.hits)
}

func TestDirectoryServiceDiscoverFavoriteFlagsStayFresh(t *testing.T) {
	svc, _, clinicStore, _ := newDirectoryServiceForTest(directoryLabs())
	claims := clinicClaims("user-clinic")

	items, err := svc.Discover(context.Background(), claims, models.LabFilter{})
	require.NoError(t, err)
	for _, item := range items {
		assert.False(t, item.IsFavorite)
	}

	clinicStore.favorites["lab-2"] = true

	// Flags come from the live favourites table even on a cache hit.
	items, err = svc.Discover(context.Background(), claims, models.LabFilter{})
	require.NoError(t, err)
	flagged := 0
	for _, item := range items {
		if item.IsFavorite {
			flagged++
			assert.Equal(t, "lab-2", item.ID)
		}
	}
	assert.Equal(t, 1, flagged)
}

func TestDirectoryServiceCacheKeyVariesByFilter(t *testing.T) {
	turnaround := 5
	rating := 4.0
	keys := map[string]bool{
		directoryCacheKey(models.LabFilter{}):                               true,
		directoryCacheKey(models.LabFilter{Search: "alpha"}):                true,
		directoryCacheKey(models.LabFilter{Specialties: []string{"cr"}}):    true,
		directoryCacheKey(models.LabFilter{MaxTurnaroundTime: &turnaround}): true,
		directoryCacheKey(models.LabFilter{MinRating: &rating}):             true,
	}
	assert.Len(t, keys, 5)
	for key := range keys {
		assert.Contains(t, key, "directory:labs:")
	}
}

func TestDirectoryServiceDetail(t *testing.T) {
	svc, _, clinicStore, _ := newDirectoryServiceForTest(directoryLabs())
	clinicStore.favorites["lab-2"] = true

	item, err := svc.Detail(context.Background(), clinicClaims("user-clinic"), "lab-2")
	require.NoError(t, err)
	assert.Equal(t, "Beta Lab", item.Name)
	assert.Equal(t, 4.5, item.Rating)
	assert.True(t, item.IsFavorite)

	other, err := svc.Detail(context.Background(), clinicClaims("user-clinic"), "lab-1")
	require.NoError(t, err)
	assert.False(t, other.IsFavorite)
}

func TestDirectoryServiceDetailUnknownLab(t *testing.T) {
	svc, _, _, _ := newDirectoryServiceForTest(directoryLabs())

	_, err := svc.Detail(context.Background(), clinicClaims("user-clinic"), "lab-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDirectoryServiceRecommendedLimitsToTopThree(t *testing.T) {
	labs := directoryLabs()
	labs = append(labs,
		models.Lab{ID: "lab-5", Name: "Epsilon Lab", Specialties: []string{"crowns"}, Rating: 3.5},
		models.Lab{ID: "lab-6", Name: "Zeta Lab", Specialties: []string{"crowns"}, Rating: 3.2},
	)
	svc, _, _, _ := newDirectoryServiceForTest(labs)

	items, err := svc.Recommended(context.Background(), clinicClaims("user-clinic"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(items), recommendedLabLimit)
}

func TestDirectoryServiceAddFavoriteUnknownLab(t *testing.T) {
	svc, _, _, _ := newDirectoryServiceForTest(directoryLabs())

	err := svc.AddFavorite(context.Background(), clinicClaims("user-clinic"), dto.FavoriteLabRequest{LabID: "lab-missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDirectoryServiceRemoveFavoriteMissing(t *testing.T) {
	svc, _, _, _ := newDirectoryServiceForTest(directoryLabs())

	err := svc.RemoveFavorite(context.Background(), clinicClaims("user-clinic"), "lab-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDirectoryServiceRequiresClinicRole(t *testing.T) {
	svc, _, _, _ := newDirectoryServiceForTest(directoryLabs())

	_, err := svc.Discover(context.Background(), labClaims("user-lab"), models.LabFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
