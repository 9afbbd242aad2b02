package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type caseStoreStub struct {
	mu      sync.Mutex
	byID    map[string]*models.Case
	claimed map[string]string

	createErr error

	// afterRead, when set, runs after every GetByID outside the lock. It
	// lets race tests line up concurrent readers on the same snapshot.
	afterRead func()
}

func newCaseStoreStub(cases ...*models.Case) *caseStoreStub {
	s := &caseStoreStub{byID: map[string]*models.Case{}, claimed: map[string]string{}}
	for _, c := range cases {
		s.byID[c.ID] = c
	}
	return s
}

func (s *caseStoreStub) Create(ctx context.Context, c *models.Case) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = "case-generated"
	}
	c.Status = models.StatusNew
	c.StatusHistory = models.StatusHistory{}
	s.byID[c.ID] = c
	return nil
}

func (s *caseStoreStub) GetByID(ctx context.Context, id string) (*models.Case, error) {
	s.mu.Lock()
	c, ok := s.byID[id]
	var clone models.Case
	if ok {
		clone = *c
	}
	s.mu.Unlock()
	if !ok {
		return nil, sql.ErrNoRows
	}
	if s.afterRead != nil {
		s.afterRead()
	}
	return &clone, nil
}

func (s *caseStoreStub) ListByClinic(ctx context.Context, clinicID string) ([]models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Case{}
	for _, c := range s.byID {
		if c.ClinicID == clinicID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *caseStoreStub) ListIncoming(ctx context.Context, labID string) ([]models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Case{}
	for _, c := range s.byID {
		if c.Status == models.StatusNew && (c.LabID == nil || *c.LabID == labID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *caseStoreStub) ListJobs(ctx context.Context, labID string) ([]models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Case{}
	for _, c := range s.byID {
		if c.LabID != nil && *c.LabID == labID && c.Status != models.StatusNew && c.Status != models.StatusRejected {
			out = append(out, *c)
		}
	}
	return out, nil
}

// ClaimFromPool mirrors the conditional UPDATE: only the first claimer of an
// unclaimed NEW case succeeds, everyone else sees zero rows.
func (s *caseStoreStub) ClaimFromPool(ctx context.Context, caseID, labID string, newStatus models.CaseStatus, change models.StatusChange) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[caseID]
	if !ok || c.LabID != nil || c.Status != models.StatusNew {
		return nil, sql.ErrNoRows
	}
	bound := labID
	c.LabID = &bound
	c.Status = newStatus
	c.StatusHistory = append(c.StatusHistory, change)
	s.claimed[caseID] = labID
	clone := *c
	return &clone, nil
}

func (s *caseStoreStub) DecideTargeted(ctx context.Context, caseID, labID string, newStatus models.CaseStatus, change models.StatusChange) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[caseID]
	if !ok || c.LabID == nil || *c.LabID != labID || c.Status != models.StatusNew {
		return nil, sql.ErrNoRows
	}
	c.Status = newStatus
	c.StatusHistory = append(c.StatusHistory, change)
	clone := *c
	return &clone, nil
}

func (s *caseStoreStub) AdvanceStatus(ctx context.Context, caseID string, from, to models.CaseStatus, change models.StatusChange) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[caseID]
	if !ok || c.Status != from {
		return nil, sql.ErrNoRows
	}
	c.Status = to
	c.StatusHistory = append(c.StatusHistory, change)
	clone := *c
	return &clone, nil
}

func (s *caseStoreStub) Cancel(ctx context.Context, caseID, clinicID string) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[caseID]
	if !ok || c.ClinicID != clinicID || !c.Status.Cancellable() {
		return nil, sql.ErrNoRows
	}
	c.Status = models.StatusCancelled
	clone := *c
	return &clone, nil
}

type clinicStoreStub struct {
	byUser map[string]*models.Clinic
}

func (s clinicStoreStub) FindByUserID(ctx context.Context, userID string) (*models.Clinic, error) {
	if c, ok := s.byUser[userID]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (s clinicStoreStub) FindByIDs(ctx context.Context, ids []string) (map[string]models.Clinic, error) {
	out := map[string]models.Clinic{}
	for _, c := range s.byUser {
		out[c.ID] = *c
	}
	return out, nil
}

type labStoreStub struct {
	byUser map[string]*models.Lab
}

func (s labStoreStub) FindByUserID(ctx context.Context, userID string) (*models.Lab, error) {
	if l, ok := s.byUser[userID]; ok {
		return l, nil
	}
	return nil, sql.ErrNoRows
}

func (s labStoreStub) FindByID(ctx context.Context, id string) (*models.Lab, error) {
	for _, l := range s.byUser {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s labStoreStub) FindByIDs(ctx context.Context, ids []string) (map[string]models.Lab, error) {
	out := map[string]models.Lab{}
	for _, l := range s.byUser {
		out[l.ID] = *l
	}
	return out, nil
}

type fileStoreStub struct{}

func (fileStoreStub) ListByCase(ctx context.Context, caseID string) ([]models.File, error) {
	return []models.File{}, nil
}

func (fileStoreStub) ListByCaseIDs(ctx context.Context, caseIDs []string) (map[string][]models.File, error) {
	return map[string][]models.File{}, nil
}

type messageStoreCountStub struct{}

func (messageStoreCountStub) CountByCaseIDs(ctx context.Context, caseIDs []string) (map[string]int, error) {
	return map[string]int{}, nil
}

type auditStoreStub struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *auditStoreStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *log)
	return nil
}

type cacheStub struct {
	mu      sync.Mutex
	deleted []string
}

func (s *cacheStub) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func poolCase(id, clinicID string) *models.Case {
	return &models.Case{
		ID:            id,
		Title:         "Crown #14",
		ToothNumber:   "14",
		Status:        models.StatusNew,
		StatusHistory: models.StatusHistory{},
		ClinicID:      clinicID,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func newCaseServiceForTest(store *caseStoreStub, clinics clinicStoreStub, labs labStoreStub) (*CaseService, *auditStoreStub, *cacheStub) {
	audit := &auditStoreStub{}
	cache := &cacheStub{}
	svc := NewCaseService(store, clinics, labs, fileStoreStub{}, messageStoreCountStub{}, audit, cache, nil, nil)
	return svc, audit, cache
}

func labClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleLab}
}

func clinicClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleClinic}
}

func TestCaseServiceDecideClaimsPoolCase(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	svc, audit, cache := newCaseServiceForTest(store, clinics, labs)

	claims := labClaims("user-lab")
	claims.Name = "Alex Nguyen"
	summary, err := svc.Decide(context.Background(), claims, "case-1", dto.CaseDecisionRequest{Action: models.DecisionAccept})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, summary.Status)

	claimed, err := store.GetByID(context.Background(), "case-1")
	require.NoError(t, err)
	require.NotNil(t, claimed.LabID)
	assert.Equal(t, "lab-1", *claimed.LabID)
	require.Len(t, claimed.StatusHistory, 1)
	assert.Equal(t, models.StatusAccepted, claimed.StatusHistory[0].Status)
	// The history records who acted by display name, not by user id.
	assert.Equal(t, "Alex Nguyen", claimed.StatusHistory[0].UpdatedBy)

	assert.NotEmpty(t, audit.entries)
	assert.Contains(t, cache.deleted, "dashboard:clinic:clinic-1")
	assert.Contains(t, cache.deleted, "dashboard:lab:lab-1")
}

func TestCaseServiceDecideSingleWinner(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	byUser := map[string]*models.Lab{}
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		byUser["user-lab-"+id] = &models.Lab{ID: "lab-" + id, UserID: "user-lab-" + id, Name: "Lab " + id}
	}
	labs := labStoreStub{byUser: byUser}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	// Hold every racer at the read until all have seen the case as an
	// unclaimed NEW pool entry, so all five reach the conditional claim.
	var gate sync.WaitGroup
	gate.Add(len(byUser))
	store.afterRead = func() {
		gate.Done()
		gate.Wait()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	conflicts := 0
	for userID := range byUser {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.Decide(context.Background(), labClaims(userID), "case-1", dto.CaseDecisionRequest{Action: models.DecisionAccept})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrClaimLost.Code {
				conflicts++
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 4, conflicts)
}

func TestCaseServiceDecideTargetedWrongLab(t *testing.T) {
	c := poolCase("case-1", "clinic-1")
	target := "lab-1"
	c.LabID = &target
	store := newCaseStoreStub(c)
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab-2": {ID: "lab-2", UserID: "user-lab-2", Name: "Other Lab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	_, err := svc.Decide(context.Background(), labClaims("user-lab-2"), "case-1", dto.CaseDecisionRequest{Action: models.DecisionAccept})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCaseServiceDecideNonNewCase(t *testing.T) {
	c := poolCase("case-1", "clinic-1")
	c.Status = models.StatusCancelled
	store := newCaseStoreStub(c)
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	// A decision on a case no longer NEW is a precondition failure, not a
	// lost claim race: 400, never the conflict code.
	_, err := svc.Decide(context.Background(), labClaims("user-lab"), "case-1", dto.CaseDecisionRequest{Action: models.DecisionAccept})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "NEW status")
}

func TestCaseServiceDecideRejectKeepsLabBound(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	summary, err := svc.Decide(context.Background(), labClaims("user-lab"), "case-1", dto.CaseDecisionRequest{Action: models.DecisionReject})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, summary.Status)

	rejected, err := store.GetByID(context.Background(), "case-1")
	require.NoError(t, err)
	require.NotNil(t, rejected.LabID)
	assert.Equal(t, "lab-1", *rejected.LabID)
	assert.False(t, rejected.InPool())
}

func TestCaseServiceUpdateStatusIllegalTransition(t *testing.T) {
	c := poolCase("case-1", "clinic-1")
	bound := "lab-1"
	c.LabID = &bound
	c.Status = models.StatusAccepted
	store := newCaseStoreStub(c)
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	_, err := svc.UpdateStatus(context.Background(), labClaims("user-lab"), "case-1", dto.UpdateCaseStatusRequest{Status: models.StatusDispatched})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "cannot change status from ACCEPTED to DISPATCHED")
	assert.Contains(t, appErr.Message, "DESIGNING")
}

func TestCaseServiceUpdateStatusLegacyAlias(t *testing.T) {
	c := poolCase("case-1", "clinic-1")
	bound := "lab-1"
	c.LabID = &bound
	c.Status = models.StatusAccepted
	store := newCaseStoreStub(c)
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	claims := labClaims("user-lab")
	claims.Name = "ProLab Tech"
	summary, err := svc.UpdateStatus(context.Background(), claims, "case-1", dto.UpdateCaseStatusRequest{Status: models.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, summary.Status)

	advanced, err := store.GetByID(context.Background(), "case-1")
	require.NoError(t, err)
	require.Len(t, advanced.StatusHistory, 1)
	assert.Equal(t, "ProLab Tech", advanced.StatusHistory[0].UpdatedBy)
}

func TestCaseServiceUpdateStatusUnboundLab(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labs)

	_, err := svc.UpdateStatus(context.Background(), labClaims("user-lab"), "case-1", dto.UpdateCaseStatusRequest{Status: models.StatusDesigning})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCaseServiceCancelInsideWindow(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labStoreStub{byUser: map[string]*models.Lab{}})

	summary, err := svc.Cancel(context.Background(), clinicClaims("user-clinic"), "case-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, summary.Status)

	cancelled, err := store.GetByID(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Empty(t, cancelled.StatusHistory)
}

func TestCaseServiceCancelOutsideWindow(t *testing.T) {
	c := poolCase("case-1", "clinic-1")
	bound := "lab-1"
	c.LabID = &bound
	c.Status = models.StatusDesigning
	store := newCaseStoreStub(c)
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labStoreStub{byUser: map[string]*models.Lab{}})

	_, err := svc.Cancel(context.Background(), clinicClaims("user-clinic"), "case-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "current status is DESIGNING")
}

func TestCaseServiceCancelForeignClinic(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-other": {ID: "clinic-2", UserID: "user-other", Name: "Other Clinic"},
	}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labStoreStub{byUser: map[string]*models.Lab{}})

	_, err := svc.Cancel(context.Background(), clinicClaims("user-other"), "case-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCaseServiceCreateTargetedUnknownLab(t *testing.T) {
	store := newCaseStoreStub()
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	svc, _, _ := newCaseServiceForTest(store, clinics, labStoreStub{byUser: map[string]*models.Lab{}})

	_, err := svc.Create(context.Background(), clinicClaims("user-clinic"), dto.CreateCaseRequest{
		Title: "Crown #14", ToothNumber: "14", LabID: "lab-missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCaseServiceAuthorizeCaseAccessPoolVisibleToLab(t *testing.T) {
	store := newCaseStoreStub(poolCase("case-1", "clinic-1"))
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	svc, _, _ := newCaseServiceForTest(store, clinicStoreStub{byUser: map[string]*models.Clinic{}}, labs)

	c, err := svc.AuthorizeCaseAccess(context.Background(), labClaims("user-lab"), "case-1")
	require.NoError(t, err)
	assert.True(t, c.InPool())

	// Once claimed by someone else the pool case disappears for this lab.
	other := "lab-9"
	store.byID["case-1"].LabID = &other
	store.byID["case-1"].Status = models.StatusAccepted

	_, err = svc.AuthorizeCaseAccess(context.Background(), labClaims("user-lab"), "case-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
