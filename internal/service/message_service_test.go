package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalink/dentalink-api/internal/dto"
	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type messageStoreStub struct {
	messages []models.Message
}

func (s *messageStoreStub) Create(ctx context.Context, m *models.Message) error {
	m.ID = "msg-1"
	m.Timestamp = time.Now().UTC()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *messageStoreStub) ListByCase(ctx context.Context, caseID string) ([]models.Message, error) {
	return s.messages, nil
}

func newMessageServiceForTest(gate accessGateStub) (*MessageService, *messageStoreStub) {
	store := &messageStoreStub{}
	clinics := clinicStoreStub{byUser: map[string]*models.Clinic{
		"user-clinic": {ID: "clinic-1", UserID: "user-clinic", Name: "Smile Clinic"},
	}}
	labs := labStoreStub{byUser: map[string]*models.Lab{
		"user-lab": {ID: "lab-1", UserID: "user-lab", Name: "ProLab"},
	}}
	svc := NewMessageService(store, gate, clinics, labs, nil, nil)
	return svc, store
}

func boundCase(id, clinicID, labID string) *models.Case {
	c := poolCase(id, clinicID)
	c.LabID = &labID
	c.Status = models.StatusAccepted
	return c
}

func TestMessageServicePostRecordsSender(t *testing.T) {
	svc, store := newMessageServiceForTest(accessGateStub{c: boundCase("case-1", "clinic-1", "lab-1")})
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleClinic, Name: "Dr. Nguyen"}

	item, err := svc.Post(context.Background(), claims, "case-1", dto.CreateMessageRequest{Content: "Shade A2 please"})
	require.NoError(t, err)
	assert.Equal(t, "Shade A2 please", item.Content)
	assert.Equal(t, "Dr. Nguyen", item.SenderName)
	assert.Equal(t, models.RoleClinic, item.SenderRole)
	require.Len(t, store.messages, 1)
	assert.Equal(t, "case-1", store.messages[0].CaseID)
}

func TestMessageServicePostRejectsUnassignedCase(t *testing.T) {
	svc, store := newMessageServiceForTest(accessGateStub{c: poolCase("case-1", "clinic-1")})

	_, err := svc.Post(context.Background(), clinicClaims("user-clinic"), "case-1", dto.CreateMessageRequest{Content: "anyone there?"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "unassigned")
	assert.Empty(t, store.messages)
}

func TestMessageServicePoolCaseHiddenFromLabs(t *testing.T) {
	// Pool visibility lets a lab inspect a case, but the thread stays
	// closed until the lab is actually bound.
	svc, store := newMessageServiceForTest(accessGateStub{c: poolCase("case-1", "clinic-1")})

	_, err := svc.Thread(context.Background(), labClaims("user-lab"), "case-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Post(context.Background(), labClaims("user-lab"), "case-1", dto.CreateMessageRequest{Content: "I can take this"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.messages)
}

func TestMessageServicePostDeniedByGate(t *testing.T) {
	svc, store := newMessageServiceForTest(accessGateStub{err: appErrors.Clone(appErrors.ErrForbidden, "case is not visible to this lab")})

	_, err := svc.Post(context.Background(), labClaims("user-lab"), "case-1", dto.CreateMessageRequest{Content: "hello"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.messages)
}

func TestMessageServicePostRejectsEmptyContent(t *testing.T) {
	svc, _ := newMessageServiceForTest(accessGateStub{c: poolCase("case-1", "clinic-1")})

	_, err := svc.Post(context.Background(), clinicClaims("user-clinic"), "case-1", dto.CreateMessageRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMessageServiceThreadIncludesCaseContext(t *testing.T) {
	c := poolCase("case-1", "clinic-1")
	bound := "lab-1"
	c.LabID = &bound
	c.Status = models.StatusDesigning
	svc, store := newMessageServiceForTest(accessGateStub{c: c})
	store.messages = []models.Message{
		{ID: "m1", CaseID: "case-1", SenderID: "u1", Content: "first", SenderName: "Dr. Nguyen", SenderRole: models.RoleClinic},
		{ID: "m2", CaseID: "case-1", SenderID: "u2", Content: "second", SenderName: "ProLab", SenderRole: models.RoleLab},
	}

	thread, err := svc.Thread(context.Background(), clinicClaims("user-clinic"), "case-1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "first", thread.Messages[0].Content)
	assert.Equal(t, models.StatusDesigning, thread.CaseInfo.Status)
	assert.Equal(t, "Smile Clinic", thread.CaseInfo.Clinic)
	require.NotNil(t, thread.CaseInfo.Lab)
	assert.Equal(t, "ProLab", *thread.CaseInfo.Lab)
}
