package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dentalink/dentalink-api/internal/models"
	appErrors "github.com/dentalink/dentalink-api/pkg/errors"
)

type authRepoStub struct {
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	resetTokens   map[string]*models.PasswordResetToken

	createdUser    *models.User
	updatedHash    string
	revokedAll     []string
	revokedTokens  []string
	deletedResets  []string
	replacedResets []*models.PasswordResetToken
	auditActions   []string
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		usersByEmail:  map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		resetTokens:   map[string]*models.PasswordResetToken{},
	}
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range s.usersByEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) CreateWithProfile(ctx context.Context, user *models.User) error {
	s.createdUser = user
	s.usersByEmail[user.Email] = user
	return nil
}

func (s *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.updatedHash = passwordHash
	return nil
}

func (s *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revokedAll = append(s.revokedAll, userID)
	return nil
}

func (s *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = token
	return nil
}

func (s *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := s.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.revokedTokens = append(s.revokedTokens, id)
	for _, t := range s.refreshTokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (s *authRepoStub) ReplaceResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	s.replacedResets = append(s.replacedResets, token)
	s.resetTokens[token.Email] = token
	return nil
}

func (s *authRepoStub) FindResetToken(ctx context.Context, email, token string) (*models.PasswordResetToken, error) {
	if t, ok := s.resetTokens[email]; ok && t.Token == token {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) DeleteResetToken(ctx context.Context, id string) error {
	s.deletedResets = append(s.deletedResets, id)
	return nil
}

func (s *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.auditActions = append(s.auditActions, log.Action)
	return nil
}

func newAuthServiceForTest(repo *authRepoStub) *AuthService {
	return NewAuthService(repo, nil, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		ResetTokenExpiry:   15 * time.Minute,
		Issuer:             "dentalink-api",
		Audience:           []string{"dentalink"},
	})
}

func TestAuthServiceRegisterIssuesTokens(t *testing.T) {
	repo := newAuthRepoStub()
	svc := newAuthServiceForTest(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Smile Clinic", Email: "clinic@example.com", Password: "secret1", Role: models.RoleClinic,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleClinic, repo.createdUser.Role)
	assert.Contains(t, repo.auditActions, models.AuditActionRegister)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, repo.createdUser.ID, claims.UserID)
	assert.Equal(t, models.RoleClinic, claims.Role)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newAuthRepoStub()
	repo.usersByEmail["clinic@example.com"] = &models.User{ID: "u1", Email: "clinic@example.com"}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name: "Smile Clinic", Email: "clinic@example.com", Password: "secret1", Role: models.RoleClinic,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	repo := newAuthRepoStub()
	repo.usersByEmail["clinic@example.com"] = &models.User{
		ID: "u1", Email: "clinic@example.com", PasswordHash: string(hash), Role: models.RoleClinic,
	}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "clinic@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.usersByEmail["lab@example.com"] = &models.User{ID: "u1", Email: "lab@example.com", Role: models.RoleLab}
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID: "rt-1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := newAuthServiceForTest(repo)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revokedTokens, "rt-1")
}

func TestAuthServiceRefreshRejectsRevoked(t *testing.T) {
	repo := newAuthRepoStub()
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID: "rt-1", UserID: "u1", Token: "old-token", Revoked: true, ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := newAuthServiceForTest(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt-1", UserID: "u1", Token: "token"}
	svc := newAuthServiceForTest(repo)

	err := svc.Logout(context.Background(), "token", "u2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRequestResetUnknownEmailSilent(t *testing.T) {
	repo := newAuthRepoStub()
	svc := newAuthServiceForTest(repo)

	err := svc.RequestPasswordReset(context.Background(), models.RequestResetRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.Empty(t, repo.replacedResets)
}

func TestAuthServiceRequestResetStoresCode(t *testing.T) {
	repo := newAuthRepoStub()
	repo.usersByEmail["clinic@example.com"] = &models.User{ID: "u1", Email: "clinic@example.com"}
	svc := newAuthServiceForTest(repo)

	err := svc.RequestPasswordReset(context.Background(), models.RequestResetRequest{Email: "clinic@example.com"})
	require.NoError(t, err)
	require.Len(t, repo.replacedResets, 1)
	assert.Len(t, repo.replacedResets[0].Token, 6)
}

func TestAuthServiceResetPasswordConsumesCode(t *testing.T) {
	repo := newAuthRepoStub()
	repo.usersByEmail["clinic@example.com"] = &models.User{ID: "u1", Email: "clinic@example.com"}
	repo.resetTokens["clinic@example.com"] = &models.PasswordResetToken{
		ID: "prt-1", Email: "clinic@example.com", Token: "123456", ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	svc := newAuthServiceForTest(repo)

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Email: "clinic@example.com", Token: "123456", NewPassword: "newsecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.updatedHash)
	assert.Contains(t, repo.deletedResets, "prt-1")
	assert.Contains(t, repo.revokedAll, "u1")
	assert.Contains(t, repo.auditActions, models.AuditActionPasswordReset)
}

func TestAuthServiceResetPasswordExpiredCode(t *testing.T) {
	repo := newAuthRepoStub()
	repo.usersByEmail["clinic@example.com"] = &models.User{ID: "u1", Email: "clinic@example.com"}
	repo.resetTokens["clinic@example.com"] = &models.PasswordResetToken{
		ID: "prt-1", Email: "clinic@example.com", Token: "123456", ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	svc := newAuthServiceForTest(repo)

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Email: "clinic@example.com", Token: "123456", NewPassword: "newsecret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.Contains(t, repo.deletedResets, "prt-1")
	assert.Empty(t, repo.updatedHash)
}
