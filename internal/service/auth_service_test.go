package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-file-collector/internal/model"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeAdminStore) {
	t.Helper()
	admin := &fakeAdminStore{}
	svc := NewAuthService(admin, "test-secret", time.Hour)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin", "correct-horse"))
	return svc, admin
}

func TestLoginAndValidate(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apiCode(t, err))
}

func TestLoginWrongUsername(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), model.LoginRequest{Username: "root", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apiCode(t, err))
}

func TestValidateTokenGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc, admin := newAuthFixture(t)

	other := NewAuthService(admin, "different-secret", time.Hour)
	resp, err := other.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	require.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	admin := &fakeAdminStore{}
	svc := NewAuthService(admin, "test-secret", -time.Minute)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin", "correct-horse"))

	resp, err := svc.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	require.Error(t, err)
}

func TestEnsureAdminSeedsOnce(t *testing.T) {
	svc, _ := newAuthFixture(t)

	// A second seed with a new password must not replace the stored one.
	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin", "other-password"))

	_, err := svc.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "correct-horse"})
	assert.NoError(t, err)
}
