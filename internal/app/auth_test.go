package app_test

import (
	"context"
	"testing"
	"time"

	"giveaway-quiz-service/internal/app"
	"giveaway-quiz-service/internal/domain"
	"giveaway-quiz-service/internal/infra/memory"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(t *testing.T, cfg app.AuthConfig) (*app.AuthService, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Now())
	store := memory.NewStore()
	limiter := memory.NewAttemptLimiter(5, 15*time.Minute, clock)
	return app.NewAuthService(store, limiter, cfg, clock), clock
}

func TestSetupAdminOnlyOnce(t *testing.T) {
	auth, _ := newAuth(t, app.AuthConfig{JWTSecret: "test-secret"})
	ctx := context.Background()

	exists, err := auth.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = auth.SetupAdmin(ctx, "ab", "secret1")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = auth.SetupAdmin(ctx, "admin", "12345")
	assert.ErrorIs(t, err, domain.ErrValidation)

	admin, err := auth.SetupAdmin(ctx, " admin ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Username)
	assert.NotEqual(t, "secret1", admin.PasswordHash)

	exists, err = auth.AdminExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = auth.SetupAdmin(ctx, "other", "secret2")
	assert.ErrorIs(t, err, domain.ErrAdminExists)
}

func TestLoginIssuesTokenThatAuthorizes(t *testing.T) {
	auth, clock := newAuth(t, app.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
	ctx := context.Background()
	admin, err := auth.SetupAdmin(ctx, "admin", "secret1")
	require.NoError(t, err)

	token, err := auth.Login(ctx, "10.0.0.1", "admin", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := auth.Authorize(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, id)

	clock.Advance(2 * time.Hour)
	_, err = auth.Authorize(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthorizeRejectsForeignTokens(t *testing.T) {
	auth, _ := newAuth(t, app.AuthConfig{JWTSecret: "test-secret"})
	other, _ := newAuth(t, app.AuthConfig{JWTSecret: "other-secret"})
	ctx := context.Background()

	_, err := other.SetupAdmin(ctx, "admin", "secret1")
	require.NoError(t, err)
	token, err := other.Login(ctx, "ip", "admin", "secret1")
	require.NoError(t, err)

	_, err = auth.Authorize(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = auth.Authorize(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = auth.Authorize(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthorizeAcceptsSecretKey(t *testing.T) {
	auth, _ := newAuth(t, app.AuthConfig{JWTSecret: "test-secret", SecretKey: "let-me-in"})
	ctx := context.Background()

	id, err := auth.Authorize(ctx, "let-me-in")
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = auth.Authorize(ctx, "let-me-out")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginLocksOutAfterRepeatedFailures(t *testing.T) {
	auth, clock := newAuth(t, app.AuthConfig{JWTSecret: "test-secret"})
	ctx := context.Background()
	_, err := auth.SetupAdmin(ctx, "admin", "secret1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := auth.Login(ctx, "10.0.0.1", "nobody", "wrong")
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	}

	_, err = auth.Login(ctx, "10.0.0.1", "admin", "secret1")
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	token, err := auth.Login(ctx, "10.0.0.2", "admin", "secret1")
	require.NoError(t, err, "other clients are not affected")
	assert.NotEmpty(t, token)

	clock.Advance(16 * time.Minute)
	_, err = auth.Login(ctx, "10.0.0.1", "admin", "secret1")
	assert.NoError(t, err)
}

func TestLoginWithoutJWTSecretFails(t *testing.T) {
	auth, _ := newAuth(t, app.AuthConfig{})
	ctx := context.Background()
	_, err := auth.SetupAdmin(ctx, "admin", "secret1")
	require.NoError(t, err)

	_, err = auth.Login(ctx, "ip", "admin", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthorizeRejectsTokensWithoutJWTSecret(t *testing.T) {
	auth, clock := newAuth(t, app.AuthConfig{SecretKey: "static-key"})
	ctx := context.Background()

	claims := jwt.MapClaims{"adminId": 42, "exp": clock.Now().Add(time.Hour).Unix()}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(""))
	require.NoError(t, err)

	_, err = auth.Authorize(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	id, err := auth.Authorize(ctx, "static-key")
	require.NoError(t, err)
	assert.Zero(t, id)
}
