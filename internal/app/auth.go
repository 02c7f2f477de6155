package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"giveaway-quiz-service/internal/domain"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig configures admin authentication.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// SecretKey, when set, is accepted as a static admin credential.
	SecretKey string
}

// AuthService manages administrator accounts and checks admin credentials.
type AuthService struct {
	admins  AdminRepository
	limiter AttemptLimiter
	cfg     AuthConfig
	clock   clockwork.Clock
}

type adminClaims struct {
	AdminID int64 `json:"adminId"`
	jwt.RegisteredClaims
}

func NewAuthService(admins AdminRepository, limiter AttemptLimiter, cfg AuthConfig, clock clockwork.Clock) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthService{admins: admins, limiter: limiter, cfg: cfg, clock: clock}
}

// AdminExists reports whether setup has already run.
func (s *AuthService) AdminExists(ctx context.Context) (bool, error) {
	n, err := s.admins.CountAdmins(ctx)
	return n > 0, err
}

// SetupAdmin creates the first administrator. It fails once any admin exists.
func (s *AuthService) SetupAdmin(ctx context.Context, username, password string) (domain.Admin, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return domain.Admin{}, fmt.Errorf("%w: username must be at least 3 characters", domain.ErrValidation)
	}
	if len(password) < 6 {
		return domain.Admin{}, fmt.Errorf("%w: password must be at least 6 characters", domain.ErrValidation)
	}
	exists, err := s.AdminExists(ctx)
	if err != nil {
		return domain.Admin{}, err
	}
	if exists {
		return domain.Admin{}, domain.ErrAdminExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return domain.Admin{}, err
	}
	admin := domain.Admin{Username: username, PasswordHash: string(hash), CreatedAt: s.clock.Now()}
	if err := s.admins.CreateAdmin(ctx, &admin); err != nil {
		return domain.Admin{}, err
	}
	log.Info().Str("admin", username).Msg("admin created")
	return admin, nil
}

// Login verifies credentials for clientKey (usually the caller IP) and returns
// a signed token. Repeated failures lock the client out.
func (s *AuthService) Login(ctx context.Context, clientKey, username, password string) (string, error) {
	blocked, remaining, err := s.limiter.Blocked(ctx, clientKey)
	if err != nil {
		return "", err
	}
	if blocked {
		return "", fmt.Errorf("%w: retry in %s", domain.ErrTooManyAttempts, remaining.Round(time.Minute))
	}

	admin, err := s.verify(ctx, strings.TrimSpace(username), password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			if ferr := s.limiter.Fail(ctx, clientKey); ferr != nil {
				log.Error().Err(ferr).Str("client", clientKey).Msg("record login failure")
			}
		}
		return "", err
	}
	if err := s.limiter.Reset(ctx, clientKey); err != nil {
		log.Error().Err(err).Str("client", clientKey).Msg("reset login attempts")
	}
	return s.issueToken(admin)
}

// Authorize accepts a bearer token or the static secret key and returns the
// admin ID behind it (0 for the secret key).
func (s *AuthService) Authorize(_ context.Context, credential string) (int64, error) {
	if credential == "" {
		return 0, domain.ErrUnauthorized
	}
	if s.cfg.SecretKey != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(s.cfg.SecretKey)) == 1 {
		return 0, nil
	}
	if s.cfg.JWTSecret == "" {
		return 0, domain.ErrUnauthorized
	}

	claims := &adminClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(credential, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	if !claims.VerifyExpiresAt(s.clock.Now(), true) {
		return 0, domain.ErrUnauthorized
	}
	return claims.AdminID, nil
}

func (s *AuthService) verify(ctx context.Context, username, password string) (domain.Admin, error) {
	if username == "" || password == "" {
		return domain.Admin{}, domain.ErrUnauthorized
	}
	admin, err := s.admins.FindAdmin(ctx, username)
	if errors.Is(err, domain.ErrAdminNotFound) {
		return domain.Admin{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.Admin{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return domain.Admin{}, domain.ErrUnauthorized
	}
	return admin, nil
}

func (s *AuthService) issueToken(admin domain.Admin) (string, error) {
	if s.cfg.JWTSecret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := s.clock.Now()
	claims := adminClaims{
		AdminID: admin.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(admin.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}
