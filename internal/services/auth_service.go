package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bvabank/backend/internal/access"
	"github.com/bvabank/backend/internal/config"
	"github.com/bvabank/backend/internal/logger"
	"github.com/bvabank/backend/internal/models"
	"github.com/bvabank/backend/internal/store"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"` // Login email
	Password string `json:"password" validate:"required" example:"password123"`         // Password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token     string          `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	ExpiresAt time.Time       `json:"expiresAt"`
	User      *models.Account `json:"user,omitempty"`
}

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	tokens    *access.TokenManager
	admin     config.AdminConfig
	login     config.LoginConfig
	validator *ValidationHelper
	now       func() time.Time
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, tokens *access.TokenManager, admin config.AdminConfig, login config.LoginConfig) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		tokens:    tokens,
		admin:     admin,
		login:     login,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// AdminLogin checks the shared administrator credential pair.
func (s *AuthService) AdminLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}
	key := attemptsKey("admin", req.Email)
	if err := s.checkRateLimit(ctx, key); err != nil {
		return nil, err
	}

	if s.admin.Email == "" || s.admin.Password == "" ||
		subtle.ConstantTimeCompare([]byte(strings.ToLower(req.Email)), []byte(strings.ToLower(s.admin.Email))) != 1 ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.admin.Password)) != 1 {
		s.recordFailure(ctx, key)
		logger.Info("AUTH", "admin login rejected", logger.Fields{"email": req.Email})
		return nil, fmt.Errorf("%w: invalid admin credentials", models.ErrUnauthorized)
	}
	s.resetAttempts(ctx, key)

	token, expiresAt, err := s.tokens.IssueAdmin(s.admin.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStore, err)
	}
	logger.Info("AUTH", "admin login successful", nil)
	return &AuthResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// UserLogin authenticates an account holder by email and password.
// Blocked accounts are refused with ErrForbidden after the password checks out.
func (s *AuthService) UserLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}
	key := attemptsKey("user", req.Email)
	if err := s.checkRateLimit(ctx, key); err != nil {
		return nil, err
	}

	account, err := store.GetAccountByEmail(ctx, s.db, strings.TrimSpace(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		s.recordFailure(ctx, key)
		logger.Info("AUTH", "user not found", logger.Fields{"email": req.Email})
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !verifyPassword(req.Password, account.PasswordHash) {
		s.recordFailure(ctx, key)
		logger.Info("AUTH", "invalid password", logger.Fields{"accountId": account.ID})
		return nil, errInvalidCredentials
	}
	s.resetAttempts(ctx, key)

	if account.IsBlocked {
		return nil, fmt.Errorf("%w: account is blocked", models.ErrForbidden)
	}

	token, expiresAt, err := s.tokens.IssueUser(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStore, err)
	}
	logger.Info("AUTH", "user login successful", logger.Fields{"accountId": account.ID})
	return &AuthResponse{Token: token, ExpiresAt: expiresAt, User: account}, nil
}

// Logout revokes the token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, claims *access.Claims) error {
	if s.redis == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKey(claims.ID), "1", ttl).Err(); err != nil {
		logger.Error("AUTH", "failed to revoke token", err, nil)
		return fmt.Errorf("%w: revoke token: %w", models.ErrStore, err)
	}
	return nil
}

// IsRevoked reports whether a token id was logged out. Without Redis nothing is revoked.
func (s *AuthService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.redis == nil || tokenID == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Parse verifies a bearer token and rejects revoked ones. A failed revocation lookup
// rejects the token with ErrStore.
func (s *AuthService) Parse(ctx context.Context, token string) (access.Principal, *access.Claims, error) {
	principal, claims, err := s.tokens.Parse(token)
	if err != nil {
		return principal, nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}

	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.Error("AUTH", "revocation check failed", err, nil)
		return access.Principal{Kind: access.Anonymous}, nil, fmt.Errorf("%w: revocation check: %w", models.ErrStore, err)
	}
	if revoked {
		return access.Principal{Kind: access.Anonymous}, nil, fmt.Errorf("%w: token revoked", models.ErrUnauthorized)
	}
	return principal, claims, nil
}

func (s *AuthService) checkRateLimit(ctx context.Context, key string) error {
	if s.redis == nil || s.login.MaxAttempts <= 0 {
		return nil
	}
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		logger.Error("AUTH", "rate limit lookup failed", err, nil)
		return nil
	}
	if count >= s.login.MaxAttempts {
		return fmt.Errorf("%w: try again later", models.ErrRateLimited)
	}
	return nil
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		logger.Error("AUTH", "failed to record login attempt", err, nil)
		return
	}
	// the window starts at the first failure
	if count == 1 {
		s.redis.Expire(ctx, key, s.login.Window)
	}
}

func (s *AuthService) resetAttempts(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, key)
}

func attemptsKey(kind, email string) string {
	return fmt.Sprintf("login:attempts:%s:%s", kind, strings.ToLower(strings.TrimSpace(email)))
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("blacklist:%s", tokenID)
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
