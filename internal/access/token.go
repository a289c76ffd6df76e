package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by both session and administrator tokens.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret      []byte
	userExpiry  time.Duration
	adminExpiry time.Duration
	now         func() time.Time
}

func NewTokenManager(secret string, userExpiry, adminExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		userExpiry:  userExpiry,
		adminExpiry: adminExpiry,
		now:         time.Now,
	}
}

// IssueUser returns a session credential for one account.
func (m *TokenManager) IssueUser(accountID, email string) (string, time.Time, error) {
	return m.issue(Claims{UserID: accountID, Email: email}, m.userExpiry)
}

// IssueAdmin returns an administrator credential.
func (m *TokenManager) IssueAdmin(email string) (string, time.Time, error) {
	return m.issue(Claims{Admin: true, Email: email}, m.adminExpiry)
}

func (m *TokenManager) issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies the signature and expiry and classifies the bearer.
func (m *TokenManager) Parse(tokenString string) (Principal, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Principal{Kind: Anonymous}, nil, err
	}
	if !token.Valid {
		return Principal{Kind: Anonymous}, nil, errors.New("invalid token")
	}

	switch {
	case claims.Admin:
		return Principal{Kind: Admin, Email: claims.Email}, claims, nil
	case claims.UserID != "":
		return Principal{Kind: User, AccountID: claims.UserID, Email: claims.Email}, claims, nil
	}
	return Principal{Kind: Anonymous}, nil, errors.New("token carries no principal")
}
