// Package token issues and verifies the signed access and refresh tokens.
//
// Access tokens carry the account's identity claims and are checked purely
// cryptographically. Refresh tokens carry only the account id; whether one is
// still current is decided by the caller against stored state.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalid   = errors.New("invalid token")
	ErrExpired   = fmt.Errorf("%w: expired", ErrInvalid)
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalid)
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

// AccessSubject is the identity an access token is minted for.
type AccessSubject struct {
	ID       string
	Email    string
	Username string
	FullName string
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	AccountID string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	AccountID string `json:"id"`
	jwt.RegisteredClaims
}

// Manager signs and verifies both token kinds with HS256.
type Manager struct {
	cfg *Config
	now func() time.Time
}

// NewManager validates cfg and returns a Manager bound to it.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of m that reads the current time from now.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *Manager) registered(subject, audience string, ttl time.Duration) (jwt.RegisteredClaims, time.Time) {
	now := m.now()
	exp := now.Add(ttl)
	return jwt.RegisteredClaims{
		Issuer:    m.cfg.Issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		// unique per token so two issued within the same second never collide
		ID: uuid.NewString(),
	}, exp
}

// IssueAccess signs the identity claims of s with the access secret.
func (m *Manager) IssueAccess(s AccessSubject) (string, time.Time, error) {
	rc, exp := m.registered(s.ID, audienceAccess, m.cfg.AccessTTL)
	claims := AccessClaims{
		AccountID:        s.ID,
		Email:            s.Email,
		Username:         s.Username,
		FullName:         s.FullName,
		RegisteredClaims: rc,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.AccessSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh signs the account id with the refresh secret.
func (m *Manager) IssueRefresh(accountID string) (string, time.Time, error) {
	rc, exp := m.registered(accountID, audienceRefresh, m.cfg.RefreshTTL)
	claims := RefreshClaims{AccountID: accountID, RegisteredClaims: rc}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.RefreshSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess checks signature, audience and expiry of an access token.
func (m *Manager) VerifyAccess(tok string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tok, claims, m.cfg.AccessSecret, audienceAccess); err != nil {
		return nil, err
	}
	if claims.AccountID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// VerifyRefresh checks signature, audience and expiry of a refresh token.
// It does not consult stored state.
func (m *Manager) VerifyRefresh(tok string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tok, claims, m.cfg.RefreshSecret, audienceRefresh); err != nil {
		return nil, err
	}
	if claims.AccountID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (m *Manager) parse(tok string, claims jwt.Claims, secret, audience string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
