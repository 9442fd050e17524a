package session

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/password"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/token"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// Accounts is the part of the user repository the session manager reads and writes.
type Accounts interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// Store holds the current refresh token of each account.
type Store interface {
	Set(ctx context.Context, userID string, token *string) error
	Get(ctx context.Context, userID string) (*string, error)
	Rotate(ctx context.Context, userID, expected, next string) (bool, error)
}

// SessionService runs login, refresh rotation, logout and password change.
// An account is logged in while its stored refresh token is non-nil; only the
// token equal to the stored value may be exchanged for a new pair.
type SessionService struct {
	accounts  Accounts
	store     Store
	tokens    *token.Manager
	hasher    password.Hasher
	logger    *zap.SugaredLogger
	metrics   metrics.Recorder
	dummyHash string
}

func NewSessionService(accounts Accounts, store Store, tokens *token.Manager, hasher password.Hasher, logger *zap.SugaredLogger, rec metrics.Recorder) *SessionService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	// compared against when the account does not exist so both login failures cost one bcrypt run
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		logger.Warnw("dummy hash", "err", err)
	}
	return &SessionService{
		accounts:  accounts,
		store:     store,
		tokens:    tokens,
		hasher:    hasher,
		logger:    logger,
		metrics:   rec,
		dummyHash: dummy,
	}
}

func (s *SessionService) internal(op string, err error) error {
	s.logger.Errorw(op+" failed", "err", err)
	return apperr.New(apperr.ErrInternal, "")
}

func (s *SessionService) issue(u *entity.User) (*TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(u.AccessSubject())
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Login authenticates by username or email and starts a new session,
// replacing any previous one.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (res *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	username := entity.NormalizeIdentity(in.Username)
	email := entity.NormalizeIdentity(in.Email)
	if username == "" && email == "" {
		return nil, apperr.New(apperr.ErrValidation, "username or email is required")
	}
	if in.Password == "" {
		return nil, apperr.New(apperr.ErrValidation, "password is required")
	}

	u, err := s.accounts.FindByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, sql.ErrNoRows) {
		s.hasher.Verify(s.dummyHash, in.Password)
		return nil, apperr.New(apperr.ErrNotFound, "user does not exist")
	}
	if err != nil {
		return nil, s.internal("login lookup", err)
	}
	if !s.hasher.Verify(u.PasswordHash, in.Password) {
		return nil, apperr.New(apperr.ErrInvalidCredentials, "invalid user credentials")
	}

	pair, err := s.issue(u)
	if err != nil {
		return nil, s.internal("login issue tokens", err)
	}
	if err := s.store.Set(ctx, u.ID, &pair.RefreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "user does not exist")
		}
		return nil, s.internal("login store refresh token", err)
	}
	s.logger.Debugw("user logged in", "user_id", u.ID)
	return &LoginResult{User: u.Public(), TokenPair: *pair}, nil
}

// Refresh exchanges the current refresh token for a new pair. A verified
// token that is not the stored one is treated as a replay and fails with
// apperr.ErrTokenReuse; the live session is left untouched.
func (s *SessionService) Refresh(ctx context.Context, incoming string) (pair *TokenPair, err error) {
	defer func() { s.metrics.AuthEvent("refresh", err) }()

	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return nil, apperr.New(apperr.ErrInvalidToken, "unauthorized request")
	}
	claims, err := s.tokens.VerifyRefresh(incoming)
	if errors.Is(err, token.ErrExpired) {
		return nil, apperr.New(apperr.ErrExpiredToken, "refresh token expired")
	}
	if err != nil {
		return nil, apperr.New(apperr.ErrInvalidToken, "invalid refresh token")
	}
	id := claims.AccountID

	current, err := s.store.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "user does not exist")
	}
	if err != nil {
		return nil, s.internal("refresh load session", err)
	}
	if current == nil {
		return nil, apperr.New(apperr.ErrInvalidToken, "session has ended")
	}
	if subtle.ConstantTimeCompare([]byte(*current), []byte(incoming)) != 1 {
		s.logger.Warnw("refresh token reuse", "user_id", id)
		return nil, apperr.New(apperr.ErrTokenReuse, "refresh token is expired or used")
	}

	u, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "user does not exist")
	}
	if err != nil {
		return nil, s.internal("refresh load user", err)
	}
	pair, err = s.issue(u)
	if err != nil {
		return nil, s.internal("refresh issue tokens", err)
	}
	ok, err := s.store.Rotate(ctx, id, incoming, pair.RefreshToken)
	if err != nil {
		return nil, s.internal("refresh rotate", err)
	}
	if !ok {
		s.logger.Warnw("refresh token rotated concurrently", "user_id", id)
		return nil, apperr.New(apperr.ErrTokenReuse, "refresh token is expired or used")
	}
	return pair, nil
}

// Logout clears the stored refresh token. Logging out twice is not an error.
func (s *SessionService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.AuthEvent("logout", err) }()

	if err := s.store.Set(ctx, userID, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "user does not exist")
		}
		return s.internal("logout", err)
	}
	s.logger.Debugw("user logged out", "user_id", userID)
	return nil
}

// ChangePassword replaces the password after checking the old one. The
// current session stays valid.
func (s *SessionService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { s.metrics.AuthEvent("change_password", err) }()

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperr.New(apperr.ErrValidation, "old and new password are required")
	}
	u, err := s.accounts.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.ErrNotFound, "user does not exist")
	}
	if err != nil {
		return s.internal("change password load user", err)
	}
	if !s.hasher.Verify(u.PasswordHash, oldPassword) {
		return apperr.New(apperr.ErrInvalidCredentials, "invalid old password")
	}
	h, err := s.hasher.Hash(newPassword)
	if errors.Is(err, password.ErrTooLong) {
		return apperr.New(apperr.ErrValidation, "password must be at most 72 bytes")
	}
	if err != nil {
		return s.internal("change password hash", err)
	}
	if err := s.accounts.UpdatePassword(ctx, userID, h); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "user does not exist")
		}
		return s.internal("change password update", err)
	}
	return nil
}
