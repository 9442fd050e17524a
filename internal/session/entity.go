package session

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
)

// TokenPair is one access token and the refresh token issued with it.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned by a successful login. User has its secrets stripped.
type LoginResult struct {
	User *entity.User `json:"user"`
	TokenPair
}
