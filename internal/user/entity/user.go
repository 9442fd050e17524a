package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/token"
)

// User represents an account row in the `users` table.
// PasswordHash and RefreshToken never leave the service: both are excluded from JSON.
type User struct {
	ID            string       `db:"id" json:"id"`
	Username      string       `db:"username" json:"username"`
	Email         string       `db:"email" json:"email"`
	FullName      string       `db:"full_name" json:"fullName"`
	AvatarURL     string       `db:"avatar_url" json:"avatar"`
	CoverImageURL string       `db:"cover_image_url" json:"coverImage"`
	PasswordHash  string       `db:"password_hash" json:"-"`
	RefreshToken  *string      `db:"refresh_token" json:"-"`
	WatchHistory  WatchHistory `db:"watch_history" json:"watchHistory"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
}

// Public returns a copy of u with secrets cleared.
func (u *User) Public() *User {
	cp := *u
	cp.PasswordHash = ""
	cp.RefreshToken = nil
	return &cp
}

// AccessSubject is the identity an access token is minted for.
func (u *User) AccessSubject() token.AccessSubject {
	return token.AccessSubject{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
	}
}

// NormalizeIdentity lowercases and trims a username or email.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// WatchHistory is the ordered list of watched video ids, oldest first.
// Stored as a JSONB array.
type WatchHistory []string

func (w WatchHistory) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(w))
}

func (w *WatchHistory) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*w = WatchHistory{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("watch history: unsupported type %T", src)
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return errors.Join(errors.New("watch history: bad json"), err)
	}
	if ids == nil {
		ids = []string{}
	}
	*w = ids
	return nil
}

// ChannelProfile is a user's public page as seen by a viewer.
type ChannelProfile struct {
	ID                        string `json:"id"`
	Username                  string `json:"username"`
	FullName                  string `json:"fullName"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}
