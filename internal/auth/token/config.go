package token

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the signing material for both token kinds. It is built once at
// startup and shared by reference.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

var ErrConfig = errors.New("invalid token config")

// ConfigFromEnv reads ACCESS_TOKEN_SECRET, REFRESH_TOKEN_SECRET,
// ACCESS_TOKEN_EXPIRY, REFRESH_TOKEN_EXPIRY and TOKEN_ISSUER. Expiries fall back
// to 15m and 10d when unset or unparsable; secrets have no default.
func ConfigFromEnv() Config {
	access, err := ParseTTL(os.Getenv("ACCESS_TOKEN_EXPIRY"))
	if err != nil || access <= 0 {
		access = 15 * time.Minute
	}
	refresh, err := ParseTTL(os.Getenv("REFRESH_TOKEN_EXPIRY"))
	if err != nil || refresh <= 0 {
		refresh = 10 * 24 * time.Hour
	}
	return Config{
		AccessSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		AccessTTL:     access,
		RefreshTTL:    refresh,
		Issuer:        os.Getenv("TOKEN_ISSUER"),
	}
}

// Validate rejects configs where one token kind could stand in for the other.
func (c Config) Validate() error {
	switch {
	case c.AccessSecret == "" || c.RefreshSecret == "":
		return fmt.Errorf("%w: both secrets are required", ErrConfig)
	case c.AccessSecret == c.RefreshSecret:
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return fmt.Errorf("%w: expiries must be positive", ErrConfig)
	case c.AccessTTL == c.RefreshTTL:
		return fmt.Errorf("%w: access and refresh expiries must differ", ErrConfig)
	}
	return nil
}

// ParseTTL accepts Go durations ("15m", "1h30m"), a day suffix ("10d") and
// bare integers, which are seconds.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("parse days %q: %w", s, err)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(s)
}
