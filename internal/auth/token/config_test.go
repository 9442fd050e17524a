package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"15m":   15 * time.Minute,
		"1h30m": 90 * time.Minute,
		"10d":   240 * time.Hour,
		"0.5d":  12 * time.Hour,
		"900":   900 * time.Second,
		" 1d ":  24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "xd", "ten minutes"} {
		_, err := ParseTTL(bad)
		assert.Error(t, err, bad)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "r")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "1d")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "10d")
	t.Setenv("TOKEN_ISSUER", "iss")

	cfg := ConfigFromEnv()
	assert.Equal(t, "a", cfg.AccessSecret)
	assert.Equal(t, "r", cfg.RefreshSecret)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 240*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "iss", cfg.Issuer)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRY", "")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "garbage")

	cfg := ConfigFromEnv()
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTTL)
}
