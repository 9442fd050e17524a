package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    10 * 24 * time.Hour,
		Issuer:        "account-service",
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	m, err := NewManager(testConfig())
	require.NoError(t, err)
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return m.WithClock(clk.Now), clk
}

var alice = AccessSubject{ID: "1001", Email: "a@x.com", Username: "alice", FullName: "alice liddell"}

func TestIssueVerifyAccess(t *testing.T) {
	m, clk := newTestManager(t)

	tok, exp, err := m.IssueAccess(alice)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(15*time.Minute), exp)

	claims, err := m.VerifyAccess(tok)
	require.NoError(t, err)
	assert.Equal(t, "1001", claims.AccountID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice liddell", claims.FullName)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyAccess_ExpiresAfterTTL(t *testing.T) {
	m, clk := newTestManager(t)
	tok, _, err := m.IssueAccess(alice)
	require.NoError(t, err)

	clk.Advance(14 * time.Minute)
	_, err = m.VerifyAccess(tok)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = m.VerifyAccess(tok)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestIssueVerifyRefresh(t *testing.T) {
	m, clk := newTestManager(t)
	tok, exp, err := m.IssueRefresh("1001")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(10*24*time.Hour), exp)

	claims, err := m.VerifyRefresh(tok)
	require.NoError(t, err)
	assert.Equal(t, "1001", claims.AccountID)

	clk.Advance(10*24*time.Hour + time.Second)
	_, err = m.VerifyRefresh(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	m, _ := newTestManager(t)
	a, _, err := m.IssueRefresh("1001")
	require.NoError(t, err)
	b, _, err := m.IssueRefresh("1001")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m, _ := newTestManager(t)
	access, _, err := m.IssueAccess(alice)
	require.NoError(t, err)
	refresh, _, err := m.IssueRefresh("1001")
	require.NoError(t, err)

	_, err = m.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = m.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_Malformed(t *testing.T) {
	m, _ := newTestManager(t)
	for _, tok := range []string{"", "not.a.jwt", "a.b", "eyJhbGciOiJIUzI1NiJ9.e30.sig"} {
		_, err := m.VerifyAccess(tok)
		assert.ErrorIs(t, err, ErrMalformed, "tok=%q", tok)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m, _ := newTestManager(t)
	tok, _, err := m.IssueRefresh("1001")
	require.NoError(t, err)

	other := testConfig()
	other.RefreshSecret = "someone-elses-secret"
	m2, err := NewManager(other)
	require.NoError(t, err)

	_, err = m2.VerifyRefresh(tok)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	m, clk := newTestManager(t)
	claims := RefreshClaims{
		AccountID: "1001",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "account-service",
			Audience:  jwt.ClaimStrings{"refresh"},
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.VerifyRefresh(tok)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewManager_RejectsBadConfig(t *testing.T) {
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrConfig)

	same := testConfig()
	same.RefreshSecret = same.AccessSecret
	_, err = NewManager(same)
	assert.ErrorIs(t, err, ErrConfig)

	sameTTL := testConfig()
	sameTTL.RefreshTTL = sameTTL.AccessTTL
	_, err = NewManager(sameTTL)
	assert.ErrorIs(t, err, ErrConfig)

	missing := testConfig()
	missing.AccessSecret = ""
	_, err = NewManager(missing)
	assert.ErrorIs(t, err, ErrConfig)
}
