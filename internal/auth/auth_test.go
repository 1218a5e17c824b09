package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret-test-secret-test-secret", Issuer: "ecotrack-test"}

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := Issue(testConfig, IssueParams{Subject: "user-1", Name: "Ada", Scopes: []string{ScopeActivitiesRead, ScopeActivitiesWrite}})
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.True(t, claims.HasScope(ScopeActivitiesWrite))
	assert.False(t, claims.HasScope(ScopeCommunityWrite))
	assert.Equal(t, []string{ScopeActivitiesRead, ScopeActivitiesWrite}, claims.ScopeList())
}

func TestParseRejectsBadTokens(t *testing.T) {
	expired, err := Issue(testConfig, IssueParams{Subject: "u", TTL: time.Minute, Now: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	wrongIssuer, err := Issue(Config{Secret: testConfig.Secret, Issuer: "someone-else"}, IssueParams{Subject: "u"})
	require.NoError(t, err)

	wrongSecret, err := Issue(Config{Secret: "another-secret-another-secret-xx", Issuer: testConfig.Issuer}, IssueParams{Subject: "u"})
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "iss": testConfig.Issuer}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": testConfig.Issuer, "exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"wrong secret": wrongSecret,
		"no expiry":    noExpiry,
		"no subject":   noSubject,
		"garbage":      "not-a-jwt",
	} {
		_, err := Parse(token, testConfig)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}

	_, err = Parse("  ", testConfig)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNormalizeScopesAcceptsArrays(t *testing.T) {
	scopes := normalizeScopes([]interface{}{"a", "", 3, "b"})
	assert.Len(t, scopes, 2)
	assert.Contains(t, scopes, "a")
	assert.Contains(t, scopes, "b")
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig).Wrap(next)

	token, err := Issue(testConfig, IssueParams{Subject: "user-9"})
	require.NoError(t, err)

	t.Run("public path", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/footprint", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"type":"unauthorized","detail":"missing bearer token"}`, rec.Body.String())
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/footprint", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "user-9", seen.Subject)
	})

	t.Run("query token only on websocket upgrade", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/live?access_token="+token, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/v1/live?access_token="+token, nil)
		req.Header.Set("Upgrade", "websocket")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/footprint", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
