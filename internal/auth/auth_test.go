package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-123"

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	m := NewJWTManager(testSecret, "front-desk", time.Hour)

	token, expiresAt, err := m.GenerateToken("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.NotEqual(t, uuid.Nil, claims.UUID)
}

func TestJWTManager_GenerateToken_Errors(t *testing.T) {
	_, _, err := NewJWTManager("", "k", time.Hour).GenerateToken("alice")
	assert.Error(t, err)

	_, _, err = NewJWTManager(testSecret, "k", time.Hour).GenerateToken("")
	assert.Error(t, err)
}

func TestJWTManager_ValidateToken_Rejects(t *testing.T) {
	m := NewJWTManager(testSecret, "k", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("another-secret-key-that-is-long-enough", "k", time.Hour)
		token, _, err := other.GenerateToken("alice")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewJWTManager(testSecret, "k", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.GenerateToken("alice")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing operator", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"jti": "8d3c7a70-3f0e-4c43-9d59-7d1b4f7f8a10",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"operator": "alice",
			"jti":      "8d3c7a70-3f0e-4c43-9d59-7d1b4f7f8a10",
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestCheckOperatorKey(t *testing.T) {
	m := NewJWTManager(testSecret, "front-desk", time.Hour)
	assert.True(t, m.CheckOperatorKey("front-desk"))
	assert.False(t, m.CheckOperatorKey("front-desk "))
	assert.False(t, m.CheckOperatorKey(""))

	unset := NewJWTManager(testSecret, "", time.Hour)
	assert.False(t, unset.CheckOperatorKey(""))
}

func TestExtractJWTFromAuthHeader(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer abc", "abc", false},
		{"", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"Bearer", "", true},
		{"Bearer   ", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractJWTFromAuthHeader(tt.header)
		if tt.wantErr {
			assert.Error(t, err, "header %q", tt.header)
			continue
		}
		require.NoError(t, err, "header %q", tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestExtractJWTFromRequest(t *testing.T) {
	token, err := ExtractJWTFromRequest("Bearer header-token", "gc_token=cookie-token", CookieName)
	require.NoError(t, err)
	assert.Equal(t, "header-token", token)

	token, err = ExtractJWTFromRequest("", "theme=dark; gc_token=cookie-token", CookieName)
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", token)

	token, err = ExtractJWTFromRequest("Basic xyz", "gc_token=cookie-token", CookieName)
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", token)

	_, err = ExtractJWTFromRequest("", "theme=dark", CookieName)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := NewJWTManager(testSecret, "k", time.Hour)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		seen = claims.Operator
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization token")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := m.GenerateToken("alice")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alice", seen)
}
