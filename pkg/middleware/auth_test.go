package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentdavis/league-gotta-bike/pkg/contextkeys"
)

const testSecret = "test-secret-with-enough-bytes-0123456789"

func TestAuthenticatorParse(t *testing.T) {
	a := NewAuthenticator(testSecret, "league-idp")

	t.Run("round trip", func(t *testing.T) {
		tok, err := a.Issue(42, time.Hour)
		require.NoError(t, err)

		actor, err := a.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, int64(42), actor.UserID)
		assert.Equal(t, "42", actor.Subject)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewAuthenticator(testSecret, "league-idp")
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, err := past.Issue(42, time.Hour)
		require.NoError(t, err)

		_, err = a.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := NewAuthenticator("another-secret", "league-idp").Issue(42, time.Hour)
		require.NoError(t, err)
		_, err = a.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := NewAuthenticator(testSecret, "elsewhere").Issue(42, time.Hour)
		require.NoError(t, err)
		_, err = a.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "league-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = a.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "42", Issuer: "league-idp"}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = a.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none rejected", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "42", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = a.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthenticatorHandler(t *testing.T) {
	a := NewAuthenticator(testSecret, "")
	var got contextkeys.Actor
	h := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = contextkeys.GetActor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		})
	}

	t.Run("valid token", func(t *testing.T) {
		tok, err := a.Issue(7, time.Minute)
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, int64(7), got.UserID)
	})
}
