package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, key any, c claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return raw
}

func validClaims() claims {
	return claims{
		Email:       "sarah@example.com",
		AppMetadata: appMetadata{FamilyIDs: []string{"family-1"}},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "https://project.supabase.co/auth/v1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, "https://project.supabase.co/auth/v1")

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		s, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
		require.NoError(t, err)
		assert.Equal(t, &Session{UserID: "user-1", Email: "sarah@example.com", FamilyIDs: []string{"family-1"}}, s)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		_, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-123"), validClaims()))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		c := validClaims()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no expiry", func(t *testing.T) {
		t.Parallel()
		c := validClaims()
		c.ExpiresAt = nil
		_, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()
		c := validClaims()
		c.Issuer = "someone-else"
		_, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		t.Parallel()
		c := validClaims()
		c.Subject = ""
		_, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		t.Parallel()
		_, err := v.Verify(sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims()))
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestSession_InFamily(t *testing.T) {
	t.Parallel()

	s := &Session{UserID: "user-1", FamilyIDs: []string{"family-1", "family-2"}}
	assert.True(t, s.InFamily("family-1"))
	assert.True(t, s.InFamily("family-2"))
	assert.False(t, s.InFamily("family-3"))
	assert.False(t, s.InFamily(""))
	assert.False(t, (&Session{UserID: "user-2"}).InFamily("family-1"))
}

func TestSessionContext(t *testing.T) {
	t.Parallel()

	_, ok := SessionFrom(context.Background())
	assert.False(t, ok)

	want := &Session{UserID: "user-1"}
	got, ok := SessionFrom(WithSession(context.Background(), want))
	require.True(t, ok)
	assert.Same(t, want, got)
}

func TestVerifier_FromRequest(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, "")

	r := httptest.NewRequest("POST", "/api/analyze", nil)
	_, err := v.FromRequest(r)
	require.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	s, err := v.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":             "",
		"Basic abc":    "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Bearer":       "",
	}
	for header, want := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(r), "header %q", header)
	}
}
