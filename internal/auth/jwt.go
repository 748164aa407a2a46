// Package auth verifies the access tokens issued by the managed auth provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid session token")
)

// Session is the authenticated caller.
type Session struct {
	UserID string
	Email  string
	// FamilyIDs are the families the caller belongs to, taken from the
	// app_metadata.family_ids claim the provider sets on membership.
	FamilyIDs []string
}

// InFamily reports whether the caller belongs to familyID.
func (s *Session) InFamily(familyID string) bool {
	return familyID != "" && slices.Contains(s.FamilyIDs, familyID)
}

type appMetadata struct {
	FamilyIDs []string `json:"family_ids"`
}

type claims struct {
	Email       string      `json:"email"`
	AppMetadata appMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with the provider's JWT secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (*Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	return &Session{UserID: c.Subject, Email: c.Email, FamilyIDs: c.AppMetadata.FamilyIDs}, nil
}

// FromRequest verifies the bearer token of r.
func (v *Verifier) FromRequest(r *http.Request) (*Session, error) {
	raw := BearerToken(r)
	if raw == "" {
		return nil, ErrMissingToken
	}
	return v.Verify(raw)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
