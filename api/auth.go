/*
auth.go - Caller identity resolution

PURPOSE:
  Every operation acts on behalf of a caller. The engine never looks the
  caller up itself: this middleware resolves it once per request and puts
  it in the request context, where handlers read it with CallerFrom.

RESOLVERS:
  HeaderResolver: X-Caller-Identity header. Development and tests only,
                  any client can claim any identity.
  JWTResolver:    HS256 bearer token, identity taken from the "sub" claim.

FAILURE:
  A request without a resolvable caller is rejected with 401 before any
  store is touched.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/learnify/state-engine/generic"
)

// CallerHeader carries the caller identity for HeaderResolver.
const CallerHeader = "X-Caller-Identity"

var (
	ErrMissingCaller = errors.New("missing caller identity")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// CallerResolver extracts the caller identity from a request.
type CallerResolver interface {
	Resolve(r *http.Request) (generic.Identity, error)
}

// HeaderResolver trusts the X-Caller-Identity header.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (generic.Identity, error) {
	id := generic.Identity(strings.TrimSpace(r.Header.Get(CallerHeader)))
	if id.IsZero() {
		return "", ErrMissingCaller
	}
	return id, nil
}

// JWTResolver validates an HS256 bearer token and uses its subject.
type JWTResolver struct {
	Secret []byte
}

func (j JWTResolver) Resolve(r *http.Request) (generic.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrMissingCaller
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return generic.Identity(claims.Subject), nil
}

// SignToken issues an HS256 token for id, valid for ttl.
func SignToken(secret []byte, id generic.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(id),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// =============================================================================
// CONTEXT
// =============================================================================

type callerKey struct{}

// WithCaller returns a context carrying id.
func WithCaller(ctx context.Context, id generic.Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFrom returns the caller stored by the auth middleware.
func CallerFrom(ctx context.Context) (generic.Identity, bool) {
	id, ok := ctx.Value(callerKey{}).(generic.Identity)
	return id, ok && !id.IsZero()
}

// RequireCaller rejects requests whose caller cannot be resolved.
func RequireCaller(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), id)))
		})
	}
}
