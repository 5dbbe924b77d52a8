// Package auth issues and validates per-session bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is malformed or fails signature verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidClaims is returned when the token claims don't carry a session id.
	ErrInvalidClaims = errors.New("invalid token claims")
)

type contextKey string

const sessionContextKey contextKey = "session_id"

// Claims narrows the teacher's tenant claims to a bare session id: this
// domain has no tenants, just sessions.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}

// SessionAuth issues and validates bearer tokens scoped to one session id.
type SessionAuth struct {
	secret        []byte
	expiry        time.Duration
	signingMethod jwt.SigningMethod
}

// NewSessionAuth creates a SessionAuth with the given signing secret and
// token expiry.
func NewSessionAuth(secret string, expiry time.Duration) *SessionAuth {
	return &SessionAuth{
		secret:        []byte(secret),
		expiry:        expiry,
		signingMethod: jwt.SigningMethodHS256,
	}
}

// IssueToken mints a bearer token scoped to sessionID.
func (a *SessionAuth) IssueToken(sessionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
		SessionID: sessionID,
	}
	token := jwt.NewWithClaims(a.signingMethod, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (a *SessionAuth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != a.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// RequireSession is HTTP middleware that validates the bearer token and, if
// pathSessionID is non-nil and returns a non-empty id, requires the token's
// session id to match it — a token for session A cannot be used to operate
// on session B.
func (a *SessionAuth) RequireSession(pathSessionID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == "" || tokenString == header {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := a.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			if pathSessionID != nil {
				if want := pathSessionID(r); want != "" && want != claims.SessionID {
					http.Error(w, "token does not authorize this session", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext extracts the authenticated session id set by RequireSession.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionContextKey).(string)
	return id, ok
}
