package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====
//
// Session issuance is an external collaborator; this layer only validates
// the cookie it minted and extracts the identity.

type AuthManager struct {
	secret     []byte
	cookieName string
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret), cookieName: "session"}
}

type SessionClaims struct {
	Role string `json:"role"` // "" | "admin" | "instructor"
	jwt.RegisteredClaims
}

var errNoSession = errors.New("no valid session")

func (a *AuthManager) parse(r *http.Request) (*SessionClaims, error) {
	c, err := r.Cookie(a.cookieName)
	if err != nil {
		return nil, errNoSession
	}
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return nil, errNoSession
	}
	return claims, nil
}

// Mint issues a session token. Kept for tests and local tooling.
func (a *AuthManager) Mint(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type sessionKey struct{}

// RequireUser rejects requests without a valid session and stores the claims
// in the request context.
func (a *AuthManager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.parse(r)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, claims)))
	})
}

// RequireAdmin additionally requires the admin role.
func (a *AuthManager) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := sessionFrom(r.Context()); claims == nil || claims.Role != "admin" {
			writeFailure(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func sessionFrom(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(sessionKey{}).(*SessionClaims)
	return claims
}
