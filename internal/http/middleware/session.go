package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/puffit/internal/http/response"
	"github.com/diagnosis/puffit/pkg/auth"
	"github.com/diagnosis/puffit/pkg/logger"
	"github.com/google/uuid"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// Session reads the session JWT from the cookie or an Authorization: Bearer
// header.
type Session struct {
	Secret     string
	CookieName string
}

func (s Session) token(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	if c, err := r.Cookie(s.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s Session) attach(r *http.Request) (*http.Request, bool) {
	raw := s.token(r)
	if raw == "" {
		return r, false
	}
	claims, err := auth.Parse(raw, s.Secret)
	if err != nil {
		return r, false
	}
	id, err := claims.UserID()
	if err != nil {
		return r, false
	}
	ctx := context.WithValue(r.Context(), CtxClaims, claims)
	ctx = context.WithValue(ctx, logger.UserIDKey, id.String())
	return r.WithContext(ctx), true
}

// Require rejects requests without a valid session.
func (s Session) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := s.attach(r)
		if !ok {
			response.Unauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Optional attaches the session when present and valid.
func (s Session) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = s.attach(r)
		next.ServeHTTP(w, r)
	})
}

func Claims(r *http.Request) *auth.Claims {
	v, _ := r.Context().Value(CtxClaims).(*auth.Claims)
	return v
}

// UserID returns uuid.Nil for anonymous requests.
func UserID(r *http.Request) uuid.UUID {
	c := Claims(r)
	if c == nil {
		return uuid.Nil
	}
	id, err := c.UserID()
	if err != nil {
		return uuid.Nil
	}
	return id
}
