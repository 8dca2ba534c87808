package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware enforces bearer-token authentication and a required scope.
type Middleware struct {
	config Config
	scope  string
}

// NewMiddleware constructs Middleware requiring scope on every wrapped request.
func NewMiddleware(cfg Config, scope string) Middleware {
	return Middleware{config: cfg, scope: scope}
}

// Wrap attaches authentication handling to an http.Handler. With no secret
// configured requests pass through untouched.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	if !m.config.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			detail := ErrInvalidToken.Error()
			if errors.Is(err, ErrMissingToken) {
				detail = ErrMissingToken.Error()
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", detail)
			return
		}
		if m.scope != "" && !claims.HasScope(m.scope) {
			writeError(w, http.StatusForbidden, "forbidden", "scope "+m.scope+" required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	return Parse(header[len("Bearer "):], m.config)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": code, "detail": detail})
}
