package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/caarlos0/env/v11"
)

// CookieName is the cookie that carries the bearer token between requests.
const CookieName = "authToken"

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// TokenVerifier checks a bearer token and returns its subject user id.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

type contextKey int

const userIDKey contextKey = iota

// UserID returns the authenticated caller's user id, when present.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// RequireAuth resolves the caller's bearer token from the authToken cookie
// or the Authorization header and stores the subject on the request
// context. Requests without a valid token are rejected.
func RequireAuth(verifier TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			userID, err := verifier.Verify(token)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// CORSConfig controls which browser origins may call the API.
type CORSConfig struct {
	AllowedOrigins []string `env:"VORTEX_CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadCORSConfigFromEnv reads CORS settings; no configured origins means no
// cross-origin access.
func LoadCORSConfigFromEnv() CORSConfig {
	var cfg CORSConfig
	if err := env.Parse(&cfg); err != nil {
		return CORSConfig{}
	}
	return cfg
}

// CORS answers preflight requests and stamps cross-origin response headers
// for configured origins. Credentials are allowed because the bearer token
// travels in a cookie.
func CORS(config CORSConfig) Middleware {
	allowed := make(map[string]bool, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
