package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/skrblai/percy/internal/config"
)

// ResolvedAuth holds the resolved bearer credential for privileged routes.
type ResolvedAuth struct {
	Token string
}

// Enabled reports whether a credential is configured. Privileged routes
// refuse all requests when it isn't.
func (a ResolvedAuth) Enabled() bool { return a.Token != "" }

// ResolveAuth resolves the bearer token from config and environment.
// Precedence: config value, then PERCY_AUTH_TOKEN.
func ResolveAuth(cfg config.AuthConfig) ResolvedAuth {
	auth := ResolvedAuth{Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("PERCY_AUTH_TOKEN")
	}
	return auth
}

// Authorize checks an Authorization header against the resolved credential.
func Authorize(auth ResolvedAuth, header string) bool {
	if !auth.Enabled() {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	return safeEqual(token, auth.Token)
}

// requireAuth guards a route with the bearer credential.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many failed auth attempts")
			return
		}
		if !Authorize(s.auth, r.Header.Get("Authorization")) {
			s.authLimiter.record(r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized", "valid bearer token required")
			return
		}
		next(w, r)
	}
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
