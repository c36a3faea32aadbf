package api

import (
	"crypto/subtle"
	"net/http"
)

type credentials struct {
	user string
	pass string
}

func (c credentials) enabled() bool {
	return c.user != "" && c.pass != ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth wraps a handler with basic auth when credentials are set.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.enabled() {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !secureCompare(user, s.auth.user) || !secureCompare(pass, s.auth.pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Challenge Wizard"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
