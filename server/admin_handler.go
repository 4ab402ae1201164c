package server

import (
	"net/http"

	"tgstream/core/auth"
	"tgstream/logger"
)

const adminUser = "admin"

// AdminMiddleware requires HTTP basic auth whose password matches ADMIN_PASSWORD_HASH.
// Without a configured hash admin routes are disabled.
func (s *Server) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminPasswordHash == "" {
			http.Error(w, "Admin endpoints are disabled", http.StatusForbidden)
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok || user != adminUser || !auth.CheckPasswordHash(password, s.cfg.AdminPasswordHash) {
			logger.Warn("Admin authentication failed", logger.String("remote", s.clientIP(r)))
			w.Header().Set("WWW-Authenticate", `Basic realm="tgstream admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// CleanupHandler runs a sweep immediately.
func (s *Server) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	sweeper := s.jobs.Sweeper()
	if sweeper == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": "Cleanup is not configured"})
		return
	}

	removed, err := sweeper.Sweep(r.Context())
	if err != nil {
		logger.Error("Manual cleanup failed", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "Cleanup failed",
			"removed": removed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}
