package handler

import "net/http"

// RootHandler answers GET / with the service banner.
func RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"message": "Smart Photo Reviver API", "status": "running"})
	}
}

// HealthHandler answers GET /api/health.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
