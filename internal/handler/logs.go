package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"photoreviver/internal/logger"

	"github.com/go-chi/chi/v5"
)

// ShowLogsHandler serves the log file for the {level} path parameter as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := loggerFile(chi.URLParam(r, "level"))
		if !ok {
			writeError(w, http.StatusNotFound, "Unknown log level")
			return
		}
		serveLogFile(w, r, logger.Dir(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the log file for the {level} path parameter.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := loggerFile(chi.URLParam(r, "level"))
		if !ok {
			writeError(w, http.StatusNotFound, "Unknown log level")
			return
		}
		if err := logger.CleanLogs(filename); err != nil {
			writeError(w, http.StatusInternalServerError, "Could not clear "+filename)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func loggerFile(level string) (string, bool) {
	return logger.FileForLevel(level)
}
