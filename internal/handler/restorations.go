package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"photoreviver/internal/config"
	"photoreviver/internal/dto"
	"photoreviver/internal/logger"
	"photoreviver/internal/model"
	"photoreviver/internal/repository"

	"github.com/go-chi/chi/v5"
)

// ListRestorationsHandler returns a filtered, paginated page of the history.
func ListRestorationsHandler(repo repository.RestorationRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.RestorationFilters{
			Engine:     q.Get("engine"),
			Step:       q.Get("step"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting restorations: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		filter.Limit = limit
		filter.Offset = (page - 1) * limit
		records, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying restorations from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		infos := make([]dto.RestorationInfo, 0, len(records))
		for i := range records {
			infos = append(infos, toInfo(&records[i]))
		}

		data := dto.RestorationsData{
			Restorations: infos,
			ArchiveDir:   cfg.History.ArchiveDirectory,
			Length:       totalCount,
			TotalPages:   (totalCount + limit - 1) / limit,
			CurrentPage:  page,
			Limit:        limit,
		}
		if err := writeJSON(w, http.StatusOK, data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// RestorationStatsHandler returns aggregate history statistics.
func RestorationStatsHandler(repo repository.RestorationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.Stats()
		if err != nil {
			logger.Error("Error computing restoration stats: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		_ = writeJSON(w, http.StatusOK, stats)
	}
}

// GetRestorationHandler returns one record, looked up by numeric id or uid.
func GetRestorationHandler(repo repository.RestorationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookup(w, r, repo, logger)
		if !ok {
			return
		}
		_ = writeJSON(w, http.StatusOK, toInfo(rec))
	}
}

// RestorationImageHandler serves the archived JPEG, or its thumbnail.
func RestorationImageHandler(repo repository.RestorationRepository, logger *logger.Logger, thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookup(w, r, repo, logger)
		if !ok {
			return
		}

		path := rec.FilePath
		if thumbnail {
			path = rec.ThumbnailPath
		}
		if path == "" {
			writeError(w, http.StatusNotFound, "Image not available")
			return
		}
		if _, err := os.Stat(path); err != nil {
			writeError(w, http.StatusNotFound, "Image not available")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

// DeleteRestorationHandler removes a record and its files.
func DeleteRestorationHandler(repo repository.RestorationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookup(w, r, repo, logger)
		if !ok {
			return
		}

		for _, path := range []string{rec.FilePath, rec.ThumbnailPath} {
			if path == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("Failed to delete file %s: %v", path, err)
			}
		}

		if err := repo.Delete(rec.ID); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Deleted restoration: %s", rec.Filename)
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": rec.Filename})
	}
}

// ClearRestorationsHandler deletes all archived files and clears the database.
func ClearRestorationsHandler(repo repository.RestorationRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dir := cfg.History.ArchiveDirectory
		files, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading archive directory: %v", err)
			writeError(w, http.StatusInternalServerError, "Unable to read archive directory")
			return
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".jpg") {
				continue
			}
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := repo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("All restorations cleared from directory: %s", dir)
		w.WriteHeader(http.StatusNoContent)
	}
}

// lookup resolves the {id} path parameter, writing 404/500 itself when it fails.
func lookup(w http.ResponseWriter, r *http.Request, repo repository.RestorationRepository, logger *logger.Logger) (*model.Restoration, bool) {
	id := chi.URLParam(r, "id")

	var (
		rec *model.Restoration
		err error
	)
	if n, convErr := strconv.ParseInt(id, 10, 64); convErr == nil {
		rec, err = repo.GetByID(n)
	} else {
		rec, err = repo.GetByUID(id)
	}
	if err != nil {
		logger.Error("Error loading restoration %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Restoration not found")
		return nil, false
	}
	return rec, true
}

func toInfo(rec *model.Restoration) dto.RestorationInfo {
	return dto.RestorationInfo{
		ID:               rec.ID,
		UID:              rec.UID,
		Name:             rec.Filename,
		OriginalFilename: rec.OriginalFilename,
		Engine:           rec.Engine,
		Step:             rec.Step,
		Width:            rec.Width,
		Height:           rec.Height,
		OutputSize:       rec.OutputSize,
		DurationMs:       rec.Duration.Milliseconds(),
		CacheHit:         rec.CacheHit,
		Date:             rec.Timestamp.Local(),
		TimeOfDay:        rec.Timestamp.Local(),
	}
}
