package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"photoreviver/internal/config"
	"photoreviver/internal/logger"
	"photoreviver/internal/service"
	"photoreviver/internal/service/imaging"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	// JobIDHeader names the progress job on requests and responses.
	JobIDHeader = "X-Job-ID"
	// RestorationIDHeader carries the history record uid of the result.
	RestorationIDHeader = "X-Restoration-ID"

	// multipartOverhead is allowed on top of the file size limit for boundaries and headers.
	multipartOverhead = 1 << 20
	maxMemory         = 32 << 20
)

// Restorer runs restorations; *service.Manager implements it.
type Restorer interface {
	Submit(ctx context.Context, task service.Task) (*service.Outcome, error)
	HistoryEnabled() bool
}

// RestoreHandler runs every pipeline step on the uploaded "file".
func RestoreHandler(restorer Restorer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restore(w, r, restorer, cfg, logger, imaging.StepAll)
	}
}

// RestoreStepHandler runs the step named by the "step" parameter, all by default.
func RestoreStepHandler(restorer Restorer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, err := imaging.ParseStep(r.URL.Query().Get("step"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		restore(w, r, restorer, cfg, logger, step)
	}
}

func restore(w http.ResponseWriter, r *http.Request, restorer Restorer, cfg *config.Config, logger *logger.Logger, step imaging.Step) {
	maxBytes := cfg.Processing.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, sizeLimitDetail(maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	input, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		logger.Error("Error reading upload %s: %v", header.Filename, err)
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}
	if int64(len(input)) > maxBytes {
		writeError(w, http.StatusBadRequest, sizeLimitDetail(maxBytes))
		return
	}

	jobID := r.FormValue("job")
	if jobID == "" {
		jobID = r.Header.Get(JobIDHeader)
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}

	filename := filepath.Base(header.Filename)
	task := service.Task{
		ID:       uuid.NewString(),
		JobID:    jobID,
		Engine:   strings.ToLower(strings.TrimSpace(r.FormValue("engine"))),
		Step:     step,
		Filename: filename,
		Input:    input,
	}

	logger.Info("Processing image: %s, size: %d bytes, step: %s", filename, len(input), step)

	ctx, cancel := context.WithTimeout(r.Context(), cfg.Server.RequestTimeout)
	defer cancel()

	out, err := restorer.Submit(ctx, task)
	w.Header().Set(JobIDHeader, jobID)
	if err != nil {
		status, detail := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Error processing image %s: %v", filename, err)
		} else {
			logger.Warning("Rejected image %s: %v", filename, err)
		}
		writeError(w, status, detail)
		return
	}

	if restorer.HistoryEnabled() {
		w.Header().Set(RestorationIDHeader, out.ID)
	}
	cacheStatus := "MISS"
	if out.CacheHit {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="restored_%s"`, strings.ReplaceAll(filename, `"`, "")))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		logger.Warning("Error writing response for %s: %v", filename, err)
		return
	}
	logger.Info("Image processing completed successfully (%s, %s)", jobID, cacheStatus)
}

func sizeLimitDetail(maxBytes int64) string {
	return "File size must be less than " + humanize.IBytes(uint64(maxBytes))
}
