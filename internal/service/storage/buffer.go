package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/dto"
	"photoreviver/internal/logger"
	"photoreviver/internal/metrics"
	"photoreviver/internal/model"
	"photoreviver/internal/repository"

	dimaging "github.com/disintegration/imaging"
)

const (
	// TimestampLayout prefixes every archived file name.
	TimestampLayout = "2006-01-02_15-04_05.000"
	// ThumbnailSuffix replaces ".jpg" for the thumbnail written next to each restoration.
	ThumbnailSuffix = ".thumb.jpg"

	thumbnailQuality = 85
)

// BufferService buffers finished restorations in memory and periodically
// flushes them to the archive directory and the history repository.
type BufferService struct {
	archiveDir string
	limit      int
	interval   time.Duration
	thumbSize  int

	items []dto.BufferedRestoration
	mu    sync.Mutex
	// flush is signalled when the buffer reaches its limit.
	flush chan struct{}

	logger *logger.Logger
	repo   repository.RestorationRepository
}

// NewBufferService creates a new BufferService from the history settings.
func NewBufferService(cfg *config.Config, logger *logger.Logger, repo repository.RestorationRepository) *BufferService {
	return &BufferService{
		archiveDir: cfg.History.ArchiveDirectory,
		limit:      cfg.History.BufferLimit,
		interval:   cfg.History.FlushInterval,
		thumbSize:  cfg.History.ThumbnailSize,
		items:      make([]dto.BufferedRestoration, 0, cfg.History.BufferLimit),
		flush:      make(chan struct{}, 1),
		logger:     logger,
		repo:       repo,
	}
}

// Serve flushes on a ticker, or early when the buffer fills up, until ctx is
// done. Whatever is still buffered is flushed before returning.
func (s *BufferService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return ctx.Err()
		case <-ticker.C:
			s.Flush()
		case <-s.flush:
			s.Flush()
		}
	}
}

func (s *BufferService) String() string { return "archive-buffer" }

// Add appends a restoration to the in-memory buffer.
func (s *BufferService) Add(item dto.BufferedRestoration) {
	s.mu.Lock()
	s.items = append(s.items, item)
	n := len(s.items)
	s.mu.Unlock()

	s.logger.Debug("Archive buffer size: %d/%d", n, s.limit)
	if n >= s.limit {
		select {
		case s.flush <- struct{}{}:
		default:
		}
	}
}

// Len reports how many restorations are waiting to be flushed.
func (s *BufferService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Flush writes buffered restorations and their thumbnails to disk, records
// them in the repository and resets the buffer. It returns how many were saved.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	items := s.items
	s.items = make([]dto.BufferedRestoration, 0, s.limit)
	s.mu.Unlock()

	if len(items) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.archiveDir, 0755); err != nil {
		s.logger.Error("Error creating archive directory: %v", err)
		return 0
	}

	saved := 0
	for _, item := range items {
		if err := s.save(item); err != nil {
			s.logger.Error("Error archiving restoration %s: %v", item.ID, err)
			continue
		}
		saved++
	}

	metrics.ArchiveFlushed.Add(float64(saved))
	s.logger.Info("Flushed %d restorations to disk", saved)
	return saved
}

func (s *BufferService) save(item dto.BufferedRestoration) error {
	ts := item.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Two requests finishing in the same millisecond would collide.
	filename := BuildFilename(ts, item.Engine, item.Step)
	fullpath := filepath.Join(s.archiveDir, filename)
	for exists(fullpath) {
		ts = ts.Add(time.Millisecond)
		filename = BuildFilename(ts, item.Engine, item.Step)
		fullpath = filepath.Join(s.archiveDir, filename)
	}

	if err := os.WriteFile(fullpath, item.Data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}

	thumbPath := ThumbnailPath(fullpath)
	if err := WriteThumbnail(item.Data, thumbPath, s.thumbSize); err != nil {
		s.logger.Warning("Error creating thumbnail for %s: %v", filename, err)
		thumbPath = ""
	}

	if s.repo == nil {
		return nil
	}

	rec := &model.Restoration{
		UID:              item.ID,
		Filename:         filename,
		OriginalFilename: item.OriginalFilename,
		Engine:           item.Engine,
		Step:             item.Step,
		JobID:            item.JobID,
		InputSize:        item.InputSize,
		OutputSize:       int64(len(item.Data)),
		Width:            item.Width,
		Height:           item.Height,
		Duration:         item.Duration,
		CacheHit:         item.CacheHit,
		FilePath:         fullpath,
		ThumbnailPath:    thumbPath,
		Timestamp:        ts,
	}
	if _, err := s.repo.Insert(rec); err != nil {
		return fmt.Errorf("save %s to database: %w", filename, err)
	}
	return nil
}

// BuildFilename returns the archive name for a restoration finished at ts.
func BuildFilename(ts time.Time, engine, step string) string {
	return fmt.Sprintf("%s_%s_%s.jpg", ts.Format(TimestampLayout), engine, step)
}

// ThumbnailPath returns the thumbnail path that belongs to an archived file.
func ThumbnailPath(path string) string {
	return strings.TrimSuffix(path, ".jpg") + ThumbnailSuffix
}

// ParseFilename extracts the timestamp, engine and step from an archive
// name produced by BuildFilename. Thumbnails are rejected.
func ParseFilename(filename string) (time.Time, string, string, error) {
	base := filepath.Base(filename)
	if strings.HasSuffix(base, ThumbnailSuffix) || !strings.HasSuffix(base, ".jpg") {
		return time.Time{}, "", "", fmt.Errorf("not an archived restoration: %s", base)
	}

	// date _ HH-MM _ SS.mmm _ engine _ step
	parts := strings.Split(strings.TrimSuffix(base, ".jpg"), "_")
	if len(parts) != 5 {
		return time.Time{}, "", "", fmt.Errorf("unexpected filename format: %s", base)
	}

	ts, err := time.ParseInLocation(TimestampLayout, strings.Join(parts[:3], "_"), time.Local)
	if err != nil {
		return time.Time{}, "", "", fmt.Errorf("invalid timestamp in %s: %w", base, err)
	}
	if parts[3] == "" || parts[4] == "" {
		return time.Time{}, "", "", fmt.Errorf("missing engine or step in %s", base)
	}
	return ts, parts[3], parts[4], nil
}

// WriteThumbnail scales a JPEG to fit within size x size and saves it to path.
func WriteThumbnail(data []byte, path string, size int) error {
	img, err := dimaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	thumb := dimaging.Fit(img, size, size, dimaging.Lanczos)
	return dimaging.Save(thumb, path, dimaging.JPEGQuality(thumbnailQuality))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
