package storage

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/dto"
	"photoreviver/internal/logger"
	"photoreviver/internal/repository/sqlite"

	dimaging "github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := dimaging.New(w, h, color.NRGBA{R: 120, G: 100, B: 80, A: 255})
	require.NoError(t, dimaging.Encode(&buf, img, dimaging.JPEG))
	return buf.Bytes()
}

func newTestBuffer(t *testing.T, limit int) (*BufferService, *sqlite.RestorationRepository, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.New(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := sqlite.NewRestorationRepository(db)

	cfg := &config.Config{History: config.HistoryConfig{
		ArchiveDirectory: filepath.Join(dir, "restored"),
		BufferLimit:      limit,
		FlushInterval:    time.Hour,
		ThumbnailSize:    32,
	}}
	return NewBufferService(cfg, logger.NewNop(), repo), repo, cfg.History.ArchiveDirectory
}

func TestFilenameRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.Local)
	name := BuildFilename(ts, "local", "colorization")
	assert.Equal(t, "2024-05-06_07-08_09.123_local_colorization.jpg", name)

	parsed, engine, step, err := ParseFilename(name)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
	assert.Equal(t, "local", engine)
	assert.Equal(t, "colorization", step)
}

func TestParseFilenameRejects(t *testing.T) {
	for _, name := range []string{
		"2024-05-06_07-08_09.123_local_all.thumb.jpg",
		"2024-05-06_07-08_09.123_local_all.png",
		"holiday.jpg",
		"2024-13-06_07-08_09.123_local_all.jpg",
		"2024-05-06_07-08_09.123__all.jpg",
	} {
		_, _, _, err := ParseFilename(name)
		assert.Error(t, err, name)
	}
}

func TestThumbnailPath(t *testing.T) {
	assert.Equal(t, "/a/b.thumb.jpg", ThumbnailPath("/a/b.jpg"))
}

func TestFlushWritesFilesAndRecords(t *testing.T) {
	buf, repo, dir := newTestBuffer(t, 10)
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	data := jpegBytes(t, 120, 60)

	for i := 0; i < 2; i++ {
		buf.Add(dto.BufferedRestoration{
			ID:               "uid-" + string(rune('a'+i)),
			Timestamp:        ts,
			OriginalFilename: "grandma.jpg",
			Engine:           "local",
			Step:             "all",
			Width:            120,
			Height:           60,
			Data:             data,
		})
	}
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, 2, buf.Flush())
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 0, buf.Flush())

	first, err := repo.GetByUID("uid-a")
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := repo.GetByUID("uid-b")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Filename, second.Filename, "same-millisecond names are made unique")

	stored, err := os.ReadFile(filepath.Join(dir, first.Filename))
	require.NoError(t, err)
	assert.Equal(t, data, stored)
	assert.Equal(t, int64(len(data)), first.OutputSize)

	thumb, err := dimaging.Open(first.ThumbnailPath)
	require.NoError(t, err)
	assert.Equal(t, 32, thumb.Bounds().Dx())
	assert.Equal(t, 16, thumb.Bounds().Dy())
}

func TestFlushKeepsFileWhenThumbnailFails(t *testing.T) {
	buf, repo, _ := newTestBuffer(t, 10)
	buf.Add(dto.BufferedRestoration{ID: "bad", Engine: "remote", Step: "all", Data: []byte("not a jpeg")})
	assert.Equal(t, 1, buf.Flush())

	rec, err := repo.GetByUID("bad")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.ThumbnailPath)
}

func TestServeFlushesAtLimitAndOnShutdown(t *testing.T) {
	buf, repo, _ := newTestBuffer(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- buf.Serve(ctx) }()

	data := jpegBytes(t, 8, 8)
	buf.Add(dto.BufferedRestoration{ID: "1", Engine: "local", Step: "all", Data: data})
	buf.Add(dto.BufferedRestoration{ID: "2", Engine: "local", Step: "all", Data: data})

	require.Eventually(t, func() bool {
		n, _ := repo.GetTotalCount(nil)
		return n == 2
	}, 2*time.Second, 10*time.Millisecond)

	buf.Add(dto.BufferedRestoration{ID: "3", Engine: "local", Step: "all", Data: data})
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	n, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
