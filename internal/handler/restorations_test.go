package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/logger"
	"photoreviver/internal/model"
	"photoreviver/internal/repository/sqlite"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyFixture struct {
	router http.Handler
	repo   *sqlite.RestorationRepository
	dir    string
	log    *logger.Logger
}

func newHistoryFixture(t *testing.T) *historyFixture {
	t.Helper()
	dir := t.TempDir()
	archive := filepath.Join(dir, "restored")
	require.NoError(t, os.MkdirAll(archive, 0755))

	db, err := sqlite.New(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := sqlite.NewRestorationRepository(db)

	log, err := logger.New(filepath.Join(dir, "logs"), "info")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	cfg := &config.Config{History: config.HistoryConfig{ArchiveDirectory: archive}}

	r := chi.NewRouter()
	r.Get("/api/restorations", ListRestorationsHandler(repo, cfg, log))
	r.Delete("/api/restorations", ClearRestorationsHandler(repo, cfg, log))
	r.Get("/api/restorations/stats", RestorationStatsHandler(repo, log))
	r.Get("/api/restorations/{id}", GetRestorationHandler(repo, log))
	r.Get("/api/restorations/{id}/image", RestorationImageHandler(repo, log, false))
	r.Get("/api/restorations/{id}/thumbnail", RestorationImageHandler(repo, log, true))
	r.Delete("/api/restorations/{id}", DeleteRestorationHandler(repo, log))
	r.Get("/logs/{level}", ShowLogsHandler(log))
	r.Post("/logs/{level}/clear", ClearLogsHandler(log))

	return &historyFixture{router: r, repo: repo, dir: archive, log: log}
}

func (f *historyFixture) add(t *testing.T, uid, engine, step string, ts time.Time) int64 {
	t.Helper()
	name := uid + ".jpg"
	path := filepath.Join(f.dir, name)
	thumb := filepath.Join(f.dir, uid+".thumb.jpg")
	require.NoError(t, os.WriteFile(path, []byte("full-"+uid), 0644))
	require.NoError(t, os.WriteFile(thumb, []byte("thumb-"+uid), 0644))

	id, err := f.repo.Insert(&model.Restoration{
		UID:           uid,
		Filename:      name,
		Engine:        engine,
		Step:          step,
		OutputSize:    10,
		Duration:      250 * time.Millisecond,
		FilePath:      path,
		ThumbnailPath: thumb,
		Timestamp:     ts,
	})
	require.NoError(t, err)
	return id
}

func (f *historyFixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListRestorations(t *testing.T) {
	f := newHistoryFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	f.add(t, "a", "local", "all", base)
	f.add(t, "b", "remote", "all", base.Add(time.Minute))
	f.add(t, "c", "local", "colorization", base.Add(2*time.Minute))

	rec := f.do(http.MethodGet, "/api/restorations?limit=2&page=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Restorations []map[string]interface{} `json:"restorations"`
		Length       int                      `json:"length"`
		TotalPages   int                      `json:"totalPages"`
		CurrentPage  int                      `json:"currentPage"`
		PageSize     int                      `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, 3, data.Length)
	assert.Equal(t, 2, data.TotalPages)
	assert.Equal(t, 2, data.PageSize)
	require.Len(t, data.Restorations, 2)
	assert.Equal(t, "c", data.Restorations[0]["uid"])
	assert.Equal(t, "01-06-2024", data.Restorations[0]["date"])
	assert.Equal(t, "12:02", data.Restorations[0]["timeOfDay"])

	rec = f.do(http.MethodGet, "/api/restorations?engine=local")
	var filtered struct {
		Length int `json:"length"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	assert.Equal(t, 2, filtered.Length)
}

func TestGetAndServeRestoration(t *testing.T) {
	f := newHistoryFixture(t)
	id := f.add(t, "uid-1", "local", "all", time.Now())

	rec := f.do(http.MethodGet, "/api/restorations/uid-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":"uid-1"`)

	rec = f.do(http.MethodGet, "/api/restorations/"+strconv.FormatInt(id, 10))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/restorations/uid-1/image")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "full-uid-1", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = f.do(http.MethodGet, "/api/restorations/uid-1/thumbnail")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thumb-uid-1", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/restorations/nope").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/restorations/999/image").Code)
}

func TestRestorationStats(t *testing.T) {
	f := newHistoryFixture(t)
	f.add(t, "a", "local", "all", time.Now())
	f.add(t, "b", "remote", "enhancement", time.Now())

	rec := f.do(http.MethodGet, "/api/restorations/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.RestorationStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.PerEngine["remote"])
	assert.Equal(t, 1, stats.PerStep["enhancement"])
	assert.InDelta(t, 250, stats.AvgDurationMs, 0.001)
}

func TestDeleteAndClearRestorations(t *testing.T) {
	f := newHistoryFixture(t)
	f.add(t, "a", "local", "all", time.Now())
	f.add(t, "b", "local", "all", time.Now())

	rec := f.do(http.MethodDelete, "/api/restorations/a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoFileExists(t, filepath.Join(f.dir, "a.jpg"))
	assert.NoFileExists(t, filepath.Join(f.dir, "a.thumb.jpg"))
	assert.FileExists(t, filepath.Join(f.dir, "b.jpg"))

	rec = f.do(http.MethodDelete, "/api/restorations")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoFileExists(t, filepath.Join(f.dir, "b.jpg"))

	count, err := f.repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLogsHandlers(t *testing.T) {
	f := newHistoryFixture(t)
	f.log.Warning("disk almost full")

	rec := f.do(http.MethodGet, "/logs/warning")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk almost full")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/logs/verbose").Code)

	rec = f.do(http.MethodPost, "/logs/warning/clear")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/logs/warning")
	assert.NotContains(t, rec.Body.String(), "disk almost full")
}
