package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"photoreviver/internal/dto"
	"photoreviver/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *RestorationRepository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "restorations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRestorationRepository(db)
}

func record(name, engine, step string, ts time.Time, cacheHit bool) *model.Restoration {
	return &model.Restoration{
		UID:              "uid-" + name,
		Filename:         name,
		OriginalFilename: "old.jpg",
		Engine:           engine,
		Step:             step,
		InputSize:        1000,
		OutputSize:       2000,
		Width:            300,
		Height:           200,
		Duration:         1500 * time.Millisecond,
		CacheHit:         cacheHit,
		FilePath:         "/archive/" + name,
		Timestamp:        ts,
	}
}

func TestInsertAndGetByID(t *testing.T) {
	repo := newTestRepo(t)
	ts := time.Date(2024, 3, 10, 14, 30, 5, 0, time.UTC)

	id, err := repo.Insert(record("a.jpg", "local", "all", ts, false))
	require.NoError(t, err)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a.jpg", got.Filename)
	assert.Equal(t, "old.jpg", got.OriginalFilename)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.False(t, got.CacheHit)

	byUID, err := repo.GetByUID("uid-a.jpg")
	require.NoError(t, err)
	require.NotNil(t, byUID)
	assert.Equal(t, id, byUID.ID)

	missing, err := repo.GetByID(id + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := repo.ExistsByFilename("a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.Insert(record("a.jpg", "local", "all", ts, false))
	assert.Error(t, err, "filenames are unique")
}

func TestGetAllFiltersAndPagination(t *testing.T) {
	repo := newTestRepo(t)
	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

	for _, rec := range []*model.Restoration{
		record("1.jpg", "local", "all", day1, false),
		record("2.jpg", "remote", "colorization", day2, false),
		record("3.jpg", "local", "enhancement", day3, true),
		record("4.jpg", "local", "all", day3.Add(time.Hour), false),
	} {
		_, err := repo.Insert(rec)
		require.NoError(t, err)
	}

	all, err := repo.GetAll(&dto.RestorationFilters{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "4.jpg", all[0].Filename, "newest first")

	local, err := repo.GetAll(&dto.RestorationFilters{Engine: "local"})
	require.NoError(t, err)
	assert.Len(t, local, 3)

	steps, err := repo.GetTotalCount(&dto.RestorationFilters{Step: "all"})
	require.NoError(t, err)
	assert.Equal(t, 2, steps)

	ranged, err := repo.GetAll(&dto.RestorationFilters{DateAfter: day2, DateBefore: day2})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "2.jpg", ranged[0].Filename)

	page, err := repo.GetAll(&dto.RestorationFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2.jpg", page[0].Filename)
	assert.Equal(t, "1.jpg", page[1].Filename)
}

func TestStatsAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	id, err := repo.Insert(record("1.jpg", "local", "all", now, false))
	require.NoError(t, err)
	_, err = repo.Insert(record("2.jpg", "remote", "all", now, true))
	require.NoError(t, err)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, int64(4000), stats.TotalOutputSize)
	assert.Equal(t, map[string]int{"local": 1, "remote": 1}, stats.PerEngine)
	assert.Equal(t, map[string]int{"all": 2}, stats.PerStep)
	assert.InDelta(t, 1500, stats.AvgDurationMs, 0.001)

	require.NoError(t, repo.Delete(id))
	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.DeleteAll())
	count, err = repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestConcurrentInserts(t *testing.T) {
	repo := newTestRepo(t)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			_, err := repo.Insert(record("concurrent_"+string(rune('a'+idx))+".jpg", "local", "all", time.Now(), false))
			done <- err
		}(i)
	}
	for i := 0; i < 10; i++ {
		assert.NoError(t, <-done)
	}

	count, err := repo.GetTotalCount(&dto.RestorationFilters{})
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
