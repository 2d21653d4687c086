package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photoreviver/internal/dto"
	"photoreviver/internal/model"
)

const restorationColumns = `id, uid, filename, original_filename, engine, step, job_id, input_size, output_size,
	width, height, duration_ms, cache_hit, filepath, thumbnail_path, timestamp`

// RestorationRepository implements repository.RestorationRepository for SQLite.
type RestorationRepository struct {
	db *DB
}

// NewRestorationRepository creates a new SQLite restoration repository.
func NewRestorationRepository(db *DB) *RestorationRepository {
	return &RestorationRepository{db: db}
}

// Insert adds a new restoration record to the database.
func (r *RestorationRepository) Insert(rec *model.Restoration) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO restorations (uid, filename, original_filename, engine, step, job_id, input_size, output_size,
			width, height, duration_ms, cache_hit, filepath, thumbnail_path, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.UID, rec.Filename, rec.OriginalFilename, rec.Engine, rec.Step, rec.JobID, rec.InputSize, rec.OutputSize,
		rec.Width, rec.Height, rec.Duration.Milliseconds(), rec.CacheHit, rec.FilePath, rec.ThumbnailPath, rec.Timestamp.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert restoration: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a restoration by its ID. It returns nil, nil when absent.
func (r *RestorationRepository) GetByID(id int64) (*model.Restoration, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rec, err := scanRestoration(r.db.Conn().QueryRow(`SELECT `+restorationColumns+` FROM restorations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restoration: %w", err)
	}
	return rec, nil
}

// GetByUID retrieves a restoration by the identifier handed out at request
// time. It returns nil, nil when absent.
func (r *RestorationRepository) GetByUID(uid string) (*model.Restoration, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rec, err := scanRestoration(r.db.Conn().QueryRow(`SELECT `+restorationColumns+` FROM restorations WHERE uid = ?`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restoration: %w", err)
	}
	return rec, nil
}

// GetAll retrieves restorations matching the filter, newest first.
func (r *RestorationRepository) GetAll(filter *dto.RestorationFilters) ([]model.Restoration, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + restorationColumns + ` FROM restorations WHERE 1=1` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restorations: %w", err)
	}
	defer rows.Close()

	var out []model.Restoration
	for rows.Next() {
		rec, err := scanRestoration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restoration: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetTotalCount returns the number of restorations matching the filter.
func (r *RestorationRepository) GetTotalCount(filter *dto.RestorationFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM restorations WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count restorations: %w", err)
	}
	return count, nil
}

// ExistsByFilename checks if a restoration with the given archive filename exists.
func (r *RestorationRepository) ExistsByFilename(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM restorations WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check restoration existence: %w", err)
	}
	return count > 0, nil
}

// Stats returns totals and per-engine/per-step breakdowns.
func (r *RestorationRepository) Stats() (*model.RestorationStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.RestorationStats{
		PerEngine: make(map[string]int),
		PerStep:   make(map[string]int),
	}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(cache_hit), 0), COALESCE(SUM(output_size), 0), COALESCE(AVG(duration_ms), 0)
		FROM restorations
	`).Scan(&stats.Total, &stats.CacheHits, &stats.TotalOutputSize, &stats.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	if err := r.groupCount(`SELECT engine, COUNT(*) FROM restorations GROUP BY engine`, stats.PerEngine); err != nil {
		return nil, err
	}
	if err := r.groupCount(`SELECT step, COUNT(*) FROM restorations GROUP BY step`, stats.PerStep); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *RestorationRepository) groupCount(query string, into map[string]int) error {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return fmt.Errorf("failed to group restorations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Delete removes a restoration by its ID.
func (r *RestorationRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM restorations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete restoration: %w", err)
	}
	return nil
}

// DeleteAll removes every restoration record.
func (r *RestorationRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM restorations`); err != nil {
		return fmt.Errorf("failed to delete restorations: %w", err)
	}
	return nil
}

func buildWhere(filter *dto.RestorationFilters) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	where := ""
	args := []interface{}{}

	if filter.Engine != "" {
		where += " AND engine = ?"
		args = append(args, filter.Engine)
	}
	if filter.Step != "" {
		where += " AND step = ?"
		args = append(args, filter.Step)
	}
	if !filter.DateAfter.IsZero() {
		where += " AND DATE(timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}
	if !filter.DateBefore.IsZero() {
		where += " AND DATE(timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRestoration(row rowScanner) (*model.Restoration, error) {
	var rec model.Restoration
	var durationMs int64
	err := row.Scan(&rec.ID, &rec.UID, &rec.Filename, &rec.OriginalFilename, &rec.Engine, &rec.Step, &rec.JobID,
		&rec.InputSize, &rec.OutputSize, &rec.Width, &rec.Height, &durationMs, &rec.CacheHit,
		&rec.FilePath, &rec.ThumbnailPath, &rec.Timestamp)
	if err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}
