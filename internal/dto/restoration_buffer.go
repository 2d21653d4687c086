package dto

import "time"

// BufferedRestoration holds a finished restoration before it is flushed to disk.
type BufferedRestoration struct {
	ID               string
	Timestamp        time.Time
	OriginalFilename string
	Engine           string
	Step             string
	JobID            string
	InputSize        int64
	Width            int
	Height           int
	Duration         time.Duration
	CacheHit         bool
	Data             []byte
}
