package model

import "time"

// Restoration represents one completed restoration record.
type Restoration struct {
	ID               int64         `json:"id"`
	UID              string        `json:"uid"`
	Filename         string        `json:"filename"`
	OriginalFilename string        `json:"originalFilename"`
	Engine           string        `json:"engine"`
	Step             string        `json:"step"`
	JobID            string        `json:"jobId"`
	InputSize        int64         `json:"inputSize"`
	OutputSize       int64         `json:"outputSize"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	Duration         time.Duration `json:"duration"`
	CacheHit         bool          `json:"cacheHit"`
	FilePath         string        `json:"filepath"`
	ThumbnailPath    string        `json:"thumbnailPath"`
	Timestamp        time.Time     `json:"timestamp"`
}

// RestorationStats summarises the history table.
type RestorationStats struct {
	Total           int            `json:"total"`
	CacheHits       int            `json:"cacheHits"`
	TotalOutputSize int64          `json:"totalOutputSize"`
	PerEngine       map[string]int `json:"perEngine"`
	PerStep         map[string]int `json:"perStep"`
	AvgDurationMs   float64        `json:"avgDurationMs"`
}
