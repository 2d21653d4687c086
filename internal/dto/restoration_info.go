package dto

import (
	"time"

	"github.com/goccy/go-json"
)

// RestorationInfo is the public view of a history record.
type RestorationInfo struct {
	ID               int64     `json:"id"`
	UID              string    `json:"uid"`
	Name             string    `json:"name"`
	OriginalFilename string    `json:"originalFilename"`
	Engine           string    `json:"engine"`
	Step             string    `json:"step"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	OutputSize       int64     `json:"outputSize"`
	DurationMs       int64     `json:"durationMs"`
	CacheHit         bool      `json:"cacheHit"`
	Date             time.Time `json:"date"`
	TimeOfDay        time.Time `json:"timeOfDay"`
}

// MarshalJSON customizes JSON output for RestorationInfo to format date and time-of-day.
func (p RestorationInfo) MarshalJSON() ([]byte, error) {
	type Alias RestorationInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(p),
	})
}
