// RestorationFilters describe user-provided filters to narrow the history list.
package dto

import "time"

type RestorationFilters struct {
	Engine     string
	Step       string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
