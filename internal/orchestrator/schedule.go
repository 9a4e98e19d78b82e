package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// scheduleLayouts are the accepted wall-clock formats, most specific first.
// Layouts without an offset are read in the configured zone.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseSchedule reads a scheduled publish time. An empty value means
// "publish now" and yields nil.
func ParseSchedule(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid schedule %q: want YYYY-MM-DDTHH:MM", value)
}
