package timelapse

import (
	"errors"
	"strconv"
	"time"
)

var calendarLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC3339, calendar dates without offset (read in loc) or
// unix seconds. The result is expressed in loc, which decides the calendar
// hour a frame belongs to.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.In(loc), nil
	}
	for _, layout := range calendarLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).In(loc), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DDTHH:MM, YYYY-MM-DD or unix seconds")
}
