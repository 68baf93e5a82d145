package notifications

import (
	"fmt"
	"sync"
	"time"

	models "trading-journal/database/models_pkg"
)

var locations sync.Map // timezone name -> *time.Location

// ParseClock parses "HH:MM" into minutes after midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// InQuietHours reports whether now falls inside the [start, end) window in the
// configured time zone. Windows may wrap past midnight; start == end is empty.
// Unparseable settings never silence notifications.
func InQuietHours(q models.QuietHours, now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := ParseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(q.End)
	if err != nil || start == end {
		return false
	}

	local := now.In(location(q.Timezone))
	minute := local.Hour()*60 + local.Minute()

	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	locations.Store(name, loc)
	return loc
}
