package calendar

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
)

// TimeRange: полуинтервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange создаёт интервал и проверяет, что он не пустой.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// HasOverlap проверяет пересечение newRange с существующими интервалами.
// inclusive = true считает касание концов пересечением.
func HasOverlap(newRange TimeRange, existing []TimeRange, inclusive bool) (bool, []TimeRange) {
	var conflicts []TimeRange
	for _, tr := range existing {
		if rangesOverlap(newRange, tr, inclusive) {
			conflicts = append(conflicts, tr)
		}
	}
	return len(conflicts) > 0, conflicts
}

func rangesOverlap(a, b TimeRange, inclusive bool) bool {
	if inclusive {
		return !a.Start.After(b.End) && !b.Start.After(a.End)
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// SlotRange возвращает [start, start+duration).
func SlotRange(start time.Time, duration time.Duration) (TimeRange, error) {
	if duration <= 0 {
		return TimeRange{}, ErrSlotDuration
	}
	return TimeRange{Start: start, End: start.Add(duration)}, nil
}

// FormatSlotForUser renders a slot as "Monday, 02 Jan 2006, 09:00–10:00" in loc.
// При loc == nil интервал выводится в UTC.
func FormatSlotForUser(tr TimeRange, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	start := tr.Start.In(loc)
	end := tr.End.In(loc)
	return fmt.Sprintf("%s, %s, %s–%s",
		start.Weekday(),
		start.Format("02 Jan 2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
}
