// Package insight turns a window of attendance records into statistics, rankings,
// trends and templated summaries. Everything here is pure: callers fetch the records
// and lookups, and nothing in the package performs I/O or keeps state between calls.
package insight

import (
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// Lookups resolves entity identifiers to display names.
type Lookups struct {
	Students map[string]string
	Sections map[string]string
}

// StudentName returns the display name for a student, falling back to the id.
func (l Lookups) StudentName(id string) string {
	if name, ok := l.Students[id]; ok && name != "" {
		return name
	}
	return id
}

// SectionName returns the display name for a section, falling back to the id.
func (l Lookups) SectionName(id string) string {
	if name, ok := l.Sections[id]; ok && name != "" {
		return name
	}
	return id
}

// Window is the working set of records for a single computation.
type Window struct {
	Start   time.Time
	End     time.Time
	AsOf    time.Time
	Records []models.AttendanceRecord
}

// NewWindow builds a window whose "as of" date is the end of the range.
func NewWindow(start, end time.Time, records []models.AttendanceRecord) Window {
	return Window{Start: start, End: end, AsOf: end, Records: records}
}

// Empty reports whether the window holds no records.
func (w Window) Empty() bool {
	return len(w.Records) == 0
}

// CalendarDay returns UTC midnight of the date t shows in its own location.
// Stored days are UTC midnights, so a local "now" must be passed in the
// school's location before calling this.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
