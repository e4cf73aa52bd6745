package insight

import (
	"sort"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// Grouping selects how records are bucketed.
type Grouping string

const (
	GroupNone    Grouping = "none"
	GroupDay     Grouping = "day"
	GroupWeek    Grouping = "week"
	GroupSection Grouping = "section"
	GroupStudent Grouping = "student"
)

// overallKey is the single bucket key used when no grouping is requested.
const overallKey = "all"

// Stats holds attendance counts for a bucket.
type Stats struct {
	Present int     `json:"present_count"`
	Absent  int     `json:"absent_count"`
	Total   int     `json:"total_count"`
	Rate    float64 `json:"attendance_rate"`
}

// Rate returns present/total as a percentage, or 0 when total is zero.
func Rate(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(present) / float64(total) * 100
}

func (s *Stats) add(status models.AttendanceStatus) {
	switch status {
	case models.AttendanceStatusPresent:
		s.Present++
	case models.AttendanceStatusAbsent:
		s.Absent++
	default:
		return
	}
	s.Total++
	s.Rate = Rate(s.Present, s.Total)
}

// Bucket is one aggregation group. Period mirrors Key for day and week groupings;
// DisplayName is set for section and student groupings.
type Bucket struct {
	Mode        Grouping  `json:"mode"`
	Key         string    `json:"key"`
	Period      time.Time `json:"-"`
	DisplayName string    `json:"display_name,omitempty"`
	Stats
}

// Overall computes stats for the whole record set.
func Overall(records []models.AttendanceRecord) Stats {
	var stats Stats
	for _, rec := range records {
		stats.add(rec.Status)
	}
	return stats
}

// Aggregate groups records by the requested mode. The returned map is freshly
// allocated; the input slice is never modified.
func Aggregate(records []models.AttendanceRecord, mode Grouping, lookups Lookups) map[string]Bucket {
	groups := make(map[string]Bucket)
	for _, rec := range records {
		bucket := newBucket(rec, mode, lookups)
		if existing, ok := groups[bucket.Key]; ok {
			bucket = existing
		}
		bucket.add(rec.Status)
		groups[bucket.Key] = bucket
	}
	return groups
}

func newBucket(rec models.AttendanceRecord, mode Grouping, lookups Lookups) Bucket {
	switch mode {
	case GroupDay:
		day := CalendarDay(rec.Date)
		return Bucket{Mode: mode, Key: day.Format(models.DateLayout), Period: day}
	case GroupWeek:
		week := WeekStart(rec.Date)
		return Bucket{Mode: mode, Key: week.Format(models.DateLayout), Period: week}
	case GroupSection:
		return Bucket{Mode: mode, Key: rec.SectionID, DisplayName: lookups.SectionName(rec.SectionID)}
	case GroupStudent:
		return Bucket{Mode: mode, Key: rec.StudentID, DisplayName: lookups.StudentName(rec.StudentID)}
	default:
		return Bucket{Mode: GroupNone, Key: overallKey}
	}
}

// WeekStart returns the Monday of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	day := CalendarDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Series returns day or week buckets ordered chronologically. Periods without
// records are not zero-filled.
func Series(groups map[string]Bucket) []Bucket {
	series := make([]Bucket, 0, len(groups))
	for _, bucket := range groups {
		series = append(series, bucket)
	}
	sort.Slice(series, func(i, j int) bool {
		if !series[i].Period.Equal(series[j].Period) {
			return series[i].Period.Before(series[j].Period)
		}
		return series[i].Key < series[j].Key
	})
	return series
}

// Rates extracts the attendance rate of each bucket in order.
func Rates(series []Bucket) []float64 {
	rates := make([]float64, len(series))
	for i, bucket := range series {
		rates[i] = bucket.Rate
	}
	return rates
}
