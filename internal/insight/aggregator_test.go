package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

func TestOverallEmptyWindow(t *testing.T) {
	stats := Overall(nil)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.Rate)
}

func TestOverallCountsAndRate(t *testing.T) {
	records := []models.AttendanceRecord{
		present("a", "2024-03-04"),
		present("b", "2024-03-04"),
		absent("c", "2024-03-04"),
		present("a", "2024-03-05"),
	}
	stats := Overall(records)
	assert.Equal(t, 3, stats.Present)
	assert.Equal(t, 1, stats.Absent)
	assert.Equal(t, stats.Present+stats.Absent, stats.Total)
	assert.InDelta(t, 75.0, stats.Rate, 1e-9)
}

func TestAggregateByStudentResolvesNames(t *testing.T) {
	records := []models.AttendanceRecord{
		present("a", "2024-03-04"),
		absent("a", "2024-03-05"),
		absent("b", "2024-03-04"),
	}
	lookups := Lookups{Students: map[string]string{"a": "Ana Cruz"}}

	groups := Aggregate(records, GroupStudent, lookups)
	require.Len(t, groups, 2)
	assert.Equal(t, "Ana Cruz", groups["a"].DisplayName)
	assert.Equal(t, "b", groups["b"].DisplayName)
	assert.Equal(t, GroupStudent, groups["a"].Mode)
	assert.InDelta(t, 50.0, groups["a"].Rate, 1e-9)
	assert.Equal(t, 0.0, groups["b"].Rate)

	for _, g := range groups {
		assert.Equal(t, g.Total, g.Present+g.Absent)
		assert.True(t, g.Rate >= 0 && g.Rate <= 100)
	}
}

func TestAggregateBySection(t *testing.T) {
	records := []models.AttendanceRecord{
		record("a", "sec-1", "2024-03-04", models.AttendanceStatusPresent),
		record("b", "sec-2", "2024-03-04", models.AttendanceStatusAbsent),
	}
	groups := Aggregate(records, GroupSection, Lookups{Sections: map[string]string{"sec-1": "Rizal"}})
	require.Len(t, groups, 2)
	assert.Equal(t, "Rizal", groups["sec-1"].DisplayName)
	assert.Equal(t, 1, groups["sec-2"].Absent)
}

func TestAggregateByWeekUsesMondayAndSkipsEmptyWeeks(t *testing.T) {
	records := []models.AttendanceRecord{
		present("a", "2024-03-06"), // Wednesday
		absent("a", "2024-03-10"),  // Sunday, same ISO week
		present("a", "2024-03-25"), // two weeks later
	}
	groups := Aggregate(records, GroupWeek, Lookups{})
	require.Len(t, groups, 2)
	require.Contains(t, groups, "2024-03-04")
	require.Contains(t, groups, "2024-03-25")
	assert.Equal(t, 2, groups["2024-03-04"].Total)
	assert.NotContains(t, groups, "2024-03-11")
	assert.NotContains(t, groups, "2024-03-18")
}

func TestSeriesIsChronological(t *testing.T) {
	records := []models.AttendanceRecord{
		present("a", "2024-03-07"),
		absent("a", "2024-03-05"),
		present("b", "2024-03-06"),
	}
	series := Series(Aggregate(records, GroupDay, Lookups{}))
	require.Len(t, series, 3)
	assert.Equal(t, "2024-03-05", series[0].Key)
	assert.Equal(t, "2024-03-06", series[1].Key)
	assert.Equal(t, "2024-03-07", series[2].Key)
	assert.Equal(t, []float64{0, 100, 100}, Rates(series))
}

func TestAggregateIsIdempotent(t *testing.T) {
	records := []models.AttendanceRecord{
		present("a", "2024-03-04"),
		absent("b", "2024-03-04"),
		present("b", "2024-03-05"),
	}
	snapshot := append([]models.AttendanceRecord(nil), records...)

	first := Aggregate(records, GroupDay, Lookups{})
	second := Aggregate(records, GroupDay, Lookups{})
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, records)
}

func TestAggregateNoGrouping(t *testing.T) {
	groups := Aggregate([]models.AttendanceRecord{present("a", "2024-03-04")}, GroupNone, Lookups{})
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[overallKey].Present)
}
