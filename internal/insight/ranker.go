package insight

import "sort"

// Metric selects the value and direction used to order buckets.
type Metric string

const (
	// MetricAbsenceCount orders by absences, most absent first.
	MetricAbsenceCount Metric = "absence_count"
	// MetricRateAscending orders by attendance rate, lowest first ("needs attention").
	MetricRateAscending Metric = "attendance_rate_asc"
	// MetricRateDescending orders by attendance rate, highest first ("top performers").
	MetricRateDescending Metric = "attendance_rate_desc"
)

// Ranked is one ordered entry produced by Rank.
type Ranked struct {
	Key         string  `json:"key"`
	DisplayName string  `json:"display_name"`
	Value       float64 `json:"value"`
	Stats       Stats   `json:"stats"`
}

// Rank orders student or section buckets by metric and truncates to limit.
// Ties are broken by display name, then key. A non-positive limit yields no entries.
func Rank(groups map[string]Bucket, metric Metric, limit int) []Ranked {
	if limit <= 0 || len(groups) == 0 {
		return []Ranked{}
	}
	ranked := make([]Ranked, 0, len(groups))
	for key, bucket := range groups {
		name := bucket.DisplayName
		if name == "" {
			name = key
		}
		ranked = append(ranked, Ranked{Key: key, DisplayName: name, Value: metricValue(bucket.Stats, metric), Stats: bucket.Stats})
	}

	ascending := metric == MetricRateAscending
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Value != b.Value {
			if ascending {
				return a.Value < b.Value
			}
			return a.Value > b.Value
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.Key < b.Key
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func metricValue(stats Stats, metric Metric) float64 {
	switch metric {
	case MetricAbsenceCount:
		return float64(stats.Absent)
	default:
		return stats.Rate
	}
}
