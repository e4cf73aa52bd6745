package insight

import "time"

// Overview is the dashboard view of a record window.
type Overview struct {
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	Overall          Stats      `json:"overall"`
	Label            string     `json:"label"`
	StudentCount     int        `json:"student_count"`
	SectionCount     int        `json:"section_count"`
	Daily            []Bucket   `json:"daily"`
	Weekly           []Bucket   `json:"weekly"`
	Sections         []Ranked   `json:"sections"`
	TopAbsentees     []Ranked   `json:"top_absentees"`
	NeedsAttention   []Ranked   `json:"needs_attention"`
	ChronicAbsentees []Ranked   `json:"chronic_absentees"`
	Trend            Trend      `json:"trend"`
	Alerts           []string   `json:"alerts"`
	AsOf             *time.Time `json:"as_of,omitempty"`
}

// Overview runs every aggregation over the window regardless of intent.
func (e *Engine) Overview(window Window, lookups Lookups) Overview {
	out := Overview{
		Start:            window.Start,
		End:              window.End,
		Daily:            []Bucket{},
		Weekly:           []Bucket{},
		Sections:         []Ranked{},
		TopAbsentees:     []Ranked{},
		NeedsAttention:   []Ranked{},
		ChronicAbsentees: []Ranked{},
		Trend:            Trend{Direction: DirectionStable},
		Alerts:           []string{},
	}
	if window.Empty() {
		return out
	}
	records := window.Records
	byStudent := Aggregate(records, GroupStudent, lookups)
	bySection := Aggregate(records, GroupSection, lookups)

	out.Overall = Overall(records)
	out.Label = e.formatter.Thresholds.Label(out.Overall.Rate)
	out.StudentCount = len(byStudent)
	out.SectionCount = len(bySection)
	out.Daily = Series(Aggregate(records, GroupDay, lookups))
	out.Weekly = Series(Aggregate(records, GroupWeek, lookups))
	out.Sections = Rank(bySection, MetricRateDescending, len(bySection))
	out.TopAbsentees = withAbsences(Rank(byStudent, MetricAbsenceCount, e.rankLimit))
	out.NeedsAttention = Rank(byStudent, MetricRateAscending, e.rankLimit)
	out.ChronicAbsentees = e.chronic(byStudent)
	out.Trend = AnalyzeTrend(Rates(out.Daily), e.trendWindow)
	out.Alerts = e.formatter.Alerts(Payload{Overall: out.Overall, ChronicAbsentees: out.ChronicAbsentees})
	if !window.AsOf.IsZero() {
		asOf := CalendarDay(window.AsOf)
		out.AsOf = &asOf
	}
	return out
}
