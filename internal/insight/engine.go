package insight

import (
	"context"
	"time"
)

// DefaultRankLimit is the number of ranked entries shown per list.
const DefaultRankLimit = 5

// Insight is the answer produced for a single question.
type Insight struct {
	Intent          Intent     `json:"intent"`
	Summary         string     `json:"summary"`
	Recommendations []string   `json:"recommendations"`
	Alerts          []string   `json:"alerts"`
	Data            Payload    `json:"data"`
	AsOf            *time.Time `json:"as_of,omitempty"`
}

// Enricher adds optional detail to an insight, for example from an external model.
type Enricher interface {
	Enrich(ctx context.Context, in Insight) (Insight, error)
}

// NopEnricher returns insights unchanged.
type NopEnricher struct{}

// Enrich implements Enricher.
func (NopEnricher) Enrich(_ context.Context, in Insight) (Insight, error) {
	return in, nil
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Router      Router
	Thresholds  Thresholds
	TrendWindow int
	RankLimit   int
}

// Engine routes questions and assembles insights from a record window.
type Engine struct {
	router      Router
	formatter   Formatter
	trendWindow int
	rankLimit   int
}

// NewEngine constructs an engine.
func NewEngine(opts Options) *Engine {
	if opts.Router == nil {
		opts.Router = KeywordRouter{}
	}
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = DefaultTrendWindow
	}
	if opts.RankLimit <= 0 {
		opts.RankLimit = DefaultRankLimit
	}
	return &Engine{
		router:      opts.Router,
		formatter:   NewFormatter(opts.Thresholds),
		trendWindow: opts.TrendWindow,
		rankLimit:   opts.RankLimit,
	}
}

// Compute answers a question with the default engine.
func Compute(query string, window Window, lookups Lookups) Insight {
	return NewEngine(Options{}).Compute(query, window, lookups)
}

// Thresholds exposes the thresholds in effect.
func (e *Engine) Thresholds() Thresholds {
	return e.formatter.Thresholds
}

// Compute routes the query and renders an insight. An empty window yields the
// no-data insight rather than an error.
func (e *Engine) Compute(query string, window Window, lookups Lookups) Insight {
	intent := e.router.Route(query)
	payload := e.Payload(intent, window, lookups)

	out := Insight{
		Intent:          intent,
		Summary:         e.formatter.Summary(intent, payload, window.AsOf),
		Recommendations: e.formatter.Recommendations(intent, payload),
		Alerts:          e.formatter.Alerts(payload),
		Data:            payload,
	}
	if !window.AsOf.IsZero() {
		asOf := CalendarDay(window.AsOf)
		out.AsOf = &asOf
	}
	return out
}

// Payload runs the aggregations an intent needs.
func (e *Engine) Payload(intent Intent, window Window, lookups Lookups) Payload {
	payload := Payload{Start: window.Start, End: window.End}
	if window.Empty() {
		return payload
	}
	records := window.Records

	payload.Overall = Overall(records)
	payload.Label = e.formatter.Thresholds.Label(payload.Overall.Rate)
	byStudent := Aggregate(records, GroupStudent, lookups)
	bySection := Aggregate(records, GroupSection, lookups)
	payload.StudentCount = len(byStudent)
	payload.SectionCount = len(bySection)
	payload.ChronicAbsentees = e.chronic(byStudent)

	switch intent {
	case IntentRate:
		payload.Sections = Rank(bySection, MetricRateDescending, e.rankLimit)
	case IntentAbsence:
		payload.TopAbsentees = withAbsences(Rank(byStudent, MetricAbsenceCount, e.rankLimit))
	case IntentTrend:
		payload.Daily = Series(Aggregate(records, GroupDay, lookups))
		trend := AnalyzeTrend(Rates(payload.Daily), e.trendWindow)
		payload.Trend = &trend
	case IntentStudentPerformance:
		payload.TopPerformers = Rank(byStudent, MetricRateDescending, e.rankLimit)
		payload.NeedsAttention = Rank(byStudent, MetricRateAscending, e.rankLimit)
	}
	return payload
}

func (e *Engine) chronic(byStudent map[string]Bucket) []Ranked {
	threshold := e.formatter.Thresholds.ChronicAbsences
	out := []Ranked{}
	for _, r := range Rank(byStudent, MetricAbsenceCount, len(byStudent)) {
		if r.Stats.Absent < threshold {
			break
		}
		out = append(out, r)
	}
	return out
}

func withAbsences(ranked []Ranked) []Ranked {
	out := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Stats.Absent > 0 {
			out = append(out, r)
		}
	}
	return out
}
