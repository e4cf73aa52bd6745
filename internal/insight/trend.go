package insight

import "math"

// DefaultTrendWindow is the number of periods compared when none is configured.
const DefaultTrendWindow = 7

// Direction is the qualitative result of a trend comparison.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
	DirectionStable    Direction = "stable"
)

// rateEpsilon absorbs float noise when comparing means of the same rates.
const rateEpsilon = 1e-9

// Trend compares the mean rate of the most recent periods against the periods
// immediately before them.
type Trend struct {
	Direction     Direction `json:"direction"`
	RecentMean    float64   `json:"recent_mean"`
	PriorMean     float64   `json:"prior_mean"`
	RecentPeriods int       `json:"recent_periods"`
	PriorPeriods  int       `json:"prior_periods"`
}

// AnalyzeTrend splits chronologically ordered rates into a recent window of the
// last n periods and a prior window of up to n periods before it. When either window
// is empty the direction is stable.
func AnalyzeTrend(rates []float64, n int) Trend {
	if n <= 0 {
		n = DefaultTrendWindow
	}
	recentStart := len(rates) - n
	if recentStart < 0 {
		recentStart = 0
	}
	priorStart := recentStart - n
	if priorStart < 0 {
		priorStart = 0
	}
	recent := rates[recentStart:]
	prior := rates[priorStart:recentStart]

	trend := Trend{
		Direction:     DirectionStable,
		RecentMean:    mean(recent),
		PriorMean:     mean(prior),
		RecentPeriods: len(recent),
		PriorPeriods:  len(prior),
	}
	if len(recent) == 0 || len(prior) == 0 {
		return trend
	}
	diff := trend.RecentMean - trend.PriorMean
	switch {
	case math.Abs(diff) < rateEpsilon:
		trend.Direction = DirectionStable
	case diff > 0:
		trend.Direction = DirectionImproving
	default:
		trend.Direction = DirectionDeclining
	}
	return trend
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
