package insight

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// NoDataMessage is the summary used for an empty record window.
const NoDataMessage = "No attendance data is available for the selected period."

const (
	LabelExcellent      = "excellent"
	LabelGood           = "good"
	LabelNeedsAttention = "needs attention"
)

// Thresholds are the product cut-offs used to label rates and flag absences.
type Thresholds struct {
	Excellent       float64
	Good            float64
	ChronicAbsences int
}

// DefaultThresholds mirror the labels shown on the dashboard.
var DefaultThresholds = Thresholds{Excellent: 90, Good: 80, ChronicAbsences: 3}

func (t Thresholds) withDefaults() Thresholds {
	if t.Excellent <= 0 {
		t.Excellent = DefaultThresholds.Excellent
	}
	if t.Good <= 0 {
		t.Good = DefaultThresholds.Good
	}
	if t.ChronicAbsences <= 0 {
		t.ChronicAbsences = DefaultThresholds.ChronicAbsences
	}
	return t
}

// Label maps a rate to its qualitative label.
func (t Thresholds) Label(rate float64) string {
	switch {
	case rate >= t.Excellent:
		return LabelExcellent
	case rate >= t.Good:
		return LabelGood
	default:
		return LabelNeedsAttention
	}
}

// Payload is the supporting data rendered by the formatter.
type Payload struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Overall          Stats     `json:"overall"`
	Label            string    `json:"label"`
	StudentCount     int       `json:"student_count"`
	SectionCount     int       `json:"section_count"`
	Sections         []Ranked  `json:"sections,omitempty"`
	TopAbsentees     []Ranked  `json:"top_absentees,omitempty"`
	TopPerformers    []Ranked  `json:"top_performers,omitempty"`
	NeedsAttention   []Ranked  `json:"needs_attention,omitempty"`
	ChronicAbsentees []Ranked  `json:"chronic_absentees,omitempty"`
	Daily            []Bucket  `json:"daily,omitempty"`
	Trend            *Trend    `json:"trend,omitempty"`
}

// Formatter renders payloads into fixed text templates.
type Formatter struct {
	Thresholds Thresholds
}

// NewFormatter builds a formatter, filling unset thresholds with defaults.
func NewFormatter(t Thresholds) Formatter {
	return Formatter{Thresholds: t.withDefaults()}
}

// Percent renders a percentage with one decimal place.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// Summary renders the main text for an intent.
func (f Formatter) Summary(intent Intent, p Payload, asOf time.Time) string {
	if p.Overall.Total == 0 {
		return NoDataMessage
	}
	switch intent {
	case IntentRate:
		return fmt.Sprintf("Overall attendance rate is %s (%d of %d records present), rated %s.",
			Percent(p.Overall.Rate), p.Overall.Present, p.Overall.Total, f.Thresholds.Label(p.Overall.Rate))
	case IntentAbsence:
		if p.Overall.Absent == 0 || len(p.TopAbsentees) == 0 {
			return fmt.Sprintf("No absences were recorded across %d records.", p.Overall.Total)
		}
		return fmt.Sprintf("%d absences were recorded across %d records. Most absent: %s.",
			p.Overall.Absent, p.Overall.Total, joinRanked(p.TopAbsentees, absenceEntry))
	case IntentTrend:
		return f.trendSummary(p)
	case IntentStudentPerformance:
		return fmt.Sprintf("Top performers: %s. Needs attention: %s.",
			joinRanked(p.TopPerformers, rateEntry), joinRanked(p.NeedsAttention, rateEntry))
	default:
		text := fmt.Sprintf("%d attendance records for %d students across %d sections. Overall attendance rate is %s (%s).",
			p.Overall.Total, p.StudentCount, p.SectionCount, Percent(p.Overall.Rate), f.Thresholds.Label(p.Overall.Rate))
		if !asOf.IsZero() {
			text = fmt.Sprintf("As of %s: %s", asOf.Format(models.DateLayout), text)
		}
		return text
	}
}

func (f Formatter) trendSummary(p Payload) string {
	if p.Trend == nil || p.Trend.RecentPeriods == 0 || p.Trend.PriorPeriods == 0 {
		return fmt.Sprintf("Attendance is %s: there is not enough history to compare two periods (current average %s).",
			DirectionStable, Percent(p.Overall.Rate))
	}
	return fmt.Sprintf("Attendance is %s: the last %d days averaged %s compared with %s over the previous %d days.",
		p.Trend.Direction, p.Trend.RecentPeriods, Percent(p.Trend.RecentMean), Percent(p.Trend.PriorMean), p.Trend.PriorPeriods)
}

// Recommendations suggests follow-up actions for an intent.
func (f Formatter) Recommendations(intent Intent, p Payload) []string {
	recs := []string{}
	if p.Overall.Total == 0 {
		return recs
	}
	switch intent {
	case IntentRate:
		switch f.Thresholds.Label(p.Overall.Rate) {
		case LabelNeedsAttention:
			recs = append(recs, "Review daily attendance with section advisers and contact families of frequently absent students.")
		case LabelGood:
			recs = append(recs, fmt.Sprintf("Focus on sections below %s to reach an excellent rate.", Percent(f.Thresholds.Excellent)))
		default:
			recs = append(recs, "Keep the current attendance practices in place.")
		}
	case IntentAbsence:
		for _, r := range p.TopAbsentees {
			if r.Stats.Absent >= f.Thresholds.ChronicAbsences {
				recs = append(recs, fmt.Sprintf("Follow up with %s about %d absences.", r.DisplayName, r.Stats.Absent))
			}
		}
	case IntentTrend:
		if p.Trend != nil {
			switch p.Trend.Direction {
			case DirectionDeclining:
				recs = append(recs, "Look into the recent days with low attendance and the sections driving the decline.")
			case DirectionImproving:
				recs = append(recs, "Keep reinforcing the practices behind the recent improvement.")
			}
		}
	case IntentStudentPerformance:
		for _, r := range p.NeedsAttention {
			if r.Stats.Rate < f.Thresholds.Good {
				recs = append(recs, fmt.Sprintf("Check in with %s (%s attendance).", r.DisplayName, Percent(r.Stats.Rate)))
			}
		}
	default:
		recs = append(recs, "Ask about attendance rates, absences, trends or student performance for more detail.")
	}
	return recs
}

// Alerts lists conditions that need attention regardless of the question asked.
func (f Formatter) Alerts(p Payload) []string {
	alerts := []string{}
	if p.Overall.Total == 0 {
		return alerts
	}
	if p.Overall.Rate < f.Thresholds.Good {
		alerts = append(alerts, fmt.Sprintf("Overall attendance rate %s is below the %s target.",
			Percent(p.Overall.Rate), Percent(f.Thresholds.Good)))
	}
	for _, r := range p.ChronicAbsentees {
		alerts = append(alerts, fmt.Sprintf("%s has %d absences.", r.DisplayName, r.Stats.Absent))
	}
	return alerts
}

func absenceEntry(r Ranked) string {
	return fmt.Sprintf("%s (%d)", r.DisplayName, r.Stats.Absent)
}

func rateEntry(r Ranked) string {
	return fmt.Sprintf("%s (%s)", r.DisplayName, Percent(r.Stats.Rate))
}

func joinRanked(entries []Ranked, render func(Ranked) string) string {
	if len(entries) == 0 {
		return "none"
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = render(e)
	}
	return strings.Join(parts, ", ")
}
