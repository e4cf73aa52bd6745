package insight

import "strings"

// Intent is the classified purpose of a free-text question.
type Intent string

const (
	IntentRate               Intent = "rate"
	IntentAbsence            Intent = "absence"
	IntentTrend              Intent = "trend"
	IntentStudentPerformance Intent = "student_performance"
	IntentDefault            Intent = "default"
)

// Router classifies a question into an intent.
type Router interface {
	Route(query string) Intent
}

// KeywordRouter matches lower-cased substrings; the first matching rule wins.
type KeywordRouter struct{}

// Route implements Router.
func (KeywordRouter) Route(query string) Intent {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "rate") || strings.Contains(q, "percentage"):
		return IntentRate
	case strings.Contains(q, "absent") || strings.Contains(q, "missing"):
		return IntentAbsence
	case strings.Contains(q, "trend") || strings.Contains(q, "pattern"):
		return IntentTrend
	case strings.Contains(q, "student") && strings.Contains(q, "performance"):
		return IntentStudentPerformance
	default:
		return IntentDefault
	}
}
