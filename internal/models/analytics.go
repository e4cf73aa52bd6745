package models

import "time"

// AnalyticsFilter scopes attendance analytics queries.
type AnalyticsFilter struct {
	SectionID string
	DateFrom  time.Time
	DateTo    time.Time
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64     `json:"cache_hit_ratio"`
	CacheHits                uint64      `json:"cache_hits"`
	CacheMisses              uint64      `json:"cache_misses"`
	RequestsTotal            uint64      `json:"requests_total"`
	AverageRequestDurationMs float64     `json:"average_request_duration_ms"`
	DBQueryCount             uint64      `json:"db_query_count"`
	AverageDBQueryDurationMs float64     `json:"average_db_query_duration_ms"`
	InsightQueries           uint64      `json:"insight_queries"`
	Goroutines               int         `json:"goroutines"`
	NotificationQueue        *QueueStats `json:"notification_queue,omitempty"`
	GeneratedAt              time.Time   `json:"generated_at"`
}

// QueueStats reports the background notification queue counters.
type QueueStats struct {
	Enqueued  uint64 `json:"enqueued"`
	Succeeded uint64 `json:"succeeded"`
	Retried   uint64 `json:"retried"`
	Dropped   uint64 `json:"dropped"`
	Pending   int    `json:"pending"`
}

// InsightTranscript stores one interactive question and the answer shown to the user.
type InsightTranscript struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Query     string    `db:"query" json:"query"`
	Intent    string    `db:"intent" json:"intent"`
	Summary   string    `db:"summary" json:"summary"`
	SectionID *string   `db:"section_id" json:"section_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
