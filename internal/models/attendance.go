package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// DateLayout is the calendar day format used across the attendance API.
const DateLayout = "2006-01-02"

// AttendanceRecord is a single student's attendance for one calendar day.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	ProofID    *string          `db:"proof_id" json:"proof_id,omitempty"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordDetail extends the record with display metadata.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName    string `db:"student_name" json:"student_name"`
	ExternalNumber string `db:"external_number" json:"external_number"`
	SectionName    string `db:"section_name" json:"section_name"`
}

// AttendanceFilter defines query filters for listing records.
type AttendanceFilter struct {
	SectionID string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceWindowFilter scopes the record window fed into analytics.
type AttendanceWindowFilter struct {
	SectionID string
	StudentID string
	DateFrom  time.Time
	DateTo    time.Time
}

// AttendanceSubmission replaces every record of a section for one day.
type AttendanceSubmission struct {
	SectionID  string
	Date       time.Time
	RecordedBy string
	ProofID    *string
	Records    []AttendanceRecord
}

// AttendanceHistoryRow captures attendance history entries.
type AttendanceHistoryRow struct {
	Date   time.Time        `db:"date" json:"date"`
	Status AttendanceStatus `db:"status" json:"status"`
	Notes  *string          `db:"notes" json:"notes,omitempty"`
}

// AttendanceProof references an uploaded file backing a section's submission.
type AttendanceProof struct {
	ID         string    `db:"id" json:"id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	Date       time.Time `db:"date" json:"date"`
	FilePath   string    `db:"file_path" json:"-"`
	FileName   string    `db:"file_name" json:"file_name"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
