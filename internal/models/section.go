package models

import "time"

// Section represents a class section students are rostered into.
type Section struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	GradeLevel string    `db:"grade_level" json:"grade_level"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	AdviserID  *string   `db:"adviser_id" json:"adviser_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SectionDetail extends Section with adviser contact information.
type SectionDetail struct {
	Section
	AdviserName  *string `db:"adviser_name" json:"adviser_name,omitempty"`
	AdviserEmail *string `db:"adviser_email" json:"adviser_email,omitempty"`
}

// SectionFilter defines filter criteria for listing sections.
type SectionFilter struct {
	GradeLevel string
	SchoolYear string
	AdviserID  string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
