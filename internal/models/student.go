package models

import (
	"strings"
	"time"
)

// Student represents a learner on a section roster.
type Student struct {
	ID             string    `db:"id" json:"id"`
	ExternalNumber string    `db:"external_number" json:"external_number"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	MiddleName     *string   `db:"middle_name" json:"middle_name,omitempty"`
	SectionID      string    `db:"section_id" json:"section_id"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName renders "First Middle Last", skipping blank parts.
func (s Student) DisplayName() string {
	parts := []string{strings.TrimSpace(s.FirstName)}
	if s.MiddleName != nil {
		parts = append(parts, strings.TrimSpace(*s.MiddleName))
	}
	parts = append(parts, strings.TrimSpace(s.LastName))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	SectionID string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with section context.
type StudentDetail struct {
	Student
	SectionName *string `db:"section_name" json:"section_name,omitempty"`
}

// RosterImportResult summarises a roster file import.
type RosterImportResult struct {
	SectionID string           `json:"section_id"`
	Processed int              `json:"processed"`
	Created   int              `json:"created"`
	Updated   int              `json:"updated"`
	Errors    []RosterRowError `json:"errors,omitempty"`
}

// RosterRowError reports a rejected roster row (1-based, header excluded).
type RosterRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
