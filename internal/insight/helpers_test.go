package insight

import (
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(studentID, sectionID, date string, status models.AttendanceStatus) models.AttendanceRecord {
	return models.AttendanceRecord{StudentID: studentID, SectionID: sectionID, Date: day(date), Status: status}
}

func present(studentID, date string) models.AttendanceRecord {
	return record(studentID, "sec-1", date, models.AttendanceStatusPresent)
}

func absent(studentID, date string) models.AttendanceRecord {
	return record(studentID, "sec-1", date, models.AttendanceStatusAbsent)
}
