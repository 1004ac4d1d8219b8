package models

import "time"

// AttendanceCounts aggregates status counts over a set of persisted records.
type AttendanceCounts struct {
	TotalDays      int     `json:"total_days"`
	PresentDays    int     `json:"present_days"`
	AbsentDays     int     `json:"absent_days"`
	LateDays       int     `json:"late_days"`
	AttendanceRate float64 `json:"attendance_rate"`
	LateRate       float64 `json:"late_rate"`
}

// StudentAttendanceStats summarises one student's attendance over a date range.
type StudentAttendanceStats struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	AttendanceCounts
}

// ClassAttendanceStats summarises a class over a date range.
type ClassAttendanceStats struct {
	ClassID   string                   `json:"class_id"`
	ClassName string                   `json:"class_name,omitempty"`
	StartDate time.Time                `json:"start_date"`
	EndDate   time.Time                `json:"end_date"`
	Summary   AttendanceCounts         `json:"summary"`
	Students  []StudentAttendanceStats `json:"students"`
}

// ClassDailyCounts are raw counts for one class on one date.
type ClassDailyCounts struct {
	ClassID        string    `json:"class_id"`
	ClassName      string    `json:"class_name,omitempty"`
	Date           time.Time `json:"date"`
	Total          int       `json:"total"`
	Present        int       `json:"present"`
	Absent         int       `json:"absent"`
	Late           int       `json:"late"`
	Recorded       int       `json:"recorded"`
	AttendanceRate float64   `json:"attendance_rate"`
}
