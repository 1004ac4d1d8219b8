package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire and in cache keys.
const DateLayout = "2006-01-02"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus normalises free text into a status.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	status := AttendanceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// AttendanceRecord is one student's attendance on one calendar date.
// An empty ID means the record has not been persisted yet.
type AttendanceRecord struct {
	ID              string           `db:"id" json:"id,omitempty"`
	StudentID       string           `db:"student_id" json:"student_id"`
	Date            time.Time        `db:"date" json:"date"`
	Status          AttendanceStatus `db:"status" json:"status"`
	CheckInTime     *ClockTime       `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime    *ClockTime       `db:"check_out_time" json:"check_out_time,omitempty"`
	LateArrivalTime *ClockTime       `db:"late_arrival_time" json:"late_arrival_time,omitempty"`
	ExcuseReason    *string          `db:"excuse_reason" json:"excuse_reason,omitempty"`
	CheckInImage    []byte           `db:"check_in_image" json:"-"`
	CheckOutImage   []byte           `db:"check_out_image" json:"-"`
	CreatedAt       *time.Time       `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt       *time.Time       `db:"updated_at" json:"updated_at,omitempty"`

	// Read-path display attributes.
	StudentName string `db:"student_name" json:"student_name,omitempty"`
	ClassName   string `db:"class_name" json:"class_name,omitempty"`
}

// Persisted reports whether the record has a backing row.
func (r AttendanceRecord) Persisted() bool {
	return r.ID != ""
}

// Key returns the natural key of the record.
func (r AttendanceRecord) Key() RecordKey {
	return RecordKey{StudentID: r.StudentID, Date: NormalizeDate(r.Date)}
}

// HasCheckInImage reports whether check-in evidence is attached.
func (r AttendanceRecord) HasCheckInImage() bool {
	return len(r.CheckInImage) > 0
}

// HasCheckOutImage reports whether check-out evidence is attached.
func (r AttendanceRecord) HasCheckOutImage() bool {
	return len(r.CheckOutImage) > 0
}

// Clone returns a deep copy so callers can mutate pointers and blobs safely.
func (r AttendanceRecord) Clone() AttendanceRecord {
	out := r
	out.CheckInTime = r.CheckInTime.Clone()
	out.CheckOutTime = r.CheckOutTime.Clone()
	out.LateArrivalTime = r.LateArrivalTime.Clone()
	if r.ExcuseReason != nil {
		reason := *r.ExcuseReason
		out.ExcuseReason = &reason
	}
	if r.CheckInImage != nil {
		out.CheckInImage = append([]byte(nil), r.CheckInImage...)
	}
	if r.CheckOutImage != nil {
		out.CheckOutImage = append([]byte(nil), r.CheckOutImage...)
	}
	if r.CreatedAt != nil {
		created := *r.CreatedAt
		out.CreatedAt = &created
	}
	if r.UpdatedAt != nil {
		updated := *r.UpdatedAt
		out.UpdatedAt = &updated
	}
	return out
}

// RecordKey is the natural (student, date) key of an attendance record.
type RecordKey struct {
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"`
}

// String renders the key as student|YYYY-MM-DD.
func (k RecordKey) String() string {
	return fmt.Sprintf("%s|%s", k.StudentID, k.Date.Format(DateLayout))
}

// MarshalText keeps keys usable as JSON map keys.
func (k RecordKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// NormalizeDate strips the time-of-day, keeping the calendar date in UTC.
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// EvidenceKind identifies which evidence blob a caller wants to view.
type EvidenceKind string

const (
	EvidenceCheckIn  EvidenceKind = "check-in"
	EvidenceCheckOut EvidenceKind = "check-out"
)

// Valid returns true when the kind is supported.
func (k EvidenceKind) Valid() bool {
	return k == EvidenceCheckIn || k == EvidenceCheckOut
}

// BulkFailure captures the fate of a record rejected by a bulk operation.
type BulkFailure struct {
	Key    RecordKey `json:"key"`
	Code   string    `json:"code"`
	Field  string    `json:"field,omitempty"`
	Reason string    `json:"reason"`
	Err    error     `json:"-"`
}

// BulkResult reports the outcome of every record in a bulk operation.
type BulkResult struct {
	Succeeded []RecordKey   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Processed returns the number of records the batch accounted for.
func (r BulkResult) Processed() int {
	return len(r.Succeeded) + len(r.Failed)
}
