package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// ValidationCode names the consistency rule an attendance record violated.
type ValidationCode string

const (
	CodeMissingCheckIn        ValidationCode = "MISSING_CHECK_IN"
	CodeMissingLateArrival    ValidationCode = "MISSING_LATE_ARRIVAL"
	CodeCheckOutBeforeCheckIn ValidationCode = "CHECK_OUT_BEFORE_CHECK_IN"
	CodeBadTimeFormat         ValidationCode = "BAD_TIME_FORMAT"
	CodeInvalidStatus         ValidationCode = "INVALID_STATUS"
	CodeInvalidDate           ValidationCode = "INVALID_DATE"
	CodeMissingStudent        ValidationCode = "MISSING_STUDENT"
	CodeInvalidRange          ValidationCode = "INVALID_RANGE"
)

// Field names reported by validation errors; they match the JSON form fields.
const (
	FieldStatus          = "status"
	FieldStudentID       = "student_id"
	FieldDate            = "date"
	FieldCheckInTime     = "check_in_time"
	FieldCheckOutTime    = "check_out_time"
	FieldLateArrivalTime = "late_arrival_time"
)

// ValidationError is a recoverable, per-record rule violation.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Field   string         `json:"field"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AppError converts the violation into the API error envelope, keeping the rule code.
func (e *ValidationError) AppError() *appErrors.Error {
	return appErrors.Wrap(e, string(e.Code), http.StatusBadRequest, e.Error())
}

func newValidationError(code ValidationCode, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

// AttendanceForm carries a record as it arrives from a form, with times still as text.
type AttendanceForm struct {
	ID              string  `json:"id"`
	StudentID       string  `json:"student_id"`
	Date            string  `json:"date"`
	Status          string  `json:"status"`
	CheckInTime     string  `json:"check_in_time"`
	CheckOutTime    string  `json:"check_out_time"`
	LateArrivalTime string  `json:"late_arrival_time"`
	ExcuseReason    *string `json:"excuse_reason"`
	CheckInImage    []byte  `json:"check_in_image"`
	CheckOutImage   []byte  `json:"check_out_image"`
}

// ParseAttendanceForm converts text fields into a record without applying consistency rules.
func ParseAttendanceForm(form AttendanceForm) (models.AttendanceRecord, error) {
	record := models.AttendanceRecord{
		ID:            strings.TrimSpace(form.ID),
		StudentID:     strings.TrimSpace(form.StudentID),
		CheckInImage:  form.CheckInImage,
		CheckOutImage: form.CheckOutImage,
	}
	if record.StudentID == "" {
		return models.AttendanceRecord{}, newValidationError(CodeMissingStudent, FieldStudentID, "student id is required")
	}
	date, err := models.ParseDate(form.Date)
	if err != nil {
		return models.AttendanceRecord{}, newValidationError(CodeInvalidDate, FieldDate, "date must be YYYY-MM-DD")
	}
	record.Date = date

	status, ok := models.ParseAttendanceStatus(form.Status)
	if !ok {
		return models.AttendanceRecord{}, newValidationError(CodeInvalidStatus, FieldStatus, "status must be PRESENT, ABSENT or LATE")
	}
	record.Status = status

	if record.CheckInTime, err = parseFormTime(FieldCheckInTime, form.CheckInTime); err != nil {
		return models.AttendanceRecord{}, err
	}
	if record.CheckOutTime, err = parseFormTime(FieldCheckOutTime, form.CheckOutTime); err != nil {
		return models.AttendanceRecord{}, err
	}
	if record.LateArrivalTime, err = parseFormTime(FieldLateArrivalTime, form.LateArrivalTime); err != nil {
		return models.AttendanceRecord{}, err
	}
	if form.ExcuseReason != nil {
		if reason := strings.TrimSpace(*form.ExcuseReason); reason != "" {
			record.ExcuseReason = &reason
		}
	}
	return record, nil
}

// ParseClockField parses HH:MM text, naming the field on failure.
func ParseClockField(field, raw string) (models.ClockTime, error) {
	parsed, err := models.ParseClockTime(strings.TrimSpace(raw))
	if err != nil {
		return models.ClockTime{}, newValidationError(CodeBadTimeFormat, field, fmt.Sprintf("%q is not a valid HH:MM time", raw))
	}
	return parsed, nil
}

func parseFormTime(field, raw string) (*models.ClockTime, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, err := ParseClockField(field, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// NormalizeAttendance clears or defaults the fields that depend on status.
func NormalizeAttendance(record models.AttendanceRecord) models.AttendanceRecord {
	out := record.Clone()
	out.Date = models.NormalizeDate(out.Date)
	switch out.Status {
	case models.AttendanceStatusAbsent:
		out.CheckInTime = nil
		out.CheckOutTime = nil
		out.LateArrivalTime = nil
		out.CheckInImage = nil
		out.CheckOutImage = nil
	case models.AttendanceStatusPresent:
		out.LateArrivalTime = nil
		out.ExcuseReason = nil
	case models.AttendanceStatusLate:
		if out.CheckInTime == nil && out.LateArrivalTime != nil {
			out.CheckInTime = out.LateArrivalTime.Clone()
		}
	}
	return out
}

// ValidateAttendance normalises the record and then checks the fields its status requires.
func ValidateAttendance(record models.AttendanceRecord) (models.AttendanceRecord, error) {
	if strings.TrimSpace(record.StudentID) == "" {
		return models.AttendanceRecord{}, newValidationError(CodeMissingStudent, FieldStudentID, "student id is required")
	}
	if record.Date.IsZero() {
		return models.AttendanceRecord{}, newValidationError(CodeInvalidDate, FieldDate, "date is required")
	}
	if !record.Status.Valid() {
		return models.AttendanceRecord{}, newValidationError(CodeInvalidStatus, FieldStatus, "status must be PRESENT, ABSENT or LATE")
	}
	out := NormalizeAttendance(record)
	if out.CheckOutTime != nil && out.CheckInTime == nil {
		return models.AttendanceRecord{}, newValidationError(CodeCheckOutBeforeCheckIn, FieldCheckOutTime, "check-out requires a prior check-in")
	}
	switch out.Status {
	case models.AttendanceStatusPresent:
		if out.CheckInTime == nil {
			return models.AttendanceRecord{}, newValidationError(CodeMissingCheckIn, FieldCheckInTime, "check-in time is required when present")
		}
	case models.AttendanceStatusLate:
		if out.LateArrivalTime == nil {
			return models.AttendanceRecord{}, newValidationError(CodeMissingLateArrival, FieldLateArrivalTime, "late arrival time is required when late")
		}
	}
	return out, nil
}
