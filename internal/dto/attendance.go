package dto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
)

// AttendanceRecordRequest is one record as submitted by a client. Times are HH:MM text and
// evidence images are base64 encoded.
type AttendanceRecordRequest struct {
	ID              string  `json:"id"`
	StudentID       string  `json:"student_id"`
	Date            string  `json:"date"`
	Status          string  `json:"status"`
	CheckInTime     string  `json:"check_in_time"`
	CheckOutTime    string  `json:"check_out_time"`
	LateArrivalTime string  `json:"late_arrival_time"`
	ExcuseReason    *string `json:"excuse_reason"`
	CheckInImage    []byte  `json:"check_in_image" swaggertype:"string" format:"base64"`
	CheckOutImage   []byte  `json:"check_out_image" swaggertype:"string" format:"base64"`
}

// BulkRecordsRequest wraps raw records submitted together.
type BulkRecordsRequest struct {
	Records []AttendanceRecordRequest `json:"records" validate:"required,min=1,max=500"`
}

// EvidenceView describes stored evidence without exposing its bytes.
type EvidenceView struct {
	Size   int    `json:"size"`
	Digest string `json:"blake2b"`
}

// AttendanceRecordView is the API view of an attendance record.
type AttendanceRecordView struct {
	ID               string                  `json:"id,omitempty"`
	StudentID        string                  `json:"student_id"`
	StudentName      string                  `json:"student_name,omitempty"`
	ClassName        string                  `json:"class_name,omitempty"`
	Date             string                  `json:"date"`
	Status           models.AttendanceStatus `json:"status"`
	Saved            bool                    `json:"saved"`
	CheckInTime      *models.ClockTime       `json:"check_in_time,omitempty"`
	CheckOutTime     *models.ClockTime       `json:"check_out_time,omitempty"`
	LateArrivalTime  *models.ClockTime       `json:"late_arrival_time,omitempty"`
	ExcuseReason     *string                 `json:"excuse_reason,omitempty"`
	CheckInEvidence  *EvidenceView           `json:"check_in_evidence,omitempty"`
	CheckOutEvidence *EvidenceView           `json:"check_out_evidence,omitempty"`
}

// NewAttendanceRecordView converts a record to its API view.
func NewAttendanceRecordView(rec models.AttendanceRecord) AttendanceRecordView {
	return AttendanceRecordView{
		ID:               rec.ID,
		StudentID:        rec.StudentID,
		StudentName:      rec.StudentName,
		ClassName:        rec.ClassName,
		Date:             rec.Date.Format(models.DateLayout),
		Status:           rec.Status,
		Saved:            rec.Persisted(),
		CheckInTime:      rec.CheckInTime,
		CheckOutTime:     rec.CheckOutTime,
		LateArrivalTime:  rec.LateArrivalTime,
		ExcuseReason:     rec.ExcuseReason,
		CheckInEvidence:  evidenceView(rec.CheckInImage),
		CheckOutEvidence: evidenceView(rec.CheckOutImage),
	}
}

// NewAttendanceRecordViews converts a slice of records.
func NewAttendanceRecordViews(records []models.AttendanceRecord) []AttendanceRecordView {
	out := make([]AttendanceRecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, NewAttendanceRecordView(rec))
	}
	return out
}

// EvidenceDigest returns the hex BLAKE2b-256 digest of an evidence blob.
func EvidenceDigest(blob []byte) string {
	sum := blake2b.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

func evidenceView(blob []byte) *EvidenceView {
	if len(blob) == 0 {
		return nil
	}
	return &EvidenceView{Size: len(blob), Digest: EvidenceDigest(blob)}
}

// RecordKeyView identifies a record in bulk results.
type RecordKeyView struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
}

// BulkFailureView reports why a record was rejected.
type BulkFailureView struct {
	RecordKeyView
	Code   string `json:"code"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// BulkResultView is the API view of a bulk outcome.
type BulkResultView struct {
	Processed int               `json:"processed"`
	Succeeded []RecordKeyView   `json:"succeeded"`
	Failed    []BulkFailureView `json:"failed"`
}

// NewBulkResultView converts a bulk result.
func NewBulkResultView(result models.BulkResult) BulkResultView {
	view := BulkResultView{
		Processed: result.Processed(),
		Succeeded: make([]RecordKeyView, 0, len(result.Succeeded)),
		Failed:    make([]BulkFailureView, 0, len(result.Failed)),
	}
	for _, key := range result.Succeeded {
		view.Succeeded = append(view.Succeeded, keyView(key))
	}
	for _, f := range result.Failed {
		view.Failed = append(view.Failed, BulkFailureView{RecordKeyView: keyView(f.Key), Code: f.Code, Field: f.Field, Reason: f.Reason})
	}
	return view
}

func keyView(key models.RecordKey) RecordKeyView {
	view := RecordKeyView{StudentID: key.StudentID}
	if !key.Date.IsZero() {
		view.Date = key.Date.Format(models.DateLayout)
	}
	return view
}

// BulkStatusRequest switches students of a class to one status.
type BulkStatusRequest struct {
	Date         string   `json:"date" validate:"required"`
	Status       string   `json:"status" validate:"required,attendance_status"`
	StudentIDs   []string `json:"student_ids"`
	ExcuseReason *string  `json:"excuse_reason"`
}

// BulkEvidenceRequest carries base64 evidence per student id for a check-in or check-out pass.
type BulkEvidenceRequest struct {
	Date     string            `json:"date" validate:"required"`
	Evidence map[string][]byte `json:"evidence" validate:"required,min=1"`
}
