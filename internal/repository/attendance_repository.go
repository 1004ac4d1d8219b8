package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

const uniqueViolation = "23505"

const attendanceColumns = `a.id, a.student_id, a.date, a.status, a.check_in_time, a.check_out_time, a.late_arrival_time,
a.excuse_reason, a.check_in_image, a.check_out_image, a.created_at, a.updated_at,
s.full_name AS student_name, c.name AS class_name`

const attendanceFrom = `FROM attendance_records a
JOIN students s ON s.id = a.student_id
JOIN classes c ON c.id = s.class_id`

// AttendanceRepository persists attendance records in Postgres.
type AttendanceRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, now: time.Now}
}

// FindByKey returns the record for a student on a date, or nil when none exists.
func (r *AttendanceRepository) FindByKey(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE a.student_id = $1 AND a.date = $2", attendanceColumns, attendanceFrom)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, models.NormalizeDate(date)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance by key: %w", err)
	}
	normalizeRow(&record)
	return &record, nil
}

// FindByClassAndDate returns the persisted records of a class on one date.
func (r *AttendanceRepository) FindByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.class_id = $1 AND a.date = $2 ORDER BY s.full_name", attendanceColumns, attendanceFrom)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, models.NormalizeDate(date)); err != nil {
		return nil, fmt.Errorf("find attendance by class and date: %w", err)
	}
	normalizeRows(records)
	return records, nil
}

// FindByStudentAndDateRange returns a student's records with start <= date <= end.
func (r *AttendanceRepository) FindByStudentAndDateRange(ctx context.Context, studentID string, start, end time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE a.student_id = $1 AND a.date BETWEEN $2 AND $3 ORDER BY a.date", attendanceColumns, attendanceFrom)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, models.NormalizeDate(start), models.NormalizeDate(end)); err != nil {
		return nil, fmt.Errorf("find attendance by student and range: %w", err)
	}
	normalizeRows(records)
	return records, nil
}

// FindByClassAndDateRange returns every record of a class with start <= date <= end.
func (r *AttendanceRepository) FindByClassAndDateRange(ctx context.Context, classID string, start, end time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.class_id = $1 AND a.date BETWEEN $2 AND $3 ORDER BY s.full_name, a.date", attendanceColumns, attendanceFrom)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, models.NormalizeDate(start), models.NormalizeDate(end)); err != nil {
		return nil, fmt.Errorf("find attendance by class and range: %w", err)
	}
	normalizeRows(records)
	return records, nil
}

// Upsert inserts a record when it has no ID and updates it by ID otherwise.
// An insert racing another insert for the same student and date updates the
// existing row instead, keeping its id.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (string, error) {
	now := r.now().UTC()
	date := models.NormalizeDate(record.Date)
	if record.ID != "" {
		const query = `UPDATE attendance_records
SET student_id = $2, date = $3, status = $4, check_in_time = $5, check_out_time = $6, late_arrival_time = $7,
    excuse_reason = $8, check_in_image = $9, check_out_image = $10, updated_at = $11
WHERE id = $1
RETURNING id`
		var id string
		err := r.db.GetContext(ctx, &id, query, record.ID, record.StudentID, date, record.Status,
			record.CheckInTime, record.CheckOutTime, record.LateArrivalTime, record.ExcuseReason,
			nullableBytes(record.CheckInImage), nullableBytes(record.CheckOutImage), now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "attendance record not found")
			}
			return "", mapWriteError("update attendance", err)
		}
		return id, nil
	}

	const query = `INSERT INTO attendance_records (id, student_id, date, status, check_in_time, check_out_time, late_arrival_time,
    excuse_reason, check_in_image, check_out_image, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT (student_id, date)
DO UPDATE SET status = EXCLUDED.status, check_in_time = EXCLUDED.check_in_time, check_out_time = EXCLUDED.check_out_time,
    late_arrival_time = EXCLUDED.late_arrival_time, excuse_reason = EXCLUDED.excuse_reason,
    check_in_image = EXCLUDED.check_in_image, check_out_image = EXCLUDED.check_out_image, updated_at = EXCLUDED.updated_at
RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query, uuid.NewString(), record.StudentID, date, record.Status,
		record.CheckInTime, record.CheckOutTime, record.LateArrivalTime, record.ExcuseReason,
		nullableBytes(record.CheckInImage), nullableBytes(record.CheckOutImage), now)
	if err != nil {
		return "", mapWriteError("insert attendance", err)
	}
	return id, nil
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "attendance already recorded for student and date")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// nullableBytes stores empty evidence as NULL.
func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func normalizeRow(record *models.AttendanceRecord) {
	record.Date = models.NormalizeDate(record.Date)
}

func normalizeRows(records []models.AttendanceRecord) {
	for i := range records {
		normalizeRow(&records[i])
	}
}
