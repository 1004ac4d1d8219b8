package service

import (
	"context"
	"time"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
)

// RosterReader lists the students enrolled in a class, ordered by display name.
type RosterReader interface {
	StudentsInClass(ctx context.Context, classID string) ([]models.RosterStudent, error)
}

// AttendanceStore persists attendance records keyed by (student, date).
//
// FindByKey returns nil without error when no record exists. Upsert creates a
// row when the record has no ID and updates by ID otherwise; a concurrent create
// for the same natural key must resolve to a single row.
type AttendanceStore interface {
	FindByKey(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	FindByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	FindByStudentAndDateRange(ctx context.Context, studentID string, start, end time.Time) ([]models.AttendanceRecord, error)
	FindByClassAndDateRange(ctx context.Context, classID string, start, end time.Time) ([]models.AttendanceRecord, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (string, error)
}
