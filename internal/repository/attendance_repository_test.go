package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

var attendanceRowColumns = []string{
	"id", "student_id", "date", "status", "check_in_time", "check_out_time", "late_arrival_time",
	"excuse_reason", "check_in_image", "check_out_image", "created_at", "updated_at", "student_name", "class_name",
}

func newAttendanceMock(t *testing.T) (*AttendanceRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo := NewAttendanceRepository(sqlx.NewDb(db, "sqlmock"))
	repo.now = func() time.Time { return time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) }
	return repo, mock, func() { db.Close() }
}

func TestAttendanceRepositoryFindByKey(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows(attendanceRowColumns).
		AddRow("rec-1", "s-1", date, "PRESENT", "08:05:00", nil, nil, nil, []byte("img"), nil, now, now, "An", "Sunflower")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.student_id = $1 AND a.date = $2")).
		WithArgs("s-1", date).
		WillReturnRows(rows)

	record, err := repo.FindByKey(context.Background(), "s-1", date.Add(9*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "rec-1", record.ID)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	require.NotNil(t, record.CheckInTime)
	assert.Equal(t, "08:05", record.CheckInTime.String())
	assert.Nil(t, record.CheckOutTime)
	assert.True(t, record.HasCheckInImage())
	assert.Equal(t, "An", record.StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByKeyMissing(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM attendance_records a").WillReturnError(sql.ErrNoRows)

	record, err := repo.FindByKey(context.Background(), "s-1", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByClassAndDate(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows(attendanceRowColumns).
		AddRow("rec-1", "s-1", date, "LATE", "09:10:00", nil, "09:10:00", "traffic", nil, nil, now, now, "An", "Sunflower").
		AddRow("rec-2", "s-2", date, "ABSENT", nil, nil, nil, nil, nil, nil, now, now, "Binh", "Sunflower")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.class_id = $1 AND a.date = $2 ORDER BY s.full_name")).
		WithArgs("class-1", date).
		WillReturnRows(rows)

	records, err := repo.FindByClassAndDate(context.Background(), "class-1", date)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].LateArrivalTime)
	assert.Equal(t, "09:10", records[0].LateArrivalTime.String())
	require.NotNil(t, records[0].ExcuseReason)
	assert.Equal(t, "traffic", *records[0].ExcuseReason)
	assert.Equal(t, models.AttendanceStatusAbsent, records[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByStudentAndDateRange(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.student_id = $1 AND a.date BETWEEN $2 AND $3 ORDER BY a.date")).
		WithArgs("s-1", start, end).
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns))

	records, err := repo.FindByStudentAndDateRange(context.Background(), "s-1", start, end)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertInsert(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	checkIn := models.ClockTime{Hour: 8, Minute: 5}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "s-1", date, models.AttendanceStatusPresent, "08:05:00", nil, nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))

	id, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID:   "s-1",
		Date:        date,
		Status:      models.AttendanceStatusPresent,
		CheckInTime: &checkIn,
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertUpdateMissing(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE attendance_records")).WillReturnError(sql.ErrNoRows)

	_, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		ID:        "rec-9",
		StudentID: "s-1",
		Date:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusAbsent,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertConflict(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE attendance_records")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		ID:        "rec-1",
		StudentID: "s-2",
		Date:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusAbsent,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertDriverError(t *testing.T) {
	repo, mock, cleanup := newAttendanceMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).WillReturnError(errors.New("connection reset"))

	_, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID: "s-1",
		Date:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusAbsent,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert attendance")
	assert.False(t, errors.Is(err, appErrors.ErrConflict))
}
