package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	"github.com/philong996/kindergarten-connect-sub000/internal/repository"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// hangingStore blocks every call until the context is done.
type hangingStore struct {
	AttendanceStore
}

func (hangingStore) FindByKey(ctx context.Context, _ string, _ time.Time) (*models.AttendanceRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingStore) Upsert(ctx context.Context, _ *models.AttendanceRecord) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestInstrumentedStoreTimesOutAsStoreError(t *testing.T) {
	metrics := NewMetricsService()
	store := NewInstrumentedStore(hangingStore{}, 20*time.Millisecond, metrics)

	_, err := store.FindByKey(context.Background(), "s-1", day1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStore))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 503, appErrors.FromError(err).Status)
	assert.Contains(t, scrape(t, metrics), `attendance_store_errors_total{op="find_by_key"} 1`)
}

func TestInstrumentedStoreTimeoutFailsOnlyThatRecord(t *testing.T) {
	roster := sunflowerRoster()
	mem := repository.NewMemoryAttendanceStore(roster)
	slow := &perStudentHang{AttendanceStore: mem, hangFor: "s-2"}
	c := NewBulkCoordinator(NewInstrumentedStore(slow, 20*time.Millisecond, nil), nil, nil, nil)

	result := c.ApplyBulk(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-3", Date: day1, Status: models.AttendanceStatusAbsent},
	})
	assert.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "s-2", result.Failed[0].Key.StudentID)
	assert.Equal(t, FailureStoreError, result.Failed[0].Code)
}

func TestInstrumentedStorePassesThrough(t *testing.T) {
	roster := sunflowerRoster()
	store := NewInstrumentedStore(repository.NewMemoryAttendanceStore(roster), 0, nil)
	ctx := context.Background()

	id, err := store.Upsert(ctx, &models.AttendanceRecord{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusAbsent})
	require.NoError(t, err)
	found, err := store.FindByKey(ctx, "s-1", day1)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	byClass, err := store.FindByClassAndDateRange(ctx, "class-1", day1, day3)
	require.NoError(t, err)
	assert.Len(t, byClass, 1)
	byStudent, err := store.FindByStudentAndDateRange(ctx, "s-1", day1, day1)
	require.NoError(t, err)
	assert.Len(t, byStudent, 1)
}

type perStudentHang struct {
	AttendanceStore
	hangFor string
}

func (s *perStudentHang) Upsert(ctx context.Context, record *models.AttendanceRecord) (string, error) {
	if record.StudentID == s.hangFor {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.AttendanceStore.Upsert(ctx, record)
}
