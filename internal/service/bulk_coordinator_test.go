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

func newCoordinator(t *testing.T) (*BulkCoordinator, *scriptedStore, *recordingCache) {
	t.Helper()
	store := newScriptedStore(repository.NewMemoryAttendanceStore(sunflowerRoster()))
	cache := &recordingCache{}
	c := NewBulkCoordinator(store, cache, nil, nil)
	c.now = func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) }
	return c, store, cache
}

func failedCodes(result models.BulkResult) map[string]string {
	out := make(map[string]string, len(result.Failed))
	for _, f := range result.Failed {
		out[f.Key.StudentID] = f.Code
	}
	return out
}

func TestApplyBulkPartialFailure(t *testing.T) {
	c, store, cache := newCoordinator(t)
	result := c.ApplyBulk(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusPresent, CheckInTime: clock("07:30")},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusPresent},
		{StudentID: "s-3", Date: day1, Status: models.AttendanceStatusLate, LateArrivalTime: clock("08:15")},
	})

	require.Equal(t, 3, result.Processed())
	assert.Len(t, result.Succeeded, 2)
	assert.Equal(t, map[string]string{"s-2": string(CodeMissingCheckIn)}, failedCodes(result))
	assert.Equal(t, 2, store.upsertCount())
	assert.Equal(t, []string{StatsCachePattern}, cache.patterns())

	late, err := store.FindByKey(context.Background(), "s-3", day1)
	require.NoError(t, err)
	assert.Equal(t, "08:15", late.CheckInTime.String())
}

func TestApplyBulkStoreFailures(t *testing.T) {
	c, store, _ := newCoordinator(t)
	store.failFor["s-1"] = errBoom
	store.failFor["s-2"] = appErrors.Clone(appErrors.ErrConflict, "taken")

	result := c.ApplyBulk(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-3", Date: day1, Status: models.AttendanceStatusAbsent},
	})

	assert.Equal(t, []models.RecordKey{{StudentID: "s-3", Date: day1}}, result.Succeeded)
	assert.Equal(t, map[string]string{"s-1": FailureStoreError, "s-2": FailureConflict}, failedCodes(result))
	for _, f := range result.Failed {
		if f.Key.StudentID == "s-1" {
			assert.True(t, errors.Is(f.Err, errBoom))
		}
	}
}

func TestApplyBulkRejectsDuplicateKeys(t *testing.T) {
	c, _, _ := newCoordinator(t)
	result := c.ApplyBulk(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-1", Date: day1.Add(3 * time.Hour), Status: models.AttendanceStatusAbsent},
	})
	require.Len(t, result.Succeeded, 1)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, FailureDuplicateKey, result.Failed[0].Code)
}

func TestApplyBulkSkipsInvalidationWhenNothingSaved(t *testing.T) {
	c, _, cache := newCoordinator(t)
	result := c.ApplyBulk(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusPresent},
	})
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, cache.patterns())
}

func TestApplyBulkIgnoresCancellation(t *testing.T) {
	c, store, _ := newCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.ApplyBulk(ctx, []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusAbsent},
	})
	assert.Len(t, result.Succeeded, 2)
	assert.True(t, store.lastCtxOK)
}

func TestApplyBulkCacheFailureDoesNotFailBatch(t *testing.T) {
	c, _, cache := newCoordinator(t)
	cache.err = errBoom
	result := c.ApplyBulk(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusAbsent},
	})
	assert.Len(t, result.Succeeded, 1)
	assert.Empty(t, result.Failed)
}

func TestMarkStatusFillsInvocationTime(t *testing.T) {
	c, store, _ := newCoordinator(t)
	records := []models.AttendanceRecord{
		Placeholder("s-1", day1),
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusAbsent, CheckInTime: clock("07:10")},
	}

	result := c.MarkStatus(context.Background(), records, models.AttendanceStatusPresent, strPtr("ignored"))
	require.Len(t, result.Succeeded, 2)

	first, err := store.FindByKey(context.Background(), "s-1", day1)
	require.NoError(t, err)
	assert.Equal(t, "09:30", first.CheckInTime.String())
	assert.Nil(t, first.ExcuseReason)

	second, err := store.FindByKey(context.Background(), "s-2", day1)
	require.NoError(t, err)
	assert.Equal(t, "07:10", second.CheckInTime.String())
}

func TestMarkAllLateSetsArrivalAndExcuse(t *testing.T) {
	at := models.ClockTime{Hour: 8, Minute: 40}
	out := MarkAll([]models.AttendanceRecord{Placeholder("s-1", day1)}, models.AttendanceStatusLate, at, strPtr("bus delay"))
	require.Len(t, out, 1)
	assert.Equal(t, "08:40", out[0].LateArrivalTime.String())
	assert.Equal(t, "bus delay", *out[0].ExcuseReason)
	assert.Nil(t, out[0].CheckInTime)
}

func TestMarkAllLateMovesEarlierCheckIn(t *testing.T) {
	at := models.ClockTime{Hour: 8, Minute: 40}
	records := []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusPresent, CheckInTime: clock("07:30")},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusPresent, CheckInTime: clock("09:00")},
		{StudentID: "s-3", Date: day1, Status: models.AttendanceStatusAbsent, CheckInTime: clock("07:10")},
	}

	out := MarkAll(records, models.AttendanceStatusLate, at, nil)
	require.Len(t, out, 3)
	assert.Equal(t, "08:40", out[0].CheckInTime.String())
	assert.Equal(t, "08:40", out[0].LateArrivalTime.String())
	assert.Equal(t, "09:00", out[1].CheckInTime.String())
	assert.Equal(t, "07:10", out[2].CheckInTime.String())
	assert.Equal(t, "07:30", records[0].CheckInTime.String())
}

func TestCaptureCheckInOnlyTouchesPresentWithoutImage(t *testing.T) {
	c, store, _ := newCoordinator(t)
	var captured []string
	source := EvidenceSourceFunc(func(_ context.Context, rec models.AttendanceRecord) ([]byte, error) {
		captured = append(captured, rec.StudentID)
		if rec.StudentID == "s-3" {
			return nil, errBoom
		}
		return []byte("img-" + rec.StudentID), nil
	})
	records := []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusPresent, CheckInTime: clock("07:30")},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusAbsent},
		{StudentID: "s-3", Date: day1, Status: models.AttendanceStatusPresent, CheckInTime: clock("07:35")},
		{StudentID: "s-4", Date: day1, Status: models.AttendanceStatusPresent, CheckInTime: clock("07:35"), CheckInImage: []byte("old")},
	}

	result := c.CaptureCheckIn(context.Background(), records, source)
	assert.Equal(t, []string{"s-1", "s-3"}, captured)
	assert.Equal(t, []models.RecordKey{{StudentID: "s-1", Date: day1}}, result.Succeeded)
	assert.Equal(t, map[string]string{"s-3": FailureCaptureFailed}, failedCodes(result))

	saved, err := store.FindByKey(context.Background(), "s-1", day1)
	require.NoError(t, err)
	assert.Equal(t, []byte("img-s-1"), saved.CheckInImage)
	assert.Equal(t, "07:30", saved.CheckInTime.String())
}

func TestCaptureCheckOutWithoutCheckInIsRejected(t *testing.T) {
	c, store, _ := newCoordinator(t)
	source := EvidenceSourceFunc(func(context.Context, models.AttendanceRecord) ([]byte, error) {
		return []byte("img"), nil
	})
	records := []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusPresent},
		{StudentID: "s-2", Date: day1, Status: models.AttendanceStatusLate, LateArrivalTime: clock("08:20"), CheckInTime: clock("08:20")},
		{StudentID: "s-3", Date: day1, Status: models.AttendanceStatusAbsent},
	}

	result := c.CaptureCheckOut(context.Background(), records, source)
	assert.Equal(t, []models.RecordKey{{StudentID: "s-2", Date: day1}}, result.Succeeded)
	assert.Equal(t, map[string]string{"s-1": string(CodeCheckOutBeforeCheckIn)}, failedCodes(result))

	saved, err := store.FindByKey(context.Background(), "s-2", day1)
	require.NoError(t, err)
	assert.Equal(t, "09:30", saved.CheckOutTime.String())
	assert.Equal(t, []byte("img"), saved.CheckOutImage)
}

func TestCaptureRejectsEmptyEvidence(t *testing.T) {
	prepared, failures := AttachCheckIn(context.Background(), []models.AttendanceRecord{
		{StudentID: "s-1", Date: day1, Status: models.AttendanceStatusPresent},
	}, EvidenceSourceFunc(func(context.Context, models.AttendanceRecord) ([]byte, error) {
		return nil, nil
	}), models.ClockTime{Hour: 8})
	assert.Empty(t, prepared)
	require.Len(t, failures, 1)
	assert.Equal(t, FailureCaptureFailed, failures[0].Code)
}
