package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// InstrumentedStore bounds every call to the wrapped store with a timeout and
// reports latency to Prometheus. A call that runs past the deadline fails
// with ErrStore.
type InstrumentedStore struct {
	next    AttendanceStore
	timeout time.Duration
	metrics *MetricsService
}

// NewInstrumentedStore wraps next. A non-positive timeout disables the deadline.
func NewInstrumentedStore(next AttendanceStore, timeout time.Duration, metrics *MetricsService) *InstrumentedStore {
	return &InstrumentedStore{next: next, timeout: timeout, metrics: metrics}
}

func (s *InstrumentedStore) FindByKey(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	var out *models.AttendanceRecord
	err := s.call(ctx, "find_by_key", func(ctx context.Context) error {
		var err error
		out, err = s.next.FindByKey(ctx, studentID, date)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) FindByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	err := s.call(ctx, "find_by_class_and_date", func(ctx context.Context) error {
		var err error
		out, err = s.next.FindByClassAndDate(ctx, classID, date)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) FindByStudentAndDateRange(ctx context.Context, studentID string, start, end time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	err := s.call(ctx, "find_by_student_and_range", func(ctx context.Context) error {
		var err error
		out, err = s.next.FindByStudentAndDateRange(ctx, studentID, start, end)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) FindByClassAndDateRange(ctx context.Context, classID string, start, end time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	err := s.call(ctx, "find_by_class_and_range", func(ctx context.Context) error {
		var err error
		out, err = s.next.FindByClassAndDateRange(ctx, classID, start, end)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) Upsert(ctx context.Context, record *models.AttendanceRecord) (string, error) {
	var id string
	err := s.call(ctx, "upsert", func(ctx context.Context) error {
		var err error
		id, err = s.next.Upsert(ctx, record)
		return err
	})
	return id, err
}

func (s *InstrumentedStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStoreCall(op, time.Since(start), err)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, fmt.Sprintf("attendance store %s timed out", op))
	}
	return err
}
