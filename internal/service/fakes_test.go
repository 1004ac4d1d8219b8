package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	"github.com/philong996/kindergarten-connect-sub000/internal/repository"
)

var (
	day1 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
)

func clock(raw string) *models.ClockTime {
	c, err := models.ParseClockTime(raw)
	if err != nil {
		panic(err)
	}
	return &c
}

func strPtr(s string) *string { return &s }

// sunflowerRoster enrolls three students in class-1, listed out of name order.
func sunflowerRoster() *repository.MemoryRoster {
	roster := repository.NewMemoryRoster()
	roster.Enroll(models.RosterStudent{StudentID: "s-3", Name: "Chi", ClassID: "class-1", ClassName: "Sunflower"})
	roster.Enroll(models.RosterStudent{StudentID: "s-1", Name: "An", ClassID: "class-1", ClassName: "Sunflower"})
	roster.Enroll(models.RosterStudent{StudentID: "s-2", Name: "Binh", ClassID: "class-1", ClassName: "Sunflower"})
	return roster
}

// scriptedStore wraps an AttendanceStore and fails Upsert for selected students.
type scriptedStore struct {
	AttendanceStore
	mu        sync.Mutex
	failFor   map[string]error
	findErr   error
	upserts   int
	lastCtxOK bool
}

func newScriptedStore(next AttendanceStore) *scriptedStore {
	return &scriptedStore{AttendanceStore: next, failFor: map[string]error{}}
}

func (s *scriptedStore) FindByKey(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.AttendanceStore.FindByKey(ctx, studentID, date)
}

func (s *scriptedStore) FindByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.AttendanceStore.FindByClassAndDate(ctx, classID, date)
}

func (s *scriptedStore) Upsert(ctx context.Context, record *models.AttendanceRecord) (string, error) {
	s.mu.Lock()
	s.upserts++
	s.lastCtxOK = ctx.Err() == nil
	err := s.failFor[record.StudentID]
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.AttendanceStore.Upsert(ctx, record)
}

func (s *scriptedStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

// recordingCache remembers invalidated patterns.
type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
	err         error
}

func (c *recordingCache) Invalidate(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	return c.err
}

func (c *recordingCache) patterns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

var errBoom = errors.New("boom")
