package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// MemoryRoster is an in-process class roster.
type MemoryRoster struct {
	mu       sync.RWMutex
	students map[string]models.RosterStudent
}

// NewMemoryRoster constructs an empty roster.
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{students: make(map[string]models.RosterStudent)}
}

// Enroll adds or replaces a student.
func (m *MemoryRoster) Enroll(student models.RosterStudent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.StudentID] = student
}

// StudentsInClass returns the class's students ordered by name then id.
func (m *MemoryRoster) StudentsInClass(_ context.Context, classID string) ([]models.RosterStudent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RosterStudent, 0)
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

func (m *MemoryRoster) lookup(studentID string) (models.RosterStudent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	return s, ok
}

// MemoryAttendanceStore keeps attendance records in memory, keyed by id with
// a unique (student, date) index. Returned records are copies.
type MemoryAttendanceStore struct {
	mu     sync.RWMutex
	roster *MemoryRoster
	byID   map[string]models.AttendanceRecord
	byKey  map[string]string
	now    func() time.Time
}

// NewMemoryAttendanceStore constructs an empty store. roster, when set,
// resolves class membership and display names.
func NewMemoryAttendanceStore(roster *MemoryRoster) *MemoryAttendanceStore {
	return &MemoryAttendanceStore{
		roster: roster,
		byID:   make(map[string]models.AttendanceRecord),
		byKey:  make(map[string]string),
		now:    time.Now,
	}
}

// FindByKey returns the record for a student on a date, or nil.
func (m *MemoryAttendanceStore) FindByKey(_ context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[keyOf(studentID, date)]
	if !ok {
		return nil, nil
	}
	rec := m.decorate(m.byID[id])
	return &rec, nil
}

// FindByClassAndDate returns stored records of the class's students on date.
func (m *MemoryAttendanceStore) FindByClassAndDate(_ context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	day := models.NormalizeDate(date)
	return m.filter(func(rec models.AttendanceRecord) bool {
		return m.inClass(rec.StudentID, classID) && rec.Date.Equal(day)
	}), nil
}

// FindByStudentAndDateRange returns a student's records with start <= date <= end.
func (m *MemoryAttendanceStore) FindByStudentAndDateRange(_ context.Context, studentID string, start, end time.Time) ([]models.AttendanceRecord, error) {
	from, to := models.NormalizeDate(start), models.NormalizeDate(end)
	return m.filter(func(rec models.AttendanceRecord) bool {
		return rec.StudentID == studentID && inRange(rec.Date, from, to)
	}), nil
}

// FindByClassAndDateRange returns the class's records with start <= date <= end.
func (m *MemoryAttendanceStore) FindByClassAndDateRange(_ context.Context, classID string, start, end time.Time) ([]models.AttendanceRecord, error) {
	from, to := models.NormalizeDate(start), models.NormalizeDate(end)
	return m.filter(func(rec models.AttendanceRecord) bool {
		return m.inClass(rec.StudentID, classID) && inRange(rec.Date, from, to)
	}), nil
}

// Upsert creates or updates a record with the same semantics as the Postgres store.
func (m *MemoryAttendanceStore) Upsert(_ context.Context, record *models.AttendanceRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := record.Clone()
	rec.Date = models.NormalizeDate(rec.Date)
	rec.StudentName, rec.ClassName = "", ""
	key := keyOf(rec.StudentID, rec.Date)
	now := m.now().UTC()

	if rec.ID != "" {
		existing, ok := m.byID[rec.ID]
		if !ok {
			return "", appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		if other, taken := m.byKey[key]; taken && other != rec.ID {
			return "", appErrors.Clone(appErrors.ErrConflict, "attendance already recorded for student and date")
		}
		delete(m.byKey, keyOf(existing.StudentID, existing.Date))
		rec.CreatedAt = existing.CreatedAt
	} else if id, taken := m.byKey[key]; taken {
		rec.ID = id
		rec.CreatedAt = m.byID[id].CreatedAt
	} else {
		rec.ID = uuid.NewString()
		rec.CreatedAt = &now
	}
	rec.UpdatedAt = &now
	m.byID[rec.ID] = rec
	m.byKey[key] = rec.ID
	return rec.ID, nil
}

func (m *MemoryAttendanceStore) filter(keep func(models.AttendanceRecord) bool) []models.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AttendanceRecord, 0)
	for _, rec := range m.byID {
		if keep(rec) {
			out = append(out, m.decorate(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

func (m *MemoryAttendanceStore) inClass(studentID, classID string) bool {
	if m.roster == nil {
		return false
	}
	s, ok := m.roster.lookup(studentID)
	return ok && s.ClassID == classID
}

func (m *MemoryAttendanceStore) decorate(rec models.AttendanceRecord) models.AttendanceRecord {
	out := rec.Clone()
	if m.roster != nil {
		if s, ok := m.roster.lookup(rec.StudentID); ok {
			out.StudentName = s.Name
			out.ClassName = s.ClassName
		}
	}
	return out
}

func keyOf(studentID string, date time.Time) string {
	return models.RecordKey{StudentID: studentID, Date: models.NormalizeDate(date)}.String()
}

func inRange(date, from, to time.Time) bool {
	return !date.Before(from) && !date.After(to)
}

// MemoryReportJobStore keeps report job metadata in memory.
type MemoryReportJobStore struct {
	mu   sync.RWMutex
	jobs map[string]models.ReportJob
}

// NewMemoryReportJobStore constructs an empty job store.
func NewMemoryReportJobStore() *MemoryReportJobStore {
	return &MemoryReportJobStore{jobs: make(map[string]models.ReportJob)}
}

// Create stores a new job.
func (m *MemoryReportJobStore) Create(_ context.Context, job *models.ReportJob) error {
	prepareJob(job)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "report job already exists")
	}
	m.jobs[job.ID] = *job
	return nil
}

// GetByID returns a copy of the job.
func (m *MemoryReportJobStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	return &job, nil
}

// Update applies the non-nil fields.
func (m *MemoryReportJobStore) Update(_ context.Context, id string, params UpdateReportJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		finished := *params.FinishedAt
		job.FinishedAt = &finished
	}
	m.jobs[id] = job
	return nil
}

// ListQueued returns up to limit queued jobs, oldest first.
func (m *MemoryReportJobStore) ListQueued(_ context.Context, limit int) ([]models.ReportJob, error) {
	return m.list(limit, func(job models.ReportJob) bool {
		return job.Status == models.ReportStatusQueued
	}, func(job models.ReportJob) time.Time { return job.CreatedAt }), nil
}

// ListFinishedBefore returns up to limit finished jobs completed before cutoff.
func (m *MemoryReportJobStore) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return m.list(limit, func(job models.ReportJob) bool {
		return job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff)
	}, func(job models.ReportJob) time.Time { return *job.FinishedAt }), nil
}

func (m *MemoryReportJobStore) list(limit int, keep func(models.ReportJob) bool, orderBy func(models.ReportJob) time.Time) []models.ReportJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ReportJob, 0)
	for _, job := range m.jobs {
		if keep(job) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return orderBy(out[i]).Before(orderBy(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
