package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// StatisticsService aggregates persisted attendance into counts and rates.
type StatisticsService struct {
	roster    RosterReader
	store     AttendanceStore
	generator *RecordGenerator
	cache     *CacheService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewStatisticsService constructs the statistics service. cache may be nil.
func NewStatisticsService(roster RosterReader, store AttendanceStore, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		roster:    roster,
		store:     store,
		generator: NewRecordGenerator(roster, store),
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// StatsFor summarises one student's persisted records in [start, end].
// Days without a saved record do not count toward the total.
func (s *StatisticsService) StatsFor(ctx context.Context, studentID string, start, end time.Time) (*models.StudentAttendanceStats, error) {
	if studentID == "" {
		return nil, newValidationError(CodeMissingStudent, FieldStudentID, "student id is required").AppError()
	}
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("attendance:stats:student:%s:%s:%s", studentID, start.Format(models.DateLayout), end.Format(models.DateLayout))
	var cached models.StudentAttendanceStats
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}
	gen := s.cache.Generation()

	records, err := s.store.FindByStudentAndDateRange(ctx, studentID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load student attendance")
	}
	stats := &models.StudentAttendanceStats{
		StudentID:        studentID,
		StartDate:        start,
		EndDate:          end,
		AttendanceCounts: Summarize(records),
	}
	for _, rec := range records {
		if rec.StudentName != "" {
			stats.StudentName = rec.StudentName
			break
		}
	}
	s.persistCache(ctx, cacheKey, stats, gen)
	return stats, nil
}

// ClassDaily returns raw counts for a class on one date. Students without a
// saved record are counted as absent; Recorded counts saved rows only.
func (s *StatisticsService) ClassDaily(ctx context.Context, classID string, date time.Time) (*models.ClassDailyCounts, error) {
	date = models.NormalizeDate(date)
	records, err := s.generator.Generate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load class attendance")
	}
	counts := &models.ClassDailyCounts{ClassID: classID, Date: date, Total: len(records)}
	for _, rec := range records {
		if counts.ClassName == "" {
			counts.ClassName = rec.ClassName
		}
		if rec.Persisted() {
			counts.Recorded++
		}
		switch rec.Status {
		case models.AttendanceStatusPresent:
			counts.Present++
		case models.AttendanceStatusLate:
			counts.Late++
		default:
			counts.Absent++
		}
	}
	counts.AttendanceRate = RoundRate(counts.Present, counts.Total)
	return counts, nil
}

// ClassStats summarises every enrolled student of a class over [start, end].
func (s *StatisticsService) ClassStats(ctx context.Context, classID string, start, end time.Time) (*models.ClassAttendanceStats, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("attendance:stats:class:%s:%s:%s", classID, start.Format(models.DateLayout), end.Format(models.DateLayout))
	var cached models.ClassAttendanceStats
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}
	gen := s.cache.Generation()

	students, err := s.roster.StudentsInClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load class roster")
	}
	records, err := s.store.FindByClassAndDateRange(ctx, classID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load class attendance")
	}
	byStudent := make(map[string][]models.AttendanceRecord, len(students))
	for _, rec := range records {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}

	stats := &models.ClassAttendanceStats{
		ClassID:   classID,
		StartDate: start,
		EndDate:   end,
		Students:  make([]models.StudentAttendanceStats, 0, len(students)),
	}
	var all []models.AttendanceRecord
	for _, student := range students {
		if stats.ClassName == "" {
			stats.ClassName = student.ClassName
		}
		own := byStudent[student.StudentID]
		all = append(all, own...)
		stats.Students = append(stats.Students, models.StudentAttendanceStats{
			StudentID:        student.StudentID,
			StudentName:      student.Name,
			StartDate:        start,
			EndDate:          end,
			AttendanceCounts: Summarize(own),
		})
	}
	stats.Summary = Summarize(all)
	s.persistCache(ctx, cacheKey, stats, gen)
	return stats, nil
}

// Summarize counts persisted records by status and derives rates.
// Unsaved placeholders are skipped.
func Summarize(records []models.AttendanceRecord) models.AttendanceCounts {
	var counts models.AttendanceCounts
	for _, rec := range records {
		if !rec.Persisted() {
			continue
		}
		switch rec.Status {
		case models.AttendanceStatusPresent:
			counts.PresentDays++
		case models.AttendanceStatusAbsent:
			counts.AbsentDays++
		case models.AttendanceStatusLate:
			counts.LateDays++
		default:
			continue
		}
		counts.TotalDays++
	}
	counts.AttendanceRate = RoundRate(counts.PresentDays, counts.TotalDays)
	counts.LateRate = RoundRate(counts.LateDays, counts.TotalDays)
	return counts
}

// RoundRate returns part/total as a percentage rounded half-up to two
// decimals, computed in integers. A zero total yields 0.
func RoundRate(part, total int) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	scaled := int64(part) * 10000
	hundredths := (2*scaled + int64(total)) / (2 * int64(total))
	return float64(hundredths) / 100
}

func normalizeRange(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, newValidationError(CodeInvalidRange, "from", "from and to dates are required").AppError()
	}
	start = models.NormalizeDate(start)
	end = models.NormalizeDate(end)
	if end.Before(start) {
		return time.Time{}, time.Time{}, newValidationError(CodeInvalidRange, "to", "to must not be before from").AppError()
	}
	return start, end, nil
}

func (s *StatisticsService) persistCache(ctx context.Context, key string, value interface{}, gen uint64) {
	if !s.cache.Enabled() {
		return
	}
	written, err := s.cache.SetIfCurrent(ctx, key, value, s.cacheTTL, gen)
	if err != nil {
		s.logger.Debug("stats cache write skipped", zap.String("key", key), zap.Error(err))
		return
	}
	if !written {
		s.logger.Debug("stats cache write dropped after invalidation", zap.String("key", key))
	}
}
