package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// Failure codes reported by bulk operations besides validation codes.
const (
	FailureStoreError    = "STORE_ERROR"
	FailureConflict      = "CONFLICT"
	FailureNotFound      = "NOT_FOUND"
	FailureDuplicateKey  = "DUPLICATE_KEY"
	FailureCaptureFailed = "CAPTURE_FAILED"
)

// StatsCachePattern matches every cached statistics payload.
const StatsCachePattern = "attendance:stats:*"

// EvidenceSource supplies the opaque evidence blob for a record being checked in or out.
type EvidenceSource interface {
	Capture(ctx context.Context, record models.AttendanceRecord) ([]byte, error)
}

// EvidenceSourceFunc adapts a function to EvidenceSource.
type EvidenceSourceFunc func(ctx context.Context, record models.AttendanceRecord) ([]byte, error)

// Capture implements EvidenceSource.
func (f EvidenceSourceFunc) Capture(ctx context.Context, record models.AttendanceRecord) ([]byte, error) {
	return f(ctx, record)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// BulkCoordinator validates and persists batches of records, best effort.
type BulkCoordinator struct {
	store   AttendanceStore
	cache   cacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewBulkCoordinator constructs the coordinator. cache and metrics may be nil.
func NewBulkCoordinator(store AttendanceStore, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *BulkCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkCoordinator{store: store, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// ApplyBulk normalises, validates and upserts every record independently.
// A failing record never stops the others; every record ends up in exactly
// one of Succeeded or Failed. The batch runs to completion even if ctx is
// cancelled.
func (c *BulkCoordinator) ApplyBulk(ctx context.Context, records []models.AttendanceRecord) models.BulkResult {
	ctx = context.WithoutCancel(ctx)
	result := models.BulkResult{
		Succeeded: make([]models.RecordKey, 0, len(records)),
		Failed:    make([]models.BulkFailure, 0),
	}
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		key := record.Key()
		normalized, err := ValidateAttendance(record)
		if err != nil {
			result.Failed = append(result.Failed, validationFailure(key, err))
			continue
		}
		if _, dup := seen[key.String()]; dup {
			result.Failed = append(result.Failed, models.BulkFailure{
				Key:    key,
				Code:   FailureDuplicateKey,
				Reason: "record appears more than once in the batch",
			})
			continue
		}
		seen[key.String()] = struct{}{}

		if _, err := c.store.Upsert(ctx, &normalized); err != nil {
			failure := storeFailure(key, err)
			c.logger.Warn("attendance upsert failed",
				zap.String("student_id", key.StudentID),
				zap.String("date", key.Date.Format(models.DateLayout)),
				zap.String("code", failure.Code),
				zap.Error(err))
			result.Failed = append(result.Failed, failure)
			continue
		}
		result.Succeeded = append(result.Succeeded, key)
	}

	if len(result.Succeeded) > 0 && c.cache != nil {
		if err := c.cache.Invalidate(ctx, StatsCachePattern); err != nil {
			c.logger.Warn("stats cache invalidation failed", zap.Error(err))
		}
	}
	c.metrics.RecordBulkOutcome(len(result.Succeeded), len(result.Failed))
	c.logger.Info("attendance bulk applied",
		zap.Int("processed", result.Processed()),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))
	return result
}

// MarkStatus sets status on every record and persists the batch. PRESENT
// records without a check-in get the invocation time; LATE records without a
// late arrival get the invocation time.
func (c *BulkCoordinator) MarkStatus(ctx context.Context, records []models.AttendanceRecord, status models.AttendanceStatus, excuse *string) models.BulkResult {
	return c.ApplyBulk(ctx, MarkAll(records, status, models.ClockTimeOf(c.now()), excuse))
}

// CaptureCheckIn attaches evidence to PRESENT records lacking a check-in image and persists them.
func (c *BulkCoordinator) CaptureCheckIn(ctx context.Context, records []models.AttendanceRecord, source EvidenceSource) models.BulkResult {
	prepared, failures := AttachCheckIn(ctx, records, source, models.ClockTimeOf(c.now()))
	result := c.ApplyBulk(ctx, prepared)
	result.Failed = append(result.Failed, failures...)
	return result
}

// CaptureCheckOut attaches evidence to PRESENT or LATE records lacking a check-out image and persists them.
func (c *BulkCoordinator) CaptureCheckOut(ctx context.Context, records []models.AttendanceRecord, source EvidenceSource) models.BulkResult {
	prepared, failures := AttachCheckOut(ctx, records, source, models.ClockTimeOf(c.now()))
	result := c.ApplyBulk(ctx, prepared)
	result.Failed = append(result.Failed, failures...)
	return result
}

// MarkAll returns copies of records switched to status.
func MarkAll(records []models.AttendanceRecord, status models.AttendanceStatus, at models.ClockTime, excuse *string) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, record := range records {
		rec := record.Clone()
		rec.Status = status
		switch status {
		case models.AttendanceStatusPresent:
			if rec.CheckInTime == nil {
				rec.CheckInTime = at.Ptr()
			}
		case models.AttendanceStatusLate:
			if rec.LateArrivalTime == nil {
				rec.LateArrivalTime = at.Ptr()
			}
			// A child re-marked late did not arrive at the earlier on-time check-in.
			if record.Status == models.AttendanceStatusPresent && rec.CheckInTime != nil &&
				rec.CheckInTime.Minutes() < rec.LateArrivalTime.Minutes() {
				rec.CheckInTime = rec.LateArrivalTime.Clone()
			}
		}
		if excuse != nil && status != models.AttendanceStatusPresent {
			reason := *excuse
			rec.ExcuseReason = &reason
		}
		out = append(out, rec)
	}
	return out
}

// AttachCheckIn captures evidence for PRESENT records without a check-in image.
// Other records are left out of the returned batch untouched.
func AttachCheckIn(ctx context.Context, records []models.AttendanceRecord, source EvidenceSource, at models.ClockTime) ([]models.AttendanceRecord, []models.BulkFailure) {
	prepared := make([]models.AttendanceRecord, 0, len(records))
	var failures []models.BulkFailure
	for _, record := range records {
		if record.Status != models.AttendanceStatusPresent || record.HasCheckInImage() {
			continue
		}
		blob, err := captureEvidence(ctx, source, record)
		if err != nil {
			failures = append(failures, captureFailure(record.Key(), err))
			continue
		}
		rec := record.Clone()
		rec.CheckInImage = blob
		if rec.CheckInTime == nil {
			rec.CheckInTime = at.Ptr()
		}
		prepared = append(prepared, rec)
	}
	return prepared, failures
}

// AttachCheckOut captures evidence for PRESENT or LATE records without a check-out image.
// Records lacking a check-in are still returned so validation can reject them.
func AttachCheckOut(ctx context.Context, records []models.AttendanceRecord, source EvidenceSource, at models.ClockTime) ([]models.AttendanceRecord, []models.BulkFailure) {
	prepared := make([]models.AttendanceRecord, 0, len(records))
	var failures []models.BulkFailure
	for _, record := range records {
		if record.Status == models.AttendanceStatusAbsent || !record.Status.Valid() || record.HasCheckOutImage() {
			continue
		}
		blob, err := captureEvidence(ctx, source, record)
		if err != nil {
			failures = append(failures, captureFailure(record.Key(), err))
			continue
		}
		rec := record.Clone()
		rec.CheckOutImage = blob
		rec.CheckOutTime = at.Ptr()
		prepared = append(prepared, rec)
	}
	return prepared, failures
}

func captureEvidence(ctx context.Context, source EvidenceSource, record models.AttendanceRecord) ([]byte, error) {
	if source == nil {
		return nil, errors.New("no evidence source")
	}
	blob, err := source.Capture(ctx, record)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, errors.New("empty evidence")
	}
	return blob, nil
}

func captureFailure(key models.RecordKey, err error) models.BulkFailure {
	return models.BulkFailure{
		Key:    key,
		Code:   FailureCaptureFailed,
		Reason: fmt.Sprintf("evidence capture failed: %v", err),
		Err:    err,
	}
}

func validationFailure(key models.RecordKey, err error) models.BulkFailure {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return models.BulkFailure{Key: key, Code: string(verr.Code), Field: verr.Field, Reason: verr.Error(), Err: err}
	}
	return models.BulkFailure{Key: key, Code: appErrors.ErrValidation.Code, Reason: err.Error(), Err: err}
}

func storeFailure(key models.RecordKey, err error) models.BulkFailure {
	code := FailureStoreError
	switch {
	case errors.Is(err, appErrors.ErrConflict):
		code = FailureConflict
	case errors.Is(err, appErrors.ErrNotFound):
		code = FailureNotFound
	}
	return models.BulkFailure{Key: key, Code: code, Reason: err.Error(), Err: err}
}
