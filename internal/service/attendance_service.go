package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/philong996/kindergarten-connect-sub000/internal/dto"
	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

// AttendanceService coordinates single-record and class-wide attendance workflows.
type AttendanceService struct {
	store     AttendanceStore
	generator *RecordGenerator
	bulk      *BulkCoordinator
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(roster RosterReader, store AttendanceStore, bulk *BulkCoordinator, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bulk == nil {
		bulk = NewBulkCoordinator(store, cache, nil, logger)
	}
	svc := &AttendanceService{
		store:     store,
		generator: NewRecordGenerator(roster, store),
		bulk:      bulk,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAttendanceStatus(fl.Field().String())
		return ok
	})
	return svc
}

// DailyRecords returns one record per enrolled student for the date.
func (s *AttendanceService) DailyRecords(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	if date.IsZero() {
		return nil, newValidationError(CodeInvalidDate, FieldDate, "date is required").AppError()
	}
	records, err := s.generator.Generate(ctx, classID, date)
	if err != nil {
		return nil, storeAppError(err, "failed to load class attendance")
	}
	return records, nil
}

// Get returns the stored record for the student and date, or an unsaved placeholder.
func (s *AttendanceService) Get(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, newValidationError(CodeMissingStudent, FieldStudentID, "student id is required").AppError()
	}
	if date.IsZero() {
		return nil, newValidationError(CodeInvalidDate, FieldDate, "date is required").AppError()
	}
	stored, err := s.store.FindByKey(ctx, studentID, models.NormalizeDate(date))
	if err != nil {
		return nil, storeAppError(err, "failed to load attendance")
	}
	if stored == nil {
		placeholder := Placeholder(studentID, date)
		return &placeholder, nil
	}
	return stored, nil
}

// Save validates a single form and persists it. Evidence already stored for
// the record is kept when the form does not carry new evidence.
func (s *AttendanceService) Save(ctx context.Context, form AttendanceForm) (*models.AttendanceRecord, error) {
	record, err := ParseAttendanceForm(form)
	if err != nil {
		return nil, asAppError(err)
	}
	existing, err := s.carryStoredEvidence(ctx, &record)
	if err != nil {
		return nil, storeAppError(err, "failed to load attendance")
	}
	if existing != nil && record.ID == "" {
		record.ID = existing.ID
	}

	normalized, err := ValidateAttendance(record)
	if err != nil {
		return nil, asAppError(err)
	}
	id, err := s.store.Upsert(ctx, &normalized)
	if err != nil {
		s.logger.Error("attendance save failed",
			zap.String("student_id", normalized.StudentID),
			zap.String("date", normalized.Date.Format(models.DateLayout)),
			zap.Error(err))
		return nil, storeAppError(err, "failed to save attendance")
	}
	normalized.ID = id
	s.invalidateStats(ctx)
	return &normalized, nil
}

// Apply parses every form and persists the valid ones. Forms that cannot be
// parsed are reported as failures alongside those rejected by validation or
// the store.
func (s *AttendanceService) Apply(ctx context.Context, forms []AttendanceForm) models.BulkResult {
	records := make([]models.AttendanceRecord, 0, len(forms))
	var parseFailures []models.BulkFailure
	for _, form := range forms {
		record, err := ParseAttendanceForm(form)
		if err != nil {
			key := models.RecordKey{StudentID: strings.TrimSpace(form.StudentID)}
			if date, derr := models.ParseDate(form.Date); derr == nil {
				key.Date = date
			}
			parseFailures = append(parseFailures, validationFailure(key, err))
			continue
		}
		if _, err := s.carryStoredEvidence(ctx, &record); err != nil {
			parseFailures = append(parseFailures, storeFailure(record.Key(), err))
			continue
		}
		records = append(records, record)
	}
	result := s.bulk.ApplyBulk(ctx, records)
	result.Failed = append(result.Failed, parseFailures...)
	return result
}

// carryStoredEvidence copies the stored images onto record where record brings
// none, and returns the stored record (nil when nothing is stored yet).
func (s *AttendanceService) carryStoredEvidence(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	existing, err := s.store.FindByKey(ctx, record.StudentID, record.Date)
	if err != nil || existing == nil {
		return nil, err
	}
	if record.CheckInImage == nil {
		record.CheckInImage = existing.CheckInImage
	}
	if record.CheckOutImage == nil {
		record.CheckOutImage = existing.CheckOutImage
	}
	return existing, nil
}

// ApplyRecords validates the envelope of a raw bulk submission and applies its records.
func (s *AttendanceService) ApplyRecords(ctx context.Context, req dto.BulkRecordsRequest) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "records must contain between 1 and 500 entries")
	}
	forms := make([]AttendanceForm, 0, len(req.Records))
	for _, rec := range req.Records {
		forms = append(forms, FormFromRequest(rec))
	}
	result := s.Apply(ctx, forms)
	return &result, nil
}

// BulkMark sets the status for the listed students of a class, or for the
// whole class when no students are listed.
func (s *AttendanceService) BulkMark(ctx context.Context, classID string, req dto.BulkStatusRequest) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, newValidationError(CodeInvalidDate, FieldDate, "date must be YYYY-MM-DD").AppError()
	}
	status, _ := models.ParseAttendanceStatus(req.Status)

	records, err := s.generator.Generate(ctx, classID, date)
	if err != nil {
		return nil, storeAppError(err, "failed to load class attendance")
	}
	selected, missing := selectStudents(records, req.StudentIDs, date)
	result := s.bulk.MarkStatus(ctx, selected, status, req.ExcuseReason)
	result.Failed = append(result.Failed, missing...)
	return &result, nil
}

// BulkCheckIn attaches check-in evidence to the class's present students.
func (s *AttendanceService) BulkCheckIn(ctx context.Context, classID string, req dto.BulkEvidenceRequest) (*models.BulkResult, error) {
	records, source, err := s.evidencePass(ctx, classID, req)
	if err != nil {
		return nil, err
	}
	result := s.bulk.CaptureCheckIn(ctx, records, source)
	return &result, nil
}

// BulkCheckOut attaches check-out evidence to the class's present and late students.
func (s *AttendanceService) BulkCheckOut(ctx context.Context, classID string, req dto.BulkEvidenceRequest) (*models.BulkResult, error) {
	records, source, err := s.evidencePass(ctx, classID, req)
	if err != nil {
		return nil, err
	}
	result := s.bulk.CaptureCheckOut(ctx, records, source)
	return &result, nil
}

// Evidence returns the stored evidence blob of the given kind.
func (s *AttendanceService) Evidence(ctx context.Context, studentID string, date time.Time, kind models.EvidenceKind) ([]byte, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evidence kind must be check-in or check-out")
	}
	record, err := s.store.FindByKey(ctx, studentID, models.NormalizeDate(date))
	if err != nil {
		return nil, storeAppError(err, "failed to load attendance")
	}
	if record == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	blob := record.CheckInImage
	if kind == models.EvidenceCheckOut {
		blob = record.CheckOutImage
	}
	if len(blob) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no evidence recorded")
	}
	return blob, nil
}

func (s *AttendanceService) evidencePass(ctx context.Context, classID string, req dto.BulkEvidenceRequest) ([]models.AttendanceRecord, EvidenceSource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, nil, newValidationError(CodeInvalidDate, FieldDate, "date must be YYYY-MM-DD").AppError()
	}
	records, err := s.generator.Generate(ctx, classID, date)
	if err != nil {
		return nil, nil, storeAppError(err, "failed to load class attendance")
	}
	return records, MapEvidenceSource(req.Evidence), nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, StatsCachePattern); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// MapEvidenceSource serves evidence that was uploaded ahead of time, keyed by student id.
func MapEvidenceSource(blobs map[string][]byte) EvidenceSource {
	return EvidenceSourceFunc(func(_ context.Context, record models.AttendanceRecord) ([]byte, error) {
		blob, ok := blobs[record.StudentID]
		if !ok {
			return nil, errors.New("no evidence uploaded for student")
		}
		return blob, nil
	})
}

func selectStudents(records []models.AttendanceRecord, studentIDs []string, date time.Time) ([]models.AttendanceRecord, []models.BulkFailure) {
	if len(studentIDs) == 0 {
		return records, nil
	}
	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}
	selected := make([]models.AttendanceRecord, 0, len(studentIDs))
	var missing []models.BulkFailure
	for _, id := range studentIDs {
		rec, ok := byStudent[id]
		if !ok {
			missing = append(missing, models.BulkFailure{
				Key:    models.RecordKey{StudentID: id, Date: models.NormalizeDate(date)},
				Code:   FailureNotFound,
				Reason: "student is not enrolled in the class",
			})
			continue
		}
		selected = append(selected, rec)
	}
	return selected, missing
}

func asAppError(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.AppError()
	}
	return appErrors.FromError(err)
}

func storeAppError(err error, message string) error {
	switch {
	case errors.Is(err, appErrors.ErrConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	case errors.Is(err, appErrors.ErrNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, message)
	default:
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, message)
	}
}

// FormFromRequest maps an API record onto the form parsed by the rules.
func FormFromRequest(req dto.AttendanceRecordRequest) AttendanceForm {
	return AttendanceForm{
		ID:              req.ID,
		StudentID:       req.StudentID,
		Date:            req.Date,
		Status:          req.Status,
		CheckInTime:     req.CheckInTime,
		CheckOutTime:    req.CheckOutTime,
		LateArrivalTime: req.LateArrivalTime,
		ExcuseReason:    req.ExcuseReason,
		CheckInImage:    req.CheckInImage,
		CheckOutImage:   req.CheckOutImage,
	}
}
