package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	"github.com/philong996/kindergarten-connect-sub000/pkg/export"
	"github.com/philong996/kindergarten-connect-sub000/pkg/storage"
)

type statisticsSource interface {
	ClassStats(ctx context.Context, classID string, start, end time.Time) (*models.ClassAttendanceStats, error)
	ClassDaily(ctx context.Context, classID string, date time.Time) (*models.ClassDailyCounts, error)
}

type dailySheetSource interface {
	DailyRecords(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes a rendered and stored report.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders attendance reports and stores them behind signed URLs.
type ExportService struct {
	stats   statisticsSource
	daily   dailySheetSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(stats statisticsSource, daily dailySheetSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		stats:   stats,
		daily:   daily,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders the job's report, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("report job is nil")
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %q", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("report rendered",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	stamp := s.now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(job.Params.ClassID), sanitizeFilename(job.Params.From), stamp, job.Params.Format)
	return path.Join(string(job.Type), name)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeClassAttendance:
		return s.buildClassAttendanceDataset(ctx, job.Params)
	case models.ReportTypeClassDaily:
		return s.buildClassDailyDataset(ctx, job.Params)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %q", job.Type)
	}
}

func (s *ExportService) buildClassAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	from, to, err := reportRange(params)
	if err != nil {
		return export.Dataset{}, err
	}
	stats, err := s.stats.ClassStats(ctx, params.ClassID, from, to)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([][]string, 0, len(stats.Students))
	for _, student := range stats.Students {
		rows = append(rows, countsRow(student.StudentID, student.StudentName, student.AttendanceCounts))
	}
	className := stats.ClassName
	if className == "" {
		className = params.ClassID
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Attendance %s, %s to %s", className, from.Format(models.DateLayout), to.Format(models.DateLayout)),
		Headers: []string{"Student ID", "Student", "Days", "Present", "Late", "Absent", "Attendance (%)", "Late (%)"},
		Rows:    rows,
		Footer:  [][]string{countsRow("", "Class total", stats.Summary)},
	}, nil
}

func (s *ExportService) buildClassDailyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	date, err := models.ParseDate(params.From)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("invalid report date %q: %w", params.From, err)
	}
	records, err := s.daily.DailyRecords(ctx, params.ClassID, date)
	if err != nil {
		return export.Dataset{}, err
	}
	counts, err := s.stats.ClassDaily(ctx, params.ClassID, date)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		status := string(rec.Status)
		if !rec.Persisted() {
			status = "NOT RECORDED"
		}
		rows = append(rows, []string{
			rec.StudentID,
			rec.StudentName,
			status,
			clockText(rec.CheckInTime),
			clockText(rec.LateArrivalTime),
			clockText(rec.CheckOutTime),
			derefString(rec.ExcuseReason),
		})
	}
	className := counts.ClassName
	if className == "" {
		className = params.ClassID
	}
	summary := fmt.Sprintf("%d present, %d late, %d absent", counts.Present, counts.Late, counts.Absent)
	return export.Dataset{
		Title:   fmt.Sprintf("Daily attendance %s, %s", className, date.Format(models.DateLayout)),
		Headers: []string{"Student ID", "Student", "Status", "Check-in", "Late arrival", "Check-out", "Excuse"},
		Rows:    rows,
		Footer: [][]string{{
			"", fmt.Sprintf("%d/%d recorded", counts.Recorded, counts.Total), summary, "", "", "",
			fmt.Sprintf("Attendance %.2f%%", counts.AttendanceRate),
		}},
	}, nil
}

func reportRange(params models.ReportJobParams) (time.Time, time.Time, error) {
	from, err := models.ParseDate(params.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid report start %q: %w", params.From, err)
	}
	to := from
	if params.To != "" {
		if to, err = models.ParseDate(params.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid report end %q: %w", params.To, err)
		}
	}
	return from, to, nil
}

func countsRow(id, name string, c models.AttendanceCounts) []string {
	return []string{
		id,
		name,
		strconv.Itoa(c.TotalDays),
		strconv.Itoa(c.PresentDays),
		strconv.Itoa(c.LateDays),
		strconv.Itoa(c.AbsentDays),
		strconv.FormatFloat(c.AttendanceRate, 'f', 2, 64),
		strconv.FormatFloat(c.LateRate, 'f', 2, 64),
	}
}

func clockText(c *models.ClockTime) string {
	if c == nil {
		return ""
	}
	return c.String()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
