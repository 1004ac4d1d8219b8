package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philong996/kindergarten-connect-sub000/internal/dto"
	"github.com/philong996/kindergarten-connect-sub000/internal/middleware"
	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	"github.com/philong996/kindergarten-connect-sub000/internal/service"
	"github.com/philong996/kindergarten-connect-sub000/pkg/response"
)

type attendanceService interface {
	DailyRecords(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	Get(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	Save(ctx context.Context, form service.AttendanceForm) (*models.AttendanceRecord, error)
	ApplyRecords(ctx context.Context, req dto.BulkRecordsRequest) (*models.BulkResult, error)
	BulkMark(ctx context.Context, classID string, req dto.BulkStatusRequest) (*models.BulkResult, error)
	BulkCheckIn(ctx context.Context, classID string, req dto.BulkEvidenceRequest) (*models.BulkResult, error)
	BulkCheckOut(ctx context.Context, classID string, req dto.BulkEvidenceRequest) (*models.BulkResult, error)
	Evidence(ctx context.Context, studentID string, date time.Time, kind models.EvidenceKind) ([]byte, error)
}

// AttendanceHandler exposes daily attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// ClassDaily godoc
// @Summary Class attendance sheet for a date
// @Description Returns one record per enrolled student; students without a saved record appear as unsaved ABSENT rows.
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=[]dto.AttendanceRecordView}
// @Failure 400 {object} response.Envelope
// @Router /attendance/classes/{classId}/daily [get]
func (h *AttendanceHandler) ClassDaily(c *gin.Context) {
	date, err := dateParam("date", c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.attendance.DailyRecords(c.Request.Context(), c.Param("classId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAttendanceRecordViews(records), nil)
}

// GetRecord godoc
// @Summary Attendance record of a student on a date
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=dto.AttendanceRecordView}
// @Router /attendance/students/{studentId}/dates/{date} [get]
func (h *AttendanceHandler) GetRecord(c *gin.Context) {
	date, err := dateParam("date", c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.attendance.Get(c.Request.Context(), c.Param("studentId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAttendanceRecordView(*record), nil)
}

// SaveRecord godoc
// @Summary Create or update a student's attendance for a date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param payload body dto.AttendanceRecordRequest true "Attendance record"
// @Success 200 {object} response.Envelope{data=dto.AttendanceRecordView}
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /attendance/students/{studentId}/dates/{date} [put]
func (h *AttendanceHandler) SaveRecord(c *gin.Context) {
	var req dto.AttendanceRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	req.StudentID = c.Param("studentId")
	req.Date = c.Param("date")
	record, err := h.attendance.Save(c.Request.Context(), service.FormFromRequest(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAttendanceRecordView(*record), nil)
}

// BulkRecords godoc
// @Summary Save many attendance records
// @Description Each record is validated and saved independently; the result lists every record's outcome.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.BulkRecordsRequest true "Records"
// @Success 200 {object} response.Envelope{data=dto.BulkResultView}
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) BulkRecords(c *gin.Context) {
	var req dto.BulkRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.attendance.ApplyRecords(c.Request.Context(), req)
	bulkResponse(c, result, err)
}

// BulkStatus godoc
// @Summary Mark students of a class with one status
// @Tags Attendance
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.BulkStatusRequest true "Status change"
// @Success 200 {object} response.Envelope{data=dto.BulkResultView}
// @Router /attendance/classes/{classId}/bulk-status [post]
func (h *AttendanceHandler) BulkStatus(c *gin.Context) {
	var req dto.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.attendance.BulkMark(c.Request.Context(), c.Param("classId"), req)
	bulkResponse(c, result, err)
}

// BulkCheckIn godoc
// @Summary Attach check-in evidence for present students
// @Tags Attendance
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.BulkEvidenceRequest true "Evidence keyed by student id"
// @Success 200 {object} response.Envelope{data=dto.BulkResultView}
// @Router /attendance/classes/{classId}/check-in [post]
func (h *AttendanceHandler) BulkCheckIn(c *gin.Context) {
	var req dto.BulkEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.attendance.BulkCheckIn(c.Request.Context(), c.Param("classId"), req)
	bulkResponse(c, result, err)
}

// BulkCheckOut godoc
// @Summary Attach check-out evidence for present and late students
// @Tags Attendance
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.BulkEvidenceRequest true "Evidence keyed by student id"
// @Success 200 {object} response.Envelope{data=dto.BulkResultView}
// @Router /attendance/classes/{classId}/check-out [post]
func (h *AttendanceHandler) BulkCheckOut(c *gin.Context) {
	var req dto.BulkEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.attendance.BulkCheckOut(c.Request.Context(), c.Param("classId"), req)
	bulkResponse(c, result, err)
}

// Evidence godoc
// @Summary Download check-in or check-out evidence
// @Tags Attendance
// @Produce octet-stream
// @Param studentId path string true "Student ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param kind path string true "check-in or check-out"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /attendance/students/{studentId}/dates/{date}/evidence/{kind} [get]
func (h *AttendanceHandler) Evidence(c *gin.Context) {
	date, err := dateParam("date", c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	kind := models.EvidenceKind(c.Param("kind"))
	blob, err := h.attendance.Evidence(c.Request.Context(), c.Param("studentId"), date, kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("ETag", fmt.Sprintf("%q", dto.EvidenceDigest(blob)))
	filename := fmt.Sprintf("%s_%s_%s", c.Param("studentId"), date.Format(models.DateLayout), kind)
	response.Attachment(c, filename, http.DetectContentType(blob), blob)
}

func bulkResponse(c *gin.Context, result *models.BulkResult, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	view := dto.NewBulkResultView(*result)
	response.JSON(c, http.StatusOK, view, nil, middleware.ResponseMeta(c, map[string]interface{}{
		"succeeded": len(view.Succeeded),
		"failed":    len(view.Failed),
	}))
}
