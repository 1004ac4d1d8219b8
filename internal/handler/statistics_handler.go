package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	"github.com/philong996/kindergarten-connect-sub000/pkg/response"
)

type statisticsService interface {
	StatsFor(ctx context.Context, studentID string, start, end time.Time) (*models.StudentAttendanceStats, error)
	ClassStats(ctx context.Context, classID string, start, end time.Time) (*models.ClassAttendanceStats, error)
	ClassDaily(ctx context.Context, classID string, date time.Time) (*models.ClassDailyCounts, error)
}

// StatisticsHandler exposes attendance statistics.
type StatisticsHandler struct {
	stats statisticsService
}

// NewStatisticsHandler constructs a StatisticsHandler.
func NewStatisticsHandler(stats statisticsService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// StudentStats godoc
// @Summary Attendance statistics of a student
// @Description Only saved records count; rates are percentages rounded to two decimals.
// @Tags Statistics
// @Produce json
// @Param studentId path string true "Student ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD), inclusive"
// @Success 200 {object} response.Envelope{data=models.StudentAttendanceStats}
// @Router /attendance/students/{studentId}/stats [get]
func (h *StatisticsHandler) StudentStats(c *gin.Context) {
	from, to, err := rangeParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.stats.StatsFor(c.Request.Context(), c.Param("studentId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ClassStats godoc
// @Summary Attendance statistics of a class
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD), inclusive"
// @Success 200 {object} response.Envelope{data=models.ClassAttendanceStats}
// @Router /attendance/classes/{classId}/stats [get]
func (h *StatisticsHandler) ClassStats(c *gin.Context) {
	from, to, err := rangeParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.stats.ClassStats(c.Request.Context(), c.Param("classId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ClassSummary godoc
// @Summary Present, late and absent counts of a class for a date
// @Tags Statistics
// @Produce json
// @Param classId path string true "Class ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope{data=models.ClassDailyCounts}
// @Router /attendance/classes/{classId}/summary [get]
func (h *StatisticsHandler) ClassSummary(c *gin.Context) {
	date, err := dateParam("date", c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := h.stats.ClassDaily(c.Request.Context(), c.Param("classId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
