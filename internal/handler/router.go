package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/philong996/kindergarten-connect-sub000/internal/middleware"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Attendance *AttendanceHandler
	Statistics *StatisticsHandler
	Reports    *ReportHandler
	Verifier   middleware.AccessTokenVerifier
	Logger     *zap.Logger
}

// Register mounts the attendance API on group. Reads need any authenticated
// role; writes need staff. The export download is authorised by its signed token.
func (r Routes) Register(group *gin.RouterGroup) {
	authed := group.Group("", middleware.WithResponseMeta(), middleware.JWT(r.Verifier))
	staff := middleware.RequireStaff()
	audit := func(action string) gin.HandlerFunc { return middleware.Audit(r.Logger, action) }

	attendance := authed.Group("/attendance")
	{
		attendance.GET("/classes/:classId/daily", r.Attendance.ClassDaily)
		attendance.GET("/classes/:classId/summary", r.Statistics.ClassSummary)
		attendance.GET("/classes/:classId/stats", r.Statistics.ClassStats)
		attendance.POST("/classes/:classId/bulk-status", staff, audit("bulk_status"), r.Attendance.BulkStatus)
		attendance.POST("/classes/:classId/check-in", staff, audit("bulk_check_in"), r.Attendance.BulkCheckIn)
		attendance.POST("/classes/:classId/check-out", staff, audit("bulk_check_out"), r.Attendance.BulkCheckOut)
		attendance.POST("/bulk", staff, audit("bulk_records"), r.Attendance.BulkRecords)
		attendance.GET("/students/:studentId/dates/:date", r.Attendance.GetRecord)
		attendance.PUT("/students/:studentId/dates/:date", staff, audit("save_record"), r.Attendance.SaveRecord)
		attendance.GET("/students/:studentId/dates/:date/evidence/:kind", r.Attendance.Evidence)
		attendance.GET("/students/:studentId/stats", r.Statistics.StudentStats)
	}

	if r.Reports != nil {
		authed.POST("/reports", staff, audit("create_report"), r.Reports.GenerateReport)
		authed.GET("/reports/:id", staff, r.Reports.ReportStatus)
		group.GET("/export/:token", r.Reports.DownloadReport)
	}
}
