package dto

import "github.com/philong996/kindergarten-connect-sub000/internal/models"

// ReportRequest captures the POST /reports payload. class_daily reports use From as the day.
type ReportRequest struct {
	Type    models.ReportType   `json:"type" validate:"required,oneof=class_attendance class_daily"`
	ClassID string              `json:"classId" validate:"required"`
	From    string              `json:"from" validate:"required"`
	To      string              `json:"to"`
	Format  models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
