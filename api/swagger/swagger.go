package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Kindergarten Attendance API",
        "description": "Daily attendance tracking and attendance statistics for kindergarten classes.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Attendance", "description": "Daily attendance records and bulk passes"},
        {"name": "Statistics", "description": "Attendance rates per student and class"},
        {"name": "Reports", "description": "Asynchronous CSV and PDF attendance reports"}
    ],
    "paths": {
        "/attendance/classes/{classId}/daily": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Class attendance sheet for a date",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "One record per enrolled student", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/classes/{classId}/summary": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Status counts of a class for a date",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/classes/{classId}/stats": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Per-student and class attendance rates over a date range",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/classes/{classId}/bulk-status": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark students of a class with one status",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-record outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/classes/{classId}/check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Attach check-in evidence for present students",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkEvidenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-record outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/classes/{classId}/check-out": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Attach check-out evidence for present and late students",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkEvidenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-record outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/bulk": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Save many attendance records",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkRecordsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-record outcome", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/students/{studentId}/dates/{date}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Attendance record of a student on a date",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No record", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Attendance"],
                "summary": "Create or update a student's attendance for a date",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttendanceRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/students/{studentId}/dates/{date}/evidence/{kind}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Download check-in or check-out evidence",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"},
                    {"name": "kind", "in": "path", "required": true, "type": "string", "enum": ["check-in", "check-out"]}
                ],
                "responses": {
                    "200": {"description": "Evidence bytes"},
                    "404": {"description": "No evidence", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/students/{studentId}/stats": {
            "get": {
                "tags": ["Statistics"],
                "summary": "Attendance rates of a student over a date range",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an attendance report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the job owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report through its signed token",
                "security": [],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AttendanceRecordRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE"]},
                "check_in_time": {"type": "string", "example": "07:30"},
                "check_out_time": {"type": "string", "example": "16:30"},
                "late_arrival_time": {"type": "string", "example": "08:15"},
                "excuse_reason": {"type": "string"},
                "check_in_image": {"type": "string", "format": "base64"},
                "check_out_image": {"type": "string", "format": "base64"}
            }
        },
        "BulkRecordsRequest": {
            "type": "object",
            "required": ["records"],
            "properties": {
                "records": {"type": "array", "items": {"$ref": "#/definitions/AttendanceRecordRequest"}}
            }
        },
        "BulkStatusRequest": {
            "type": "object",
            "required": ["date", "status"],
            "properties": {
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "LATE"]},
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "excuse_reason": {"type": "string"}
            }
        },
        "BulkEvidenceRequest": {
            "type": "object",
            "required": ["date", "evidence"],
            "properties": {
                "date": {"type": "string", "format": "date"},
                "evidence": {"type": "object", "additionalProperties": {"type": "string", "format": "base64"}}
            }
        },
        "ReportRequest": {
            "type": "object",
            "required": ["type", "classId", "from", "format"],
            "properties": {
                "type": {"type": "string", "enum": ["class_attendance", "class_daily"]},
                "classId": {"type": "string"},
                "from": {"type": "string", "format": "date"},
                "to": {"type": "string", "format": "date"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
