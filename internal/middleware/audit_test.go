package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/philong996/kindergarten-connect-sub000/internal/models"
)

func TestAuditLogsSuccessfulWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	})
	r.PUT("/students/:studentId", Audit(zap.New(core), "save_record"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.PUT("/broken/:studentId", Audit(zap.New(core), "save_record"), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/students/s-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/broken/s-1", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "save_record", fields["action"])
	assert.Equal(t, "teacher-1", fields["user_id"])
	assert.Equal(t, "s-1", fields["studentId"])
}

func TestResponseMetaAddsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}

	r := gin.New()
	r.GET("/meta", WithResponseMeta(), func(c *gin.Context) {
		meta = ResponseMeta(c, map[string]interface{}{"succeeded": 2})
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/meta", nil))

	assert.Equal(t, 2, meta["succeeded"])
	assert.Contains(t, meta, "processing_time_ms")

	bare := ResponseMeta(nil, map[string]interface{}{"failed": 0})
	assert.NotContains(t, bare, "processing_time_ms")
}
