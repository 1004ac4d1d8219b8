package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseStartKey = "response_start"

// WithResponseMeta stamps the request start so handlers can report processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Next()
	}
}

// ResponseMeta copies base and adds processing_time_ms when WithResponseMeta ran.
func ResponseMeta(c *gin.Context, base map[string]interface{}) map[string]interface{} {
	meta := make(map[string]interface{}, len(base)+1)
	for k, v := range base {
		meta[k] = v
	}
	if c == nil {
		return meta
	}
	if raw, ok := c.Get(responseStartKey); ok {
		if start, ok := raw.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}
