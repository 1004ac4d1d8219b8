package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philong996/kindergarten-connect-sub000/internal/middleware"
	"github.com/philong996/kindergarten-connect-sub000/internal/models"
	"github.com/philong996/kindergarten-connect-sub000/internal/service"
	appErrors "github.com/philong996/kindergarten-connect-sub000/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// dateParam parses a YYYY-MM-DD value, naming the offending parameter on failure.
func dateParam(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, appErrors.New(string(service.CodeInvalidDate), http.StatusBadRequest, name+" is required")
	}
	parsed, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, string(service.CodeInvalidDate), http.StatusBadRequest, name+" must be YYYY-MM-DD")
	}
	return parsed, nil
}

// rangeParams reads the from and to query parameters.
func rangeParams(c *gin.Context) (time.Time, time.Time, error) {
	from, err := dateParam("from", c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := dateParam("to", c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
