package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/services"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", apperrors.ErrUnauthorized
	}
	return userID.(string), nil
}

// respondData writes a success envelope carrying a data payload.
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondMessage writes a success envelope carrying only a message.
func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": true, "message": message})
}

// respondBindingError writes a 400 envelope with one entry per failed
// binding rule so clients can surface field-level problems.
func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": apperrors.ErrInvalidInput.Message,
		"errors":  bindingErrors(err),
	})
}

func bindingErrors(err error) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, fmt.Sprintf("%s failed on the '%s' rule", fieldErr.Field(), fieldErr.Tag()))
	}
	return messages
}

// respondWithError writes a consistent JSON error envelope. If the error is
// an *AppError it uses the error's status code and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"success": false,
			"message": appErr.Message,
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"success": false,
		"message": apperrors.ErrInternalServer.Message,
	})
}

// parseBoolQuery parses an optional boolean query parameter. Returns nil
// when the parameter is absent.
func parseBoolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+name+" value")
	}
	return &value, nil
}

// parseDate parses a date that may be RFC3339 or a plain calendar date.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected RFC3339 or YYYY-MM-DD", value)
	}
	return t, nil
}

// parseDateRange resolves optional from/to query values into a range,
// defaulting to the current calendar month.
func parseDateRange(c *gin.Context) (services.DateRange, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	rng := services.DateRange{From: start, To: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}

	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			return services.DateRange{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		rng.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			return services.DateRange{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		rng.To = endOfDay(to)
	}
	if rng.To.Before(rng.From) {
		return services.DateRange{}, apperrors.ErrInvalidDateRange
	}
	return rng, nil
}

// endOfDay pushes a midnight timestamp to the end of its day so plain
// "to" dates behave inclusively. Timestamps with a clock are kept as-is.
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t
}
