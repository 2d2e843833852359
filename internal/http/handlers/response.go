package handlers

// Every failure is written as an ErrorResponse with a stable code. Services
// report sentinels and failErr translates them through errorMap.

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go.
	Code string `json:"code" example:"case_not_found"`
	// Safe to show to users.
	Message string `json:"message" example:"case not found in the registry"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request logger; every envelope is counted by code.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	middleware.RecordErrorCode(code)
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router write the same envelope for NoRoute and NoMethod.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error to its status and error code. Unknown errors
// become 500 internal_error; their text is not echoed to the client.
func failErr(c *gin.Context, err error) {
	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, m.msg)
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
}

var errorMap = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{services.ErrInvalidCaseNumber, http.StatusBadRequest, ErrCodeInvalidCaseNumber, "case number must have at least 5 digits"},
	{services.ErrCaseNotFound, http.StatusNotFound, ErrCodeCaseNotFound, "case not found in the registry"},
	{services.ErrRegistryUnavailable, http.StatusBadGateway, ErrCodeRegistryUnavailable, "registry unavailable, try again"},
	{services.ErrStorageUnavailable, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "storage unavailable, try again"},
	{services.ErrProcessNotFound, http.StatusNotFound, ErrCodeNotFound, "process not found"},
	{services.ErrDeadlineNotFound, http.StatusNotFound, ErrCodeNotFound, "deadline not found"},
	{services.ErrDispatchNotFound, http.StatusNotFound, ErrCodeNotFound, "dispatch not found"},
	{services.ErrChatNotFound, http.StatusNotFound, ErrCodeNotFound, "chat not found"},
	{services.ErrSpecialistNotFound, http.StatusNotFound, ErrCodeNotFound, "specialist not found"},
	{services.ErrEmptyTitle, http.StatusBadRequest, ErrCodeValidation, "deadline title is required"},
	{services.ErrEmptyDate, http.StatusBadRequest, ErrCodeValidation, "deadline date is required"},
	{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeValidation, "message must not be empty"},
	{services.ErrTooLong, http.StatusBadRequest, ErrCodeValidation, "message too long"},
	{services.ErrMissingFields, http.StatusBadRequest, ErrCodeValidation, "name, email, type (PF|PJ) and document are required"},
	{services.ErrInvalidTheme, http.StatusBadRequest, ErrCodeValidation, "theme must be light or dark"},
	{services.ErrInvalidCode, http.StatusBadRequest, ErrCodeInvalidCode, "invalid verification code"},
	{services.ErrNotRegistered, http.StatusNotFound, ErrCodeNotRegistered, "no registered account"},
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
