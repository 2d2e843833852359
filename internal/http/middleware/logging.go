package middleware

// Request correlation, caller identity, the request-scoped logger and panic
// recovery. Mount order: RequestID, UserIdentity, ScopedLogger,
// RedactingLogger, Recovery.

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	userIDKey       = "userID"
	loggerKey       = "logger"

	// UserIDHeader names the workspace owner. Every stored collection
	// (processes, chats, theme, account) is namespaced by it.
	UserIDHeader = "X-User-ID"
	// DefaultUserID is used when the client sends no identity.
	DefaultUserID = "demo-user"

	maxErrorLogBytes = 2048
)

// User ids become storage key segments, so ':' is excluded.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-]{1,64}$`)

// abortJSON writes the API error envelope from inside middleware and counts
// it by code.
func abortJSON(c *gin.Context, status int, code, msg string) {
	RecordErrorCode(code)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

// RequestID propagates X-Request-ID or mints a UUID, echoing it on the
// response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// UserIdentity resolves the caller from X-User-ID and rejects a malformed
// value with 400. Without the header nothing is stored: UserID falls back to
// DefaultUserID and rate limiting keys the caller by IP.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(UserIDHeader))
		switch {
		case uid == "":
		case userIDPattern.MatchString(uid):
			c.Set(userIDKey, uid)
		default:
			abortJSON(c, http.StatusBadRequest, "bad_request", "invalid "+UserIDHeader)
			return
		}
		c.Next()
	}
}

// UserID returns the identity set by UserIdentity, or DefaultUserID.
func UserID(c *gin.Context) string {
	if s := c.GetString(userIDKey); s != "" {
		return s
	}
	return DefaultUserID
}

// ScopedLogger derives a logger carrying request_id, user_id, method and
// route, and stores it in both the Gin context and the request context so
// services logging through zerolog.Ctx are correlated with the access log.
// Errors attached with c.Error are logged once the chain returns.
func ScopedLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		l := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("user_id", UserID(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Logger()

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()

		if len(c.Errors) > 0 {
			l.Error().Str("errors", truncate(c.Errors.String(), maxErrorLogBytes)).Msg("handler errors")
		}
	}
}

// Recovery turns a panic into a logged stack trace and, when nothing was
// written yet, a 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger stored by ScopedLogger, or a child of the
// global logger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at n bytes plus an ellipsis. n <= 0 disables it.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
