package middleware

// Access logging with personal data scrubbed. Bodies are never logged; query
// strings and header values pass through Redact first, and credential
// headers are replaced wholesale.

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const masked = "[REDACTED]"

type redactRule struct {
	label string
	re    *regexp.Regexp
}

// Applied in order. The phone rule is the loosest, so ids and documents
// must be consumed before it runs.
var redactRules = []redactRule{
	{"id", regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)},
	{"email", regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)},
	{"cnpj", regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)},
	{"cpf", regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b|\b\d{11}\b`)},
	{"phone", regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)},
}

// Redact replaces ids, e-mail addresses, CPF/CNPJ documents and phone
// numbers in s with "[REDACTED:<kind>]".
func Redact(s string) string {
	for _, r := range redactRules {
		if s == "" {
			break
		}
		s = r.re.ReplaceAllString(s, "[REDACTED:"+r.label+"]")
	}
	return s
}

// RedactOptions tunes RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are masked in addition to Authorization, Cookie and
	// Set-Cookie. Case-insensitive.
	MaskHeaders []string
	// SkipPaths are matched against the route pattern and not logged.
	SkipPaths []string
}

func (o RedactOptions) maskSet() map[string]bool {
	m := map[string]bool{"authorization": true, "cookie": true, "set-cookie": true}
	for _, h := range o.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = true
		}
	}
	return m
}

func scrubHeaders(h http.Header, mask map[string]bool) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if mask[strings.ToLower(k)] {
			out[k] = masked
			continue
		}
		out[k] = Redact(strings.Join(vv, ", "))
	}
	return out
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// RedactingLogger writes one "http_request" line per request after the
// handler chain completes: info for 2xx/3xx, warn for 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := opts.maskSet()
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		route := routeLabel(c)
		if skip[route] {
			c.Next()
			return
		}

		start := time.Now()
		query := Redact(c.Request.URL.RawQuery)
		headers := scrubHeaders(c.Request.Header, mask)

		c.Next()

		rid := c.Writer.Header().Get(requestIDHeader)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}
		status := c.Writer.Status()

		log.WithLevel(levelFor(status)).
			Str("request_id", rid).
			Str("user_id", UserID(c)).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
