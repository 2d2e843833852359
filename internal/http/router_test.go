package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-trademark-backend/internal/catalog"
	"github.com/tbourn/go-trademark-backend/internal/config"
	"github.com/tbourn/go-trademark-backend/internal/explain"
	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
	"github.com/tbourn/go-trademark-backend/internal/notify"
	"github.com/tbourn/go-trademark-backend/internal/registry"
	"github.com/tbourn/go-trademark-backend/internal/repo"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	kv := repo.NewGormKV(db)
	reg, err := registry.NewFixtureRegistry("", 0)
	require.NoError(t, err)

	cat := catalog.Default()
	chats := services.NewMessagingService(kv, cat)
	chats.ReplyDelay = time.Millisecond
	t.Cleanup(chats.Wait)

	return Deps{
		Processes:   services.NewProcessService(kv, reg, notify.LogScheduler{}, explain.Static{Text: "ok"}),
		Chats:       chats,
		Accounts:    services.NewAccountService(kv, ""),
		Catalog:     cat,
		Articles:    cat.ArticleIndex(),
		Idempotency: repo.NewIdempotencyStore(db, time.Hour),
		Store:       kv,
	}
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "trademark-test"},
		Explain:     config.ExplainConfig{RPS: 100},
	}
}

func newEngine(t *testing.T, cfg config.Config, mutate ...func(*Deps)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := testDeps(t)
	for _, m := range mutate {
		m(&deps)
	}
	r := gin.New()
	RegisterRoutes(r, deps, cfg)
	return r
}

type reqOpt func(*http.Request)

func asUser(id string) reqOpt {
	return func(r *http.Request) { r.Header.Set(middleware.UserIDHeader, id) }
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func call(r *gin.Engine, method, path, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthReportsRecords(t *testing.T) {
	r := newEngine(t, testConfig())

	w := call(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "records")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthWithoutStats(t *testing.T) {
	r := newEngine(t, testConfig(), func(d *Deps) { d.Store = nil })

	w := call(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "records")
}

func TestOperationalFallbacks(t *testing.T) {
	r := newEngine(t, testConfig())
	call(r, http.MethodGet, "/health", "")

	w := call(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, call(r, http.MethodPost, "/health", "").Code)
}

func TestCORSAllowlistEchoesOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://painel.example"}}
	r := newEngine(t, cfg)

	w := call(r, http.MethodGet, "/health", "", withHeader("Origin", "https://painel.example"))
	assert.Equal(t, "https://painel.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = call(r, http.MethodGet, "/health", "", withHeader("Origin", "https://other.example"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTrackProcessReplay(t *testing.T) {
	r := newEngine(t, testConfig())
	track := func() *httptest.ResponseRecorder {
		return call(r, http.MethodPost, "/api/v1/processes", `{"number":"987654321"}`,
			asUser("owner-1"), withHeader(middleware.HeaderIdempotencyKey, "track-1"))
	}

	first := track()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	again := track()
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotency-Replayed"))
}

func TestAccountRoutesAreNotCached(t *testing.T) {
	r := newEngine(t, testConfig())

	w := call(r, http.MethodGet, "/api/v1/account", "", asUser("owner-1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = call(r, http.MethodGet, "/api/v1/specialists", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMalformedUserRejected(t *testing.T) {
	r := newEngine(t, testConfig())
	w := call(r, http.MethodGet, "/api/v1/processes", "", asUser("bad user/../"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpstreamLimiterIsPerRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Explain.RPS = 0.001
	r := newEngine(t, cfg)

	var last int
	for range upstreamBurst + 1 {
		last = call(r, http.MethodGet, "/api/v1/registry/cases/987654321", "", asUser("owner-limit")).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	w := call(r, http.MethodGet, "/api/v1/processes", "", asUser("owner-limit"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSwaggerToggle(t *testing.T) {
	cfg := testConfig()
	off := newEngine(t, cfg)
	assert.Equal(t, http.StatusNotFound, call(off, http.MethodGet, "/swagger/doc.json", "").Code)

	cfg.SwaggerEnabled = true
	on := newEngine(t, cfg)
	w := call(on, http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trackProcess")
}

func TestHSTSOnlyWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r := newEngine(t, cfg)

	w := call(r, http.MethodGet, "/health", "", withHeader("X-Forwarded-Proto", "https"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=3600")
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, call(r, http.MethodPost, "/echo", "0123").Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, call(r, http.MethodPost, "/echo", "0123456789AB").Code)
}

func TestPrefixHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/a", func(c *gin.Context) { c.String(http.StatusOK, "a") })
	groupWithPrefix(r, "").GET("/b", func(c *gin.Context) { c.String(http.StatusOK, "b") })
	groupWithPrefix(r, "/api").GET("/c", func(c *gin.Context) { c.String(http.StatusOK, "c") })

	for path, want := range map[string]string{"/a": "a", "/b": "b", "/api/c": "c"} {
		w := call(r, http.MethodGet, path, "")
		assert.Equal(t, want, w.Body.String(), path)
	}

	assert.Equal(t, "/account", joinPath("/", "/account"))
	assert.Equal(t, "/api/v1/account", joinPath("/api/v1", "/account"))
}
