// Package httpapi assembles the gin engine: the middleware chain, the
// operational endpoints (/health, /metrics, /swagger) and the versioned API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-trademark-backend/docs"
	"github.com/tbourn/go-trademark-backend/internal/config"
	"github.com/tbourn/go-trademark-backend/internal/http/handlers"
	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
	"github.com/tbourn/go-trademark-backend/internal/repo"
	"github.com/tbourn/go-trademark-backend/internal/search"
)

// Deps are the services mounted by RegisterRoutes.
type Deps struct {
	Processes handlers.ProcessService
	Chats     handlers.MessagingService
	Accounts  handlers.AccountService
	Catalog   handlers.Catalog
	Articles  search.Index

	// Idempotency stores keys for the create endpoints; nil disables replay.
	Idempotency *repo.IdempotencyStore
	// Store, when it implements repo.Stater, adds record stats to /health.
	Store repo.KVGateway
}

// RegisterRoutes installs the middleware chain and every route on r.
//
// Order: tracing, request id, caller identity, loggers, recovery, body cap
// and gzip, metrics, idempotency (ahead of the limiter so replays bypass
// it), global limiter, CORS, security headers.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.UserIdentity(),
		middleware.ScopedLogger(),
		middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key", "X-Goog-Api-Key"},
			SkipPaths:   []string{"/health", "/metrics"},
		}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var lookup middleware.IdempotencyLookup
	if deps.Idempotency != nil {
		lookup = deps.Idempotency.Lookup
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Named("global").Handler())
	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)

	apiBase := cfg.APIBasePath

	// Account routes carry CPF/CNPJ and are never cached.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{joinPath(apiBase, "/account")},
		Expose:          []string{"ETag", "Idempotency-Replayed"},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", healthHandler(deps.Store))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Processes, deps.Chats, deps.Accounts, deps.Catalog, deps.Articles)
	if deps.Idempotency != nil {
		h.Idempotency = deps.Idempotency
	}

	// Registry and language-model calls leave the process; they get a
	// tighter per-user, per-route budget on top of the global limiter.
	upstream := middleware.NewRateLimiter(upstreamRPS(cfg), upstreamBurst, middleware.KeyByUserAndRoute()).Named("upstream").Handler()

	api := groupWithPrefix(r, apiBase)
	{
		// Dashboard and registry
		api.GET("/dashboard", h.Dashboard)
		api.GET("/registry/cases/:number", upstream, h.LookupCase)

		// Processes
		api.POST("/processes", upstream, h.TrackProcess)
		api.GET("/processes", h.ListProcesses)
		api.GET("/processes/attention", h.AttentionList)
		api.GET("/processes/:id", h.GetProcess)
		api.DELETE("/processes/:id", h.DeleteProcess)
		api.GET("/processes/:id/dispatches/:code/explain", upstream, h.ExplainDispatch)

		// Deadlines
		api.GET("/processes/:id/deadlines/draft", h.DeadlineDraft)
		api.POST("/processes/:id/deadlines", h.AddDeadline)
		api.PATCH("/processes/:id/deadlines/:did/toggle", h.ToggleDeadline)
		api.DELETE("/processes/:id/deadlines/:did", h.RemoveDeadline)

		// Chats
		api.POST("/chats", h.StartChat)
		api.GET("/chats", h.ListChats)
		api.GET("/chats/unread", h.UnreadChats)
		api.GET("/chats/:id", h.GetChat)
		api.POST("/chats/:id/messages", h.SendMessage)

		// Account and preferences
		api.POST("/account/register", h.Register)
		api.POST("/account/verify", h.Verify)
		api.GET("/account", h.CurrentAccount)
		api.DELETE("/account", h.Logout)
		api.GET("/preferences/theme", h.GetTheme)
		api.PUT("/preferences/theme", h.SetTheme)

		// Catalog
		api.GET("/specialists", h.ListSpecialists)
		api.GET("/articles", h.ListArticles)
		api.GET("/articles/:id", h.GetArticle)
	}
}

const (
	upstreamBurst = 3
	maxBodyBytes  = 1 << 20
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsAllow   = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.UserIDHeader, middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
)

// corsHandlers allows any origin when origins is empty. Otherwise the
// allowlisted Origin is echoed back, also on simple requests gin-contrib/cors
// would leave alone.
func corsHandlers(origins []string) []gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsAllow,
		ExposeHeaders: corsExpose,
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(conf)}
	}

	conf.AllowOrigins = origins
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	echo := func(c *gin.Context) {
		if o := c.GetHeader("Origin"); allowed[o] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", o)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(conf)}
}

func upstreamRPS(cfg config.Config) float64 {
	if cfg.Explain.RPS > 0 {
		return cfg.Explain.RPS
	}
	return 1
}

// healthHandler reports liveness and, when the store can summarise itself,
// the number of stored records and the latest write.
func healthHandler(store repo.KVGateway) gin.HandlerFunc {
	st, _ := store.(repo.Stater)
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if st != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			n, last, err := st.Stats(ctx, "u:")
			if err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("health: store stats failed")
				body["status"] = "degraded"
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["records"] = n
			if last != nil {
				body["last_write"] = last.UTC()
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

// limitBody makes body reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
