// Package handlers exposes the REST endpoints of the trademark monitor.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the interfaces below, and translate results
// (including service sentinel errors) into HTTP responses.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
	"github.com/tbourn/go-trademark-backend/internal/search"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ProcessService is the process store as consumed by the HTTP layer.
type ProcessService interface {
	Lookup(ctx context.Context, number string) (*domain.CaseSnapshot, error)
	Track(ctx context.Context, userID, number string) (domain.Process, error)
	List(ctx context.Context, userID string) ([]domain.Process, error)
	Get(ctx context.Context, userID, processID string) (domain.Process, error)
	AttentionList(ctx context.Context, userID string) ([]domain.Process, error)
	Dashboard(ctx context.Context, userID string) (domain.Summary, error)
	DeadlineDraft(ctx context.Context, userID, processID, dispatchCode string) (domain.DeadlineDraft, error)
	AddDeadline(ctx context.Context, userID, processID string, in services.DeadlineInput) (domain.Deadline, error)
	ToggleDeadline(ctx context.Context, userID, processID, deadlineID string) (domain.Deadline, error)
	RemoveDeadline(ctx context.Context, userID, processID, deadlineID string) error
	DeleteProcess(ctx context.Context, userID, processID string) error
	Explain(ctx context.Context, userID, processID, code string) (string, error)
	Revision(ctx context.Context, userID string) (int, time.Time, error)
}

// MessagingService is the chat engine as consumed by the HTTP layer.
type MessagingService interface {
	StartChat(ctx context.Context, userID, specialistID string) (chat domain.Chat, created bool, err error)
	SendUserMessage(ctx context.Context, userID, chatID, text string) (domain.Message, error)
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
	GetChat(ctx context.Context, userID, chatID string) (domain.Chat, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// AccountService manages the local account and preferences.
type AccountService interface {
	Register(ctx context.Context, userID string, in services.Registration) (domain.User, error)
	Verify(ctx context.Context, userID, code string) (domain.User, error)
	Current(ctx context.Context, userID string) (domain.User, error)
	Logout(ctx context.Context, userID string) error
	Theme(ctx context.Context, userID string) domain.Theme
	SetTheme(ctx context.Context, userID string, t domain.Theme) error
}

// Catalog is the static reference data.
type Catalog interface {
	Specialists() []domain.Specialist
	Articles() []domain.Article
	Article(id int) (domain.Article, bool)
}

// IdempotencyRecorder remembers the resource created for an Idempotency-Key.
type IdempotencyRecorder interface {
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	procs    ProcessService
	chats    MessagingService
	accounts AccountService
	catalog  Catalog
	articles search.Index

	// Idempotency is optional; without it keys are validated but not stored.
	Idempotency IdempotencyRecorder
	// Now is the clock used for urgency buckets.
	Now func() time.Time
}

// New constructs Handlers bound to the given services.
func New(procs ProcessService, chats MessagingService, accounts AccountService, cat Catalog, articles search.Index) *Handlers {
	return &Handlers{procs: procs, chats: chats, accounts: accounts, catalog: cat, articles: articles, Now: time.Now}
}

func userID(c *gin.Context) string { return middleware.UserID(c) }

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// remember stores the idempotency record for a created resource, best effort.
func (h *Handlers) remember(c *gin.Context, resourceID string, status int) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok || h.Idempotency == nil {
		return
	}
	if err := h.Idempotency.Remember(c.Request.Context(), userID(c), middleware.IdempotencyScope(c), key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}

func markReplayed(c *gin.Context) { c.Header("Idempotency-Replayed", "true") }

// checkETag sets a weak ETag and reports whether the client copy is fresh
// (in which case 304 has been written).
func checkETag(c *gin.Context, kind string, count int, last time.Time) bool {
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, userID(c), count, last.UnixNano())
	c.Header("ETag", etag)
	if inm := strings.TrimSpace(c.GetHeader("If-None-Match")); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
