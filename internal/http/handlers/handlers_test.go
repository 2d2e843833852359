package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-trademark-backend/internal/catalog"
	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/explain"
	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
	"github.com/tbourn/go-trademark-backend/internal/notify"
	"github.com/tbourn/go-trademark-backend/internal/registry"
	"github.com/tbourn/go-trademark-backend/internal/repo"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

// ---------- test wiring ----------

var refNow = time.Date(2023, 11, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	h     *Handlers
	r     *gin.Engine
	chats *services.MessagingService
	sched *countingSink
}

type countingSink struct{ n int }

func (s *countingSink) Deliver(context.Context, notify.Notification) error { s.n++; return nil }

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	kv := repo.NewGormKV(db)
	reg, err := registry.NewFixtureRegistry("", 0)
	require.NoError(t, err)

	sink := &countingSink{}
	procs := services.NewProcessService(kv, reg, notify.LogScheduler{Sink: sink}, explain.Static{Text: "explicação simples"})
	procs.Now = func() time.Time { return refNow }

	cat := catalog.Default()
	chats := services.NewMessagingService(kv, cat)
	chats.ReplyDelay = time.Millisecond
	accounts := services.NewAccountService(kv, "")

	h := New(procs, chats, accounts, cat, cat.ArticleIndex())
	h.Now = func() time.Time { return refNow }
	store := repo.NewIdempotencyStore(db, time.Hour)
	h.Idempotency = store

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.UserIdentity(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, store.Lookup))
	r.POST("/processes", h.TrackProcess)
	r.GET("/processes", h.ListProcesses)
	r.GET("/processes/attention", h.AttentionList)
	r.GET("/processes/:id", h.GetProcess)
	r.DELETE("/processes/:id", h.DeleteProcess)
	r.GET("/processes/:id/deadlines/draft", h.DeadlineDraft)
	r.POST("/processes/:id/deadlines", h.AddDeadline)
	r.PATCH("/processes/:id/deadlines/:did/toggle", h.ToggleDeadline)
	r.DELETE("/processes/:id/deadlines/:did", h.RemoveDeadline)
	r.GET("/processes/:id/dispatches/:code/explain", h.ExplainDispatch)
	r.GET("/dashboard", h.Dashboard)
	r.GET("/registry/cases/:number", h.LookupCase)
	r.POST("/chats", h.StartChat)
	r.GET("/chats", h.ListChats)
	r.GET("/chats/unread", h.UnreadChats)
	r.GET("/chats/:id", h.GetChat)
	r.POST("/chats/:id/messages", h.SendMessage)
	r.POST("/account/register", h.Register)
	r.POST("/account/verify", h.Verify)
	r.GET("/account", h.CurrentAccount)
	r.DELETE("/account", h.Logout)
	r.GET("/preferences/theme", h.GetTheme)
	r.PUT("/preferences/theme", h.SetTheme)
	r.GET("/specialists", h.ListSpecialists)
	r.GET("/articles", h.ListArticles)
	r.GET("/articles/:id", h.GetArticle)

	t.Cleanup(chats.Wait)
	return &testEnv{h: h, r: r, chats: chats, sched: sink}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, "u1")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) track(t *testing.T, number string) ProcessView {
	t.Helper()
	w := e.do(t, http.MethodPost, "/processes", TrackProcessRequest{Number: number}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ProcessView](t, w)
}

// ---------- processes ----------

func TestTrackProcess_ErrorsMapToCodes(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		number string
		status int
		code   string
	}{
		{"12a", http.StatusBadRequest, ErrCodeInvalidCaseNumber},
		{"555555555", http.StatusNotFound, ErrCodeCaseNotFound},
	}
	for _, tc := range cases {
		w := e.do(t, http.MethodPost, "/processes", TrackProcessRequest{Number: tc.number}, nil)
		assert.Equal(t, tc.status, w.Code, tc.number)
		assert.Equal(t, tc.code, decode[ErrorResponse](t, w).Code)
	}

	w := e.do(t, http.MethodPost, "/processes", map[string]int{"number": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackProcess_ListAndETag(t *testing.T) {
	e := newTestEnv(t)
	p := e.track(t, "123456789")
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.NeedsAttention, "EX001 requires action")

	w := e.do(t, http.MethodGet, "/processes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ListProcessesResponse](t, w)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "123456789", list.Processes[0].CaseNumber)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	w = e.do(t, http.MethodGet, "/processes", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)

	att := decode[ListProcessesResponse](t, e.do(t, http.MethodGet, "/processes/attention", nil, nil))
	assert.Equal(t, 1, att.Total)
}

func TestTrackProcess_IdempotentReplay(t *testing.T) {
	e := newTestEnv(t)
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "track-1"}

	w := e.do(t, http.MethodPost, "/processes", TrackProcessRequest{Number: "987654321"}, hdr)
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[ProcessView](t, w)

	w = e.do(t, http.MethodPost, "/processes", TrackProcessRequest{Number: "987654321"}, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotency-Replayed"))
	assert.Equal(t, first.ID, decode[ProcessView](t, w).ID)
}

func TestDeadlines_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	p := e.track(t, "123456789")
	base := "/processes/" + p.ID

	w := e.do(t, http.MethodGet, base+"/deadlines/draft?dispatch=EX001", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	draft := decode[domain.DeadlineDraft](t, w)
	assert.Equal(t, "EX001", draft.DispatchCode)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), draft.Date)

	w = e.do(t, http.MethodGet, base+"/deadlines/draft?dispatch=NOPE", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, base+"/deadlines", AddDeadlineRequest{Title: " ", Date: "2023-11-12"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeValidation, decode[ErrorResponse](t, w).Code)

	w = e.do(t, http.MethodPost, base+"/deadlines", AddDeadlineRequest{Title: "x", Date: "12/11/2023"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	hdr := map[string]string{middleware.HeaderIdempotencyKey: "dl-1"}
	w = e.do(t, http.MethodPost, base+"/deadlines", AddDeadlineRequest{Title: "Responder", Date: "2023-11-12", DispatchCode: "EX001"}, hdr)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dl := decode[DeadlineView](t, w)
	assert.Equal(t, domain.UrgencyUrgent, dl.Urgency)
	assert.Positive(t, e.sched.n)

	w = e.do(t, http.MethodPost, base+"/deadlines", AddDeadlineRequest{Title: "Responder", Date: "2023-11-12"}, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dl.ID, decode[DeadlineView](t, w).ID)

	w = e.do(t, http.MethodPatch, base+"/deadlines/"+dl.ID+"/toggle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.UrgencyCompleted, decode[DeadlineView](t, w).Urgency)

	w = e.do(t, http.MethodPatch, base+"/deadlines/missing/toggle", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodDelete, base+"/deadlines/"+dl.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodDelete, base+"/deadlines/"+dl.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	got := decode[ProcessView](t, e.do(t, http.MethodGet, base, nil, nil))
	assert.Empty(t, got.Deadlines)
}

func TestExplainDashboardAndDelete(t *testing.T) {
	e := newTestEnv(t)
	p := e.track(t, "123456789")

	w := e.do(t, http.MethodGet, "/processes/"+p.ID+"/dispatches/EX001/explain", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "explicação simples", decode[ExplainResponse](t, w).Explanation)

	w = e.do(t, http.MethodGet, "/processes/"+p.ID+"/dispatches/ZZ/explain", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	d := decode[DashboardResponse](t, e.do(t, http.MethodGet, "/dashboard", nil, nil))
	assert.Equal(t, 1, d.Active)
	assert.Equal(t, 1, d.Attention)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/processes/"+p.ID, nil, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/processes/"+p.ID, nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/processes/"+p.ID, nil, nil).Code)
}

func TestLookupCase(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/registry/cases/987654321", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "987654321", decode[domain.CaseSnapshot](t, w).Number)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/registry/cases/12", nil, nil).Code)
}

// ---------- chats ----------

func TestChats_StartSendAndUnread(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/chats", StartChatRequest{SpecialistID: "nobody"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/chats", StartChatRequest{SpecialistID: "s1"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	ch := decode[domain.Chat](t, w)
	require.Len(t, ch.Messages, 1)

	w = e.do(t, http.MethodPost, "/chats", StartChatRequest{SpecialistID: "s1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, "existing chat is reused")
	assert.Equal(t, ch.ID, decode[domain.Chat](t, w).ID)

	w = e.do(t, http.MethodPost, "/chats/"+ch.ID+"/messages", SendMessageRequest{Text: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	hdr := map[string]string{middleware.HeaderIdempotencyKey: "msg-1"}
	w = e.do(t, http.MethodPost, "/chats/"+ch.ID+"/messages", SendMessageRequest{Text: "Olá"}, hdr)
	require.Equal(t, http.StatusAccepted, w.Code)
	m := decode[domain.Message](t, w)
	assert.Equal(t, domain.SenderUser, m.Sender)

	w = e.do(t, http.MethodPost, "/chats/"+ch.ID+"/messages", SendMessageRequest{Text: "Olá"}, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, m.ID, decode[domain.Message](t, w).ID)

	e.chats.Wait()

	got := decode[domain.Chat](t, e.do(t, http.MethodGet, "/chats/"+ch.ID, nil, nil))
	assert.Len(t, got.Messages, 3)

	list := decode[ListChatsResponse](t, e.do(t, http.MethodGet, "/chats", nil, nil))
	require.Equal(t, 1, list.Total)
	assert.True(t, list.Chats[0].HasUnread)
	require.NotNil(t, list.Chats[0].LastMessage)
	assert.Equal(t, domain.SenderSpecialist, list.Chats[0].LastMessage.Sender)

	assert.Equal(t, 1, decode[UnreadResponse](t, e.do(t, http.MethodGet, "/chats/unread", nil, nil)).Count)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/chats/nope", nil, nil).Code)
}

// ---------- account ----------

func TestAccount_RegisterVerifyLogout(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/account", nil, nil).Code)

	w := e.do(t, http.MethodPost, "/account/register", RegisterRequest{Name: "Maria"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/account/register", RegisterRequest{
		Name: "Maria", Email: "m@example.com", Type: "pf", Document: "123.456.789-09",
	}, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/account/verify", VerifyRequest{Code: "000000"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeInvalidCode, decode[ErrorResponse](t, w).Code)

	w = e.do(t, http.MethodPost, "/account/verify", VerifyRequest{Code: services.DefaultVerifyCode}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[domain.User](t, w).IsVerified)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/account", nil, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/account", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/account", nil, nil).Code)
}

func TestTheme(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, "light", decode[ThemeBody](t, e.do(t, http.MethodGet, "/preferences/theme", nil, nil)).Theme)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/preferences/theme", ThemeBody{Theme: "blue"}, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/preferences/theme", ThemeBody{Theme: "Dark"}, nil).Code)
	assert.Equal(t, "dark", decode[ThemeBody](t, e.do(t, http.MethodGet, "/preferences/theme", nil, nil)).Theme)
}

// ---------- catalog ----------

func TestCatalogEndpoints(t *testing.T) {
	e := newTestEnv(t)

	specs := decode[[]domain.Specialist](t, e.do(t, http.MethodGet, "/specialists", nil, nil))
	assert.NotEmpty(t, specs)

	all := decode[ArticleList](t, e.do(t, http.MethodGet, "/articles", nil, nil))
	assert.NotEmpty(t, all.Articles)
	assert.Empty(t, all.Results)

	w := e.do(t, http.MethodGet, "/articles?q=marca&k=100", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[ArticleList](t, w)
	assert.Equal(t, "marca", found.Query)
	assert.LessOrEqual(t, len(found.Results), maxSearchK)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/articles/1", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/articles/abc", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/articles/999", nil, nil).Code)
}

// ---------- helpers ----------

func TestCheckETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, checkETag(c, "k", 1, refNow))
	etag := w.Header().Get("ETag")

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.Header.Set("If-None-Match", etag)
	assert.True(t, checkETag(c2, "k", 1, refNow))
	c2.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNotModified, w2.Code)
}
