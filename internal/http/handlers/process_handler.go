// Process HTTP handlers.
//
// This file exposes REST endpoints for tracked processes and their deadlines:
//   - POST   /processes                                  (track by case number)
//   - GET    /processes                                  (list, ETag support)
//   - GET    /processes/attention                        (needs-attention subset)
//   - GET    /processes/{id}                             (detail)
//   - DELETE /processes/{id}                             (stop tracking)
//   - GET    /processes/{id}/deadlines/draft             (pre-filled form)
//   - POST   /processes/{id}/deadlines                   (add deadline)
//   - PATCH  /processes/{id}/deadlines/{did}/toggle      (complete/reopen)
//   - DELETE /processes/{id}/deadlines/{did}             (remove)
//   - GET    /processes/{id}/dispatches/{code}/explain   (plain-language text)
//   - GET    /dashboard                                  (summary counters)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

//
// DTOs
//

// TrackProcessRequest is the JSON payload for tracking a new case.
type TrackProcessRequest struct {
	// Number is the registry case number (at least five digits).
	Number string `json:"number" binding:"required" example:"912345678"`
}

// AddDeadlineRequest is the JSON payload for creating a deadline.
type AddDeadlineRequest struct {
	Title string `json:"title" binding:"max=200" example:"Responder exigência"`
	// Date is YYYY-MM-DD or RFC 3339.
	Date         string `json:"date" example:"2024-05-10"`
	DispatchCode string `json:"dispatch_code" example:"IPAS423"`
}

// DeadlineView is a deadline with its urgency bucket.
type DeadlineView struct {
	domain.Deadline
	Urgency domain.Urgency `json:"urgency" example:"upcoming"`
}

// ProcessView is a process with derived display fields.
type ProcessView struct {
	domain.Process
	NeedsAttention   bool           `json:"needs_attention"`
	PendingDeadlines int            `json:"pending_deadlines"`
	Deadlines        []DeadlineView `json:"deadlines"`
}

// ListProcessesResponse wraps the user's processes.
type ListProcessesResponse struct {
	Processes []ProcessView `json:"processes"`
	Total     int           `json:"total"`
}

// DashboardResponse is the home-screen summary.
type DashboardResponse struct {
	domain.Summary
	UnreadChats int `json:"unread_chats"`
}

// ExplainResponse carries a dispatch explanation.
type ExplainResponse struct {
	Code        string `json:"code" example:"IPAS423"`
	Explanation string `json:"explanation"`
}

func (h *Handlers) view(p domain.Process) ProcessView {
	now := h.now()
	v := ProcessView{
		Process:          p,
		NeedsAttention:   domain.NeedsAttention(p, now),
		PendingDeadlines: domain.PendingDeadlines(p),
		Deadlines:        make([]DeadlineView, 0, len(p.Deadlines)),
	}
	for _, dl := range domain.SortDeadlines(p.Deadlines) {
		v.Deadlines = append(v.Deadlines, DeadlineView{Deadline: dl, Urgency: domain.UrgencyOf(dl, now)})
	}
	return v
}

func (h *Handlers) views(ps []domain.Process) []ProcessView {
	out := make([]ProcessView, 0, len(ps))
	for _, p := range ps {
		out = append(out, h.view(p))
	}
	return out
}

//
// Handlers
//

// TrackProcess godoc
// @ID          trackProcess
// @Summary     Track a registry case
// @Description Looks the case number up in the registry and adds it to the user's processes. Supports Idempotency-Key.
// @Tags        Processes
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key"
// @Param       body             body    handlers.TrackProcessRequest  true  "Case number"
// @Success     201  {object}  handlers.ProcessView
// @Success     200  {object}  handlers.ProcessView  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid case number"
// @Failure     404  {object}  handlers.ErrorResponse  "Case not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Registry unavailable"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /processes [post]
func (h *Handlers) TrackProcess(c *gin.Context) {
	ctx := c.Request.Context()
	if rid, replay := middleware.ReplayResource(c); replay {
		if p, err := h.procs.Get(ctx, userID(c), rid); err == nil {
			markReplayed(c)
			ok(c, http.StatusOK, h.view(p))
			return
		}
	}

	var req TrackProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.procs.Track(ctx, userID(c), strings.TrimSpace(req.Number))
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, p.ID, http.StatusCreated)
	ok(c, http.StatusCreated, h.view(p))
}

// ListProcesses godoc
// @ID          listProcesses
// @Summary     List tracked processes
// @Description Returns the user's processes in insertion order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Processes
// @Produce     json
// @Param       X-User-ID      header  string  false "User ID (demo header)"  example(user123)
// @Param       If-None-Match  header  string  false "ETag from a previous response"
// @Success     200  {object}  handlers.ListProcessesResponse
// @Success     304  "Not Modified"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /processes [get]
func (h *Handlers) ListProcesses(c *gin.Context) {
	ctx := c.Request.Context()
	n, last, err := h.procs.Revision(ctx, userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if checkETag(c, "processes", n, last) {
		return
	}
	ps, err := h.procs.List(ctx, userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListProcessesResponse{Processes: h.views(ps), Total: len(ps)})
}

// AttentionList godoc
// @ID          listAttention
// @Summary     Processes that need attention
// @Description Processes with a dispatch requiring action or an open deadline due within seven days.
// @Tags        Processes
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.ListProcessesResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /processes/attention [get]
func (h *Handlers) AttentionList(c *gin.Context) {
	ps, err := h.procs.AttentionList(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListProcessesResponse{Processes: h.views(ps), Total: len(ps)})
}

// GetProcess godoc
// @ID          getProcess
// @Summary     Process detail
// @Tags        Processes
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Process ID"
// @Success     200  {object}  handlers.ProcessView
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /processes/{id} [get]
func (h *Handlers) GetProcess(c *gin.Context) {
	p, err := h.procs.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.view(p))
}

// DeleteProcess godoc
// @ID          deleteProcess
// @Summary     Stop tracking a process
// @Description Removes the process and its deadlines. Deleting an unknown id succeeds.
// @Tags        Processes
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Process ID"
// @Success     204  "No Content"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /processes/{id} [delete]
func (h *Handlers) DeleteProcess(c *gin.Context) {
	if err := h.procs.DeleteProcess(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeadlineDraft godoc
// @ID          deadlineDraft
// @Summary     Pre-filled deadline form
// @Description With ?dispatch=CODE the draft is titled after the dispatch and due in 60 days; otherwise it is untitled and due tomorrow.
// @Tags        Deadlines
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Process ID"
// @Param       dispatch   query   string  false "Dispatch code"
// @Success     200  {object}  domain.DeadlineDraft
// @Failure     404  {object}  handlers.ErrorResponse  "Process or dispatch not found"
// @Router      /processes/{id}/deadlines/draft [get]
func (h *Handlers) DeadlineDraft(c *gin.Context) {
	d, err := h.procs.DeadlineDraft(c.Request.Context(), userID(c), c.Param("id"), strings.TrimSpace(c.Query("dispatch")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// AddDeadline godoc
// @ID          addDeadline
// @Summary     Add a deadline
// @Description Creates a deadline on the process and schedules its reminders. Supports Idempotency-Key; a replay returns 200 with Idempotency-Replayed: true.
// @Tags        Deadlines
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key"
// @Param       id               path    string  true  "Process ID"
// @Param       body             body    handlers.AddDeadlineRequest  true  "Deadline"
// @Success     201  {object}  handlers.DeadlineView
// @Success     200  {object}  handlers.DeadlineView  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Process not found"
// @Router      /processes/{id}/deadlines [post]
func (h *Handlers) AddDeadline(c *gin.Context) {
	ctx := c.Request.Context()
	pid := c.Param("id")
	if rid, replay := middleware.ReplayResource(c); replay {
		if p, err := h.procs.Get(ctx, userID(c), pid); err == nil {
			for _, dl := range p.Deadlines {
				if dl.ID == rid {
					markReplayed(c)
					ok(c, http.StatusOK, DeadlineView{Deadline: dl, Urgency: domain.UrgencyOf(dl, h.now())})
					return
				}
			}
		}
	}

	var req AddDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "date must be YYYY-MM-DD or RFC 3339")
		return
	}
	dl, err := h.procs.AddDeadline(ctx, userID(c), pid, services.DeadlineInput{
		Title:        req.Title,
		Date:         date,
		DispatchCode: strings.TrimSpace(req.DispatchCode),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, dl.ID, http.StatusCreated)
	ok(c, http.StatusCreated, DeadlineView{Deadline: dl, Urgency: domain.UrgencyOf(dl, h.now())})
}

// ToggleDeadline godoc
// @ID          toggleDeadline
// @Summary     Complete or reopen a deadline
// @Tags        Deadlines
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Process ID"
// @Param       did        path    string  true  "Deadline ID"
// @Success     200  {object}  handlers.DeadlineView
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /processes/{id}/deadlines/{did}/toggle [patch]
func (h *Handlers) ToggleDeadline(c *gin.Context) {
	dl, err := h.procs.ToggleDeadline(c.Request.Context(), userID(c), c.Param("id"), c.Param("did"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DeadlineView{Deadline: dl, Urgency: domain.UrgencyOf(dl, h.now())})
}

// RemoveDeadline godoc
// @ID          removeDeadline
// @Summary     Remove a deadline
// @Description Removing an unknown deadline succeeds.
// @Tags        Deadlines
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Process ID"
// @Param       did        path    string  true  "Deadline ID"
// @Success     204  "No Content"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /processes/{id}/deadlines/{did} [delete]
func (h *Handlers) RemoveDeadline(c *gin.Context) {
	if err := h.procs.RemoveDeadline(c.Request.Context(), userID(c), c.Param("id"), c.Param("did")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ExplainDispatch godoc
// @ID          explainDispatch
// @Summary     Explain a dispatch in plain language
// @Description Asks the configured language model for an explanation. Failures of the model are reported inside the text, never as an error.
// @Tags        Processes
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Process ID"
// @Param       code       path    string  true  "Dispatch code"
// @Success     200  {object}  handlers.ExplainResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Process or dispatch not found"
// @Router      /processes/{id}/dispatches/{code}/explain [get]
func (h *Handlers) ExplainDispatch(c *gin.Context) {
	code := c.Param("code")
	text, err := h.procs.Explain(c.Request.Context(), userID(c), c.Param("id"), code)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ExplainResponse{Code: code, Explanation: text})
}

// Dashboard godoc
// @ID          dashboard
// @Summary     Home-screen summary
// @Tags        Processes
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.DashboardResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /dashboard [get]
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.procs.Dashboard(ctx, userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	unread, err := h.chats.UnreadCount(ctx, userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DashboardResponse{Summary: s, UnreadChats: unread})
}

// LookupCase godoc
// @ID          lookupCase
// @Summary     Look a case up in the registry
// @Description Queries the registry without tracking the case.
// @Tags        Registry
// @Produce     json
// @Param       number  path  string  true  "Case number"
// @Success     200  {object}  domain.CaseSnapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid case number"
// @Failure     404  {object}  handlers.ErrorResponse  "Case not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Registry unavailable"
// @Router      /registry/cases/{number} [get]
func (h *Handlers) LookupCase(c *gin.Context) {
	snap, err := h.procs.Lookup(c.Request.Context(), c.Param("number"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}
