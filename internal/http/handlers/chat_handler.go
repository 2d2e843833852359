// Chat HTTP handlers.
//
// This file exposes REST endpoints for specialist chats:
//   - POST   /chats                 (start or reuse a chat with a specialist)
//   - GET    /chats                 (list, most recent first, ETag support)
//   - GET    /chats/unread          (unread chat count)
//   - GET    /chats/{id}            (detail)
//   - POST   /chats/{id}/messages   (send; the reply arrives asynchronously)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/http/middleware"
)

//
// DTOs
//

// StartChatRequest is the JSON payload for opening a chat.
type StartChatRequest struct {
	SpecialistID string `json:"specialist_id" binding:"required" example:"spec-1"`
}

// SendMessageRequest is the JSON payload for a user message.
type SendMessageRequest struct {
	Text string `json:"text" binding:"required" example:"Posso registrar minha marca em duas classes?"`
}

// ChatSummary is a chat list entry.
type ChatSummary struct {
	ID           string          `json:"id"`
	SpecialistID string          `json:"specialist_id"`
	LastMessage  *domain.Message `json:"last_message,omitempty"`
	HasUnread    bool            `json:"has_unread"`
	LastUpdate   time.Time       `json:"last_update"`
}

// ListChatsResponse wraps the user's chats.
type ListChatsResponse struct {
	Chats []ChatSummary `json:"chats"`
	Total int           `json:"total"`
}

// UnreadResponse carries the unread chat count.
type UnreadResponse struct {
	Count int `json:"count" example:"2"`
}

func summarizeChat(ch domain.Chat) ChatSummary {
	s := ChatSummary{ID: ch.ID, SpecialistID: ch.SpecialistID, HasUnread: ch.HasUnread(), LastUpdate: ch.LastUpdate}
	if n := len(ch.Messages); n > 0 {
		last := ch.Messages[n-1]
		s.LastMessage = &last
	}
	return s
}

//
// Handlers
//

// StartChat godoc
// @ID          startChat
// @Summary     Start a chat with a specialist
// @Description Returns the existing chat with that specialist (200), or creates one seeded with a welcome message (201).
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.StartChatRequest  true  "Specialist"
// @Success     200  {object}  domain.Chat  "Existing chat"
// @Success     201  {object}  domain.Chat  "New chat"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Specialist not found"
// @Router      /chats [post]
func (h *Handlers) StartChat(c *gin.Context) {
	var req StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ch, created, err := h.chats.StartChat(c.Request.Context(), userID(c), strings.TrimSpace(req.SpecialistID))
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats
// @Description Most recently updated first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID      header  string  false "User ID (demo header)"  example(user123)
// @Param       If-None-Match  header  string  false "ETag from a previous response"
// @Success     200  {object}  handlers.ListChatsResponse
// @Success     304  "Not Modified"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	cs, err := h.chats.ListChats(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	var last time.Time
	msgs := 0
	for _, ch := range cs {
		msgs += len(ch.Messages)
		if ch.LastUpdate.After(last) {
			last = ch.LastUpdate
		}
	}
	if checkETag(c, "chats", msgs, last) {
		return
	}
	out := make([]ChatSummary, 0, len(cs))
	for _, ch := range cs {
		out = append(out, summarizeChat(ch))
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: out, Total: len(out)})
}

// UnreadChats godoc
// @ID          unreadChats
// @Summary     Count chats with unread replies
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.UnreadResponse
// @Router      /chats/unread [get]
func (h *Handlers) UnreadChats(c *gin.Context) {
	n, err := h.chats.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UnreadResponse{Count: n})
}

// GetChat godoc
// @ID          getChat
// @Summary     Chat detail
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chat ID"
// @Success     200  {object}  domain.Chat
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	ch, err := h.chats.GetChat(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Appends the user message and returns it. The specialist reply is appended later. Supports Idempotency-Key.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key"
// @Param       id               path    string  true  "Chat ID"
// @Param       body             body    handlers.SendMessageRequest  true  "Message"
// @Success     202  {object}  domain.Message
// @Success     200  {object}  domain.Message  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	cid := c.Param("id")
	if rid, replay := middleware.ReplayResource(c); replay {
		if ch, err := h.chats.GetChat(ctx, userID(c), cid); err == nil {
			for _, m := range ch.Messages {
				if m.ID == rid {
					markReplayed(c)
					ok(c, http.StatusOK, m)
					return
				}
			}
		}
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.chats.SendUserMessage(ctx, userID(c), cid, req.Text)
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, m.ID, http.StatusAccepted)
	ok(c, http.StatusAccepted, m)
}
