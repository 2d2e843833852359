// Account and preference HTTP handlers.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/services"
)

// RegisterRequest is the JSON payload for a new account.
type RegisterRequest struct {
	Name     string `json:"name" example:"Maria Souza"`
	Email    string `json:"email" example:"maria@example.com"`
	Type     string `json:"type" example:"PF" enums:"PF,PJ"`
	Document string `json:"document" example:"123.456.789-09"`
}

// VerifyRequest carries the verification code.
type VerifyRequest struct {
	Code string `json:"code" binding:"required" example:"123456"`
}

// ThemeBody is the theme preference.
type ThemeBody struct {
	Theme string `json:"theme" binding:"required" example:"dark" enums:"light,dark"`
}

// Register godoc
// @ID          register
// @Summary     Start a registration
// @Description Stores the pending registration until it is verified.
// @Tags        Account
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.RegisterRequest  true  "Registration"
// @Success     202  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /account/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), userID(c), services.Registration{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Type:     domain.UserType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Document: strings.TrimSpace(req.Document),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusAccepted, u)
}

// Verify godoc
// @ID          verify
// @Summary     Verify a pending registration
// @Tags        Account
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.VerifyRequest  true  "Code"
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid code"
// @Failure     404  {object}  handlers.ErrorResponse  "Not registered"
// @Router      /account/verify [post]
func (h *Handlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.accounts.Verify(c.Request.Context(), userID(c), strings.TrimSpace(req.Code))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// CurrentAccount godoc
// @ID          currentAccount
// @Summary     Current account
// @Tags        Account
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  domain.User
// @Failure     404  {object}  handlers.ErrorResponse  "Not registered"
// @Router      /account [get]
func (h *Handlers) CurrentAccount(c *gin.Context) {
	u, err := h.accounts.Current(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// Logout godoc
// @ID          logout
// @Summary     Log out
// @Description Forgets the account. Processes, chats and preferences are kept.
// @Tags        Account
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     204  "No Content"
// @Router      /account [delete]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.accounts.Logout(c.Request.Context(), userID(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// GetTheme godoc
// @ID          getTheme
// @Summary     Theme preference
// @Tags        Preferences
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.ThemeBody
// @Router      /preferences/theme [get]
func (h *Handlers) GetTheme(c *gin.Context) {
	ok(c, http.StatusOK, ThemeBody{Theme: string(h.accounts.Theme(c.Request.Context(), userID(c)))})
}

// SetTheme godoc
// @ID          setTheme
// @Summary     Change the theme preference
// @Tags        Preferences
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ThemeBody  true  "Theme"
// @Success     200  {object}  handlers.ThemeBody
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /preferences/theme [put]
func (h *Handlers) SetTheme(c *gin.Context) {
	var req ThemeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t := domain.Theme(strings.ToLower(strings.TrimSpace(req.Theme)))
	if err := h.accounts.SetTheme(c.Request.Context(), userID(c), t); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ThemeBody{Theme: string(t)})
}
