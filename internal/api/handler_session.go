package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-booking-companion/internal/backend"
)

// GetSession returns the authentication state.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.State())
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login signs in with a username and password.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	user, err := h.Session.SignIn(c.Request.Context(), backend.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		fail(c, err)
		return
	}
	h.afterSignIn(c)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type feishuRequest struct {
	Code string `json:"code" binding:"required"`
}

// LoginFeishu signs in with a Feishu authorization code.
func (h *Handler) LoginFeishu(c *gin.Context) {
	var req feishuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}
	user, err := h.Session.SignInWithFeishu(c.Request.Context(), req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	h.afterSignIn(c)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) afterSignIn(c *gin.Context) {
	h.flushCache()
	if h.Bookings != nil {
		h.Bookings.Reset()
	}
	if h.Invitations != nil {
		h.Invitations.Reset()
		h.Invitations.Start(context.WithoutCancel(c.Request.Context()))
	}
}

// Logout signs out. It always succeeds locally.
func (h *Handler) Logout(c *gin.Context) {
	h.Session.SignOut(c.Request.Context())
	if h.Invitations != nil {
		h.Invitations.Stop()
		h.Invitations.Reset()
	}
	if h.Bookings != nil {
		h.Bookings.Reset()
	}
	h.flushCache()
	c.Status(http.StatusNoContent)
}
