package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetInvitations returns the upcoming invitations. ?refresh=1 fetches them first.
func (h *Handler) GetInvitations(c *gin.Context) {
	if c.Query("refresh") == "1" {
		if err := h.Invitations.Fetch(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.Invitations.State())
}

// AcceptInvitation accepts an invitation.
func (h *Handler) AcceptInvitation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Invitations.Accept(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Invitations.State())
}

// DeclineInvitation declines an invitation.
func (h *Handler) DeclineInvitation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Invitations.Decline(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Invitations.State())
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// PutVisibility records whether the UI is in the foreground.
func (h *Handler) PutVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "visible is required")
		return
	}
	h.Invitations.Visibility().Set(*req.Visible)
	c.Status(http.StatusNoContent)
}
