package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
)

// CreateArea creates one area.
func (h *Handler) CreateArea(c *gin.Context) {
	var req backend.CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		badRequest(c, "name is required")
		return
	}
	area, err := h.Admin.CreateArea(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	h.afterVenueChange(c)
	c.JSON(http.StatusCreated, area)
}

// DeleteArea deletes one area.
func (h *Handler) DeleteArea(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Admin.DeleteArea(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	h.afterVenueChange(c)
	c.Status(http.StatusNoContent)
}

type createSeatsRequest struct {
	Seats []backend.CreateSeatRequest `json:"seats"`
}

// CreateSeats bulk-creates seats.
func (h *Handler) CreateSeats(c *gin.Context) {
	var req createSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Seats) == 0 {
		badRequest(c, "seats are required")
		return
	}
	if err := h.Admin.CreateSeats(c.Request.Context(), req.Seats); err != nil {
		fail(c, err)
		return
	}
	h.afterVenueChange(c)
	c.JSON(http.StatusCreated, gin.H{"created": len(req.Seats)})
}

// DeleteSeat deletes one seat.
func (h *Handler) DeleteSeat(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Admin.DeleteSeat(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	h.afterVenueChange(c)
	c.Status(http.StatusNoContent)
}

// ProvisionLayout creates the areas and seats described by a YAML layout body.
func (h *Handler) ProvisionLayout(c *gin.Context) {
	l, err := backend.ParseLayout(c.Request.Body)
	if err != nil {
		badRequest(c, "invalid layout: "+err.Error())
		return
	}
	areas, err := h.Admin.ProvisionLayout(c.Request.Context(), l)
	if err != nil {
		fail(c, err)
		return
	}
	h.afterVenueChange(c)
	c.JSON(http.StatusCreated, gin.H{"areas": areas})
}

// afterVenueChange drops every cached view of the venue and reloads it.
func (h *Handler) afterVenueChange(c *gin.Context) {
	h.invalidate("/api/areas")
	if h.Venue == nil {
		return
	}
	if err := h.Venue.Reload(c.Request.Context()); err != nil {
		log.Warnf("Failed to reload venue after admin change: %v", err)
	}
}
