package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/venue"
)

// GetAreas returns the venue areas.
func (h *Handler) GetAreas(c *gin.Context) {
	areas, err := h.Venue.LoadAreasWithCache(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"areas": areas})
}

// GetTimeSlots returns the bookable time slots.
func (h *Handler) GetTimeSlots(c *gin.Context) {
	slots, err := h.Venue.LoadTimeSlotsWithCache(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeSlots": slots})
}

// GetSeats returns the seat view-models. ?area= reloads the seat map of one area and
// ?table= narrows the result to one table.
func (h *Handler) GetSeats(c *gin.Context) {
	areaID, ok := intQuery(c, "area")
	if !ok {
		return
	}
	if areaID > 0 || len(h.Venue.Seats()) == 0 {
		if _, err := h.Venue.LoadSeatMapWithCache(c.Request.Context(), areaID); err != nil {
			fail(c, err)
			return
		}
	}

	seats := h.Venue.Seats()
	if table := c.Query("table"); table != "" {
		switch pos := venue.Position(c.Query("position")); pos {
		case venue.Left, venue.Right:
			seats = h.Venue.SeatsByTable(table, pos)
		case "":
			seats = append(h.Venue.SeatsByTable(table, venue.Left), h.Venue.SeatsByTable(table, venue.Right)...)
		default:
			badRequest(c, "position must be left or right")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"seats": seats, "availableCount": h.Venue.AvailableCount()})
}

// GetAvailability queries one (date, slot, area) and returns the reconciled venue state.
func (h *Handler) GetAvailability(c *gin.Context) {
	slot, ok := intQuery(c, "slot")
	if !ok {
		return
	}
	area, ok := intQuery(c, "area")
	if !ok {
		return
	}
	if err := h.Venue.QueryAvailability(c.Request.Context(), c.Query("date"), slot, area); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Venue.State())
}

type batchAvailabilityRequest struct {
	Queries []backend.AvailabilityQuery `json:"queries"`
}

// PostBatchAvailability queries several slots and ANDs the result.
func (h *Handler) PostBatchAvailability(c *gin.Context) {
	var req batchAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if err := h.Venue.QueryBatchAvailability(c.Request.Context(), req.Queries); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Venue.State())
}

// SelectSeat selects an available seat.
func (h *Handler) SelectSeat(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Venue.SelectSeat(id); err != nil {
		fail(c, err)
		return
	}
	seat, _ := h.Venue.SelectedSeat()
	c.JSON(http.StatusOK, gin.H{"seat": seat})
}

// ClearSelection deselects the selected seat.
func (h *Handler) ClearSelection(c *gin.Context) {
	h.Venue.ClearSelection()
	c.Status(http.StatusNoContent)
}
