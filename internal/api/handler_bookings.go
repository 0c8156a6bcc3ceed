package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-booking-companion/internal/backend"
)

// GetBookings returns the booking list. ?upcoming=1 drops slots that already started.
func (h *Handler) GetBookings(c *gin.Context) {
	if err := h.Bookings.LoadWithCache(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	st := h.Bookings.State()
	if c.Query("upcoming") == "1" {
		st.Bookings = h.Bookings.Upcoming()
	}
	c.JSON(http.StatusOK, st)
}

// GetBookingGroups returns the bookings grouped by booking group.
func (h *Handler) GetBookingGroups(c *gin.Context) {
	if err := h.Bookings.LoadWithCache(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": h.Bookings.Groups()})
}

// CreateBooking books the requested seat. Without a seat id the venue's selected seat is used.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req backend.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.SeatID == 0 {
		if seat, ok := h.Venue.SelectedSeat(); ok {
			req.SeatID = seat.ID
			if req.AreaID == 0 {
				req.AreaID = seat.AreaID
			}
		}
	}

	resp, err := h.Bookings.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	h.Venue.ClearSelection()
	c.JSON(http.StatusCreated, resp)
}

// CancelBooking cancels one booking.
func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Bookings.Cancel(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SwapSeat moves a booking to another seat.
func (h *Handler) SwapSeat(c *gin.Context) {
	var req backend.SwapSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	resp, err := h.Bookings.SwapSeat(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetCredits refreshes and returns the credit balance.
func (h *Handler) GetCredits(c *gin.Context) {
	h.Bookings.LoadCredits(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"credits": h.Bookings.State().Credits})
}

// GetTransactions refreshes and returns the credit transactions.
func (h *Handler) GetTransactions(c *gin.Context) {
	h.Bookings.LoadTransactions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"transactions": h.Bookings.State().Transactions})
}
