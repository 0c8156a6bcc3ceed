package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-booking-companion/internal/partner"
)

// SearchPartners searches users to invite. Without ?q= it returns the state of the
// type-ahead search fed by PutPartnerQuery.
func (h *Handler) SearchPartners(c *gin.Context) {
	q, ok := c.GetQuery("q")
	if !ok {
		c.JSON(http.StatusOK, h.Partners.SearchState())
		return
	}
	users, err := h.Partners.Search(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type partnerQuery struct {
	Query *string `json:"query" binding:"required"`
}

// PutPartnerQuery reports a keystroke in the invite box. The search runs once the
// user pauses typing; poll GET /partners/search for the results.
func (h *Handler) PutPartnerQuery(c *gin.Context) {
	var req partnerQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "query is required")
		return
	}
	h.Partners.SearchDebounced(*req.Query)
	c.JSON(http.StatusAccepted, h.Partners.SearchState())
}

// GetBookedPartners lists who holds a seat in the latest availability query, optionally
// filtered by name (?q=) and table (?table=).
func (h *Handler) GetBookedPartners(c *gin.Context) {
	var partners []partner.Booked
	if table := c.Query("table"); table != "" {
		partners = h.Partners.BookedAtTable(table)
	} else {
		partners = h.Partners.Booked()
	}
	c.JSON(http.StatusOK, gin.H{"partners": partner.FilterByName(partners, c.Query("q"))})
}

// GetPartnerTable returns one table's seats in display order with the partners booked there.
func (h *Handler) GetPartnerTable(c *gin.Context) {
	table := c.Param("table")
	c.JSON(http.StatusOK, gin.H{
		"table":    table,
		"seats":    h.Partners.TableSeats(table),
		"partners": h.Partners.BookedAtTable(table),
	})
}
