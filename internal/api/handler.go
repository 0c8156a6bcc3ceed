package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/booking"
	"seat-booking-companion/internal/gateway"
	"seat-booking-companion/internal/invitation"
	"seat-booking-companion/internal/mw"
	"seat-booking-companion/internal/partner"
	"seat-booking-companion/internal/session"
	"seat-booking-companion/internal/store"
	"seat-booking-companion/internal/venue"
)

// Admin is the slice of the backend behind the admin routes.
type Admin interface {
	CreateArea(ctx context.Context, req backend.CreateAreaRequest) (*backend.Area, error)
	DeleteArea(ctx context.Context, id int64) error
	CreateSeats(ctx context.Context, seats []backend.CreateSeatRequest) error
	DeleteSeat(ctx context.Context, id int64) error
	ProvisionLayout(ctx context.Context, l *backend.Layout) ([]backend.Area, error)
}

// Deps are the stores the local API exposes.
type Deps struct {
	Store       store.Store
	Session     *session.Store
	Venue       *venue.Store
	Bookings    *booking.Store
	Partners    *partner.Store
	Invitations *invitation.Poller
	Admin       Admin
	Webpush     *webpush.Options
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	cache *mw.ResponseCache
}

// NewHandler creates a new API handler. rc may be nil.
func NewHandler(d Deps, rc *mw.ResponseCache) *Handler {
	return &Handler{Deps: d, cache: rc}
}

func (h *Handler) invalidate(prefixes ...string) {
	if h.cache == nil {
		return
	}
	for _, p := range prefixes {
		h.cache.Invalidate(p)
	}
}

func (h *Handler) flushCache() {
	if h.cache != nil {
		h.cache.Flush()
	}
}

// fail writes {"error": message}. Backend failures keep their status when they have
// one; an unreachable backend becomes 502.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var gwErr *gateway.Error
	switch {
	case errors.As(err, &gwErr):
		switch {
		case gwErr.Status >= 400:
			status = gwErr.Status
		case gwErr.Kind == gateway.KindTimeout:
			status = http.StatusGatewayTimeout
		case gwErr.Kind == gateway.KindApplication:
			status = http.StatusUnprocessableEntity
		default:
			status = http.StatusBadGateway
		}
	case isValidation(err):
		status = http.StatusBadRequest
	}
	if status >= 500 {
		log.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": gateway.Message(err)})
}

func isValidation(err error) bool {
	for _, target := range []error{
		venue.ErrEmptyDate,
		venue.ErrNoQueries,
		venue.ErrSeatNotFound,
		venue.ErrSeatNotSelectable,
		booking.ErrNoSeat,
		booking.ErrNoSlots,
		booking.ErrTooManySlots,
		booking.ErrTooManyPartners,
		session.ErrMissingToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
