package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"seat-booking-companion/config"
	"seat-booking-companion/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, d Deps) *gin.Engine {
	r := gin.Default()

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		corsCfg.ExposeHeaders = []string{"X-Cache"}
		r.Use(cors.New(corsCfg))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	caching := responses.Handler()

	handler := NewHandler(d, responses)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/session", handler.GetSession)
		api.POST("/session/login", handler.Login)
		api.POST("/session/feishu", handler.LoginFeishu)
		api.DELETE("/session", handler.Logout)

		api.GET("/areas", caching, handler.GetAreas)
		api.GET("/timeslots", caching, handler.GetTimeSlots)
		api.GET("/seats", handler.GetSeats)
		api.GET("/seats/availability", handler.GetAvailability)
		api.POST("/seats/availability/batch", handler.PostBatchAvailability)
		api.POST("/seats/:id/select", handler.SelectSeat)
		api.DELETE("/seats/selection", handler.ClearSelection)

		api.GET("/bookings", handler.GetBookings)
		api.GET("/bookings/groups", handler.GetBookingGroups)
		api.POST("/bookings", handler.CreateBooking)
		api.DELETE("/bookings/:id", handler.CancelBooking)
		api.PUT("/bookings/swap-seat", handler.SwapSeat)
		api.GET("/credits", handler.GetCredits)
		api.GET("/transactions", handler.GetTransactions)

		api.GET("/invitations", handler.GetInvitations)
		api.POST("/invitations/:id/accept", handler.AcceptInvitation)
		api.POST("/invitations/:id/decline", handler.DeclineInvitation)
		api.PUT("/visibility", handler.PutVisibility)

		api.GET("/partners/search", handler.SearchPartners)
		api.GET("/partners/booked", handler.GetBookedPartners)
		api.PUT("/partners/search", handler.PutPartnerQuery)
		api.GET("/partners/tables/:table", handler.GetPartnerTable)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		admin := api.Group("/admin")
		admin.POST("/areas", handler.CreateArea)
		admin.DELETE("/areas/:id", handler.DeleteArea)
		admin.POST("/seats", handler.CreateSeats)
		admin.DELETE("/seats/:id", handler.DeleteSeat)
		admin.POST("/layout", handler.ProvisionLayout)
	}

	return r
}
