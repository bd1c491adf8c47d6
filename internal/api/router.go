package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/mw"
	"meeting-room-backend/internal/store"
)

// Options configures the router's middleware and handlers.
type Options struct {
	RateLimit      float64
	RateLimitBurst int
	CacheTTL       time.Duration
	// Location interprets request timestamps that carry no offset.
	Location *time.Location
	Webpush  *webpush.Options
	Health   []HealthCheck
	Logger   *zap.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(svc *booking.Service, s store.Store, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(mw.RequestLogger(opts.Logger), gin.Recovery())

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL+time.Minute)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	handler := NewHandler(svc, s, cacheStore, opts)

	r.GET("/healthz", handler.Healthz)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(opts.RateLimit), opts.RateLimitBurst))
	api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

	authed := api.Group("")
	authed.Use(mw.Identity())
	{
		authed.GET("/rooms", caching, handler.ListRooms)
		authed.POST("/rooms", handler.CreateRoom)
		authed.GET("/rooms/status", handler.RoomStatusBoard)
		authed.GET("/rooms/:id", caching, handler.GetRoom)
		authed.PUT("/rooms/:id", handler.UpdateRoom)
		authed.DELETE("/rooms/:id", handler.DeleteRoom)
		authed.GET("/rooms/:id/busy", handler.RoomBusyNow)
		authed.POST("/rooms/:id/reservations", handler.RequestBooking)
		authed.GET("/rooms/:id/reservations", handler.ListRoomReservations)

		authed.GET("/reservations", handler.ListReservations)
		authed.GET("/reservations/:id", handler.GetReservation)
		authed.POST("/reservations/:id/resolve", handler.ResolveReservation)
		authed.POST("/reservations/:id/join", handler.JoinReservation)
		authed.GET("/reservations/:id/attendees", handler.ListAttendees)

		authed.GET("/me/reservations", handler.MyReservations)
		authed.PUT("/me/push-subscriptions", handler.PutPushSubscription)
		authed.DELETE("/me/push-subscriptions", handler.DeletePushSubscription)
	}

	return r
}
