package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/store"
)

// HealthCheck probes one backing service for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     *booking.Service
	store   store.Store
	cache   *cache.Cache
	webpush *webpush.Options
	loc     *time.Location
	checks  []HealthCheck
	log     *zap.Logger
}

// NewHandler creates a new API handler. roomCache is flushed whenever a room changes.
func NewHandler(svc *booking.Service, s store.Store, roomCache *cache.Cache, opts Options) *Handler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:     svc,
		store:   s,
		cache:   roomCache,
		webpush: opts.Webpush,
		loc:     loc,
		checks:  opts.Health,
		log:     log,
	}
}

func (h *Handler) invalidateRooms() {
	if h.cache != nil {
		h.cache.Flush()
	}
}
