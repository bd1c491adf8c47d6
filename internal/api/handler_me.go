package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/mw"
	"meeting-room-backend/internal/store"
)

// MyReservations handles GET /api/me/reservations.
func (h *Handler) MyReservations(c *gin.Context) {
	views, err := h.svc.MyReservations(c.Request.Context(), mw.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, views)
}

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutPushSubscription handles PUT /api/me/push-subscriptions. Re-registering an
// endpoint replaces its keys and owner.
func (h *Handler) PutPushSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		UserID:   mw.ActorFrom(c).UserID,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.UpsertPushSubscription(c.Request.Context(), &sub); err != nil {
		h.fail(c, fmt.Errorf("%w: %w", booking.ErrStorageUnavailable, err))
		return
	}
	respond(c, http.StatusCreated, gin.H{"endpoint": sub.Endpoint})
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeletePushSubscription handles DELETE /api/me/push-subscriptions.
func (h *Handler) DeletePushSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	err := h.store.DeletePushSubscription(c.Request.Context(), mw.ActorFrom(c).UserID, req.Endpoint)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.fail(c, booking.ErrRecordNotFound)
		return
	case err != nil:
		h.fail(c, fmt.Errorf("%w: %w", booking.ErrStorageUnavailable, err))
		return
	}
	respond(c, http.StatusOK, nil)
}
