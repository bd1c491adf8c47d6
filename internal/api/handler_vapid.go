package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetVAPIDPublicKey returns the VAPID public key browsers subscribe with.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, Envelope{
			Status:  StatusStorageUnavailable,
			Message: "push notifications are not configured",
		})
		return
	}
	respond(c, http.StatusOK, gin.H{"publicKey": h.webpush.VAPIDPublicKey})
}

// Healthz reports whether every backing service answers.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", check.Name), zap.Error(err))
			status[check.Name] = err.Error()
			healthy = false
			continue
		}
		status[check.Name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, Envelope{
			Status:  StatusStorageUnavailable,
			Message: "unhealthy",
			Payload: status,
		})
		return
	}
	respond(c, http.StatusOK, status)
}
