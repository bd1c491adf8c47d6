package mw

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"meeting-room-backend/internal/booking"
)

// Headers set by the upstream identity provider.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
	HeaderAdmin    = "X-User-Admin"
)

const actorKey = "actor"

// Identity resolves the caller from the trusted identity headers and stores it on the
// context. Requests without a usable identity are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromHeaders(c.Request.Header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
				Status:  StatusUnauthenticated,
				Message: "missing or invalid identity",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFromHeaders(h http.Header) (booking.Actor, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(h.Get(HeaderUserID)), 10, 64)
	if err != nil || id == 0 {
		return booking.Actor{}, false
	}
	username := strings.TrimSpace(h.Get(HeaderUsername))
	if username == "" {
		return booking.Actor{}, false
	}
	admin, _ := strconv.ParseBool(h.Get(HeaderAdmin))
	return booking.Actor{UserID: uint(id), Username: username, Admin: admin}, true
}

// ActorFrom returns the caller stored by Identity.
func ActorFrom(c *gin.Context) booking.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(booking.Actor); ok {
			return actor
		}
	}
	return booking.Actor{}
}
