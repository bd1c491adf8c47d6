package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/mw"
)

type roomRequest struct {
	Name       string   `json:"name" binding:"required"`
	Address    string   `json:"address" binding:"required"`
	Facilities []string `json:"facilities"`
}

func (r roomRequest) input() booking.RoomInput {
	return booking.RoomInput{Name: r.Name, Address: r.Address, Facilities: r.Facilities}
}

// ListRooms handles GET /api/rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.svc.ListRooms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, rooms)
}

// GetRoom handles GET /api/rooms/:id.
func (h *Handler) GetRoom(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	room, err := h.svc.GetRoom(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, room)
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	room, err := h.svc.CreateRoom(c.Request.Context(), mw.ActorFrom(c), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateRooms()
	respond(c, http.StatusCreated, room)
}

// UpdateRoom handles PUT /api/rooms/:id.
func (h *Handler) UpdateRoom(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	room, err := h.svc.UpdateRoom(c.Request.Context(), mw.ActorFrom(c), id, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateRooms()
	respond(c, http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/rooms/:id.
func (h *Handler) DeleteRoom(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteRoom(c.Request.Context(), mw.ActorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateRooms()
	respond(c, http.StatusOK, nil)
}

// RoomStatusBoard handles GET /api/rooms/status.
func (h *Handler) RoomStatusBoard(c *gin.Context) {
	board, err := h.svc.StatusBoard(c.Request.Context(), h.svc.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, board)
}

type busyResponse struct {
	RoomID uint      `json:"roomId"`
	Busy   bool      `json:"busy"`
	At     time.Time `json:"at"`
}

// RoomBusyNow handles GET /api/rooms/:id/busy.
func (h *Handler) RoomBusyNow(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	now := h.svc.Now()
	busy, err := h.svc.RoomBusyNow(c.Request.Context(), id, now)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, busyResponse{RoomID: id, Busy: busy, At: now})
}
