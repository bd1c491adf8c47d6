package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/mw"
)

// timeLayouts are accepted for reservation bounds. Layouts without an offset are read in
// the server's configured time zone.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

type bookingRequest struct {
	Start     string `json:"start" binding:"required"`
	End       string `json:"end" binding:"required"`
	Headcount int    `json:"headcount"`
	Summary   string `json:"summary"`
}

// RequestBooking handles POST /api/rooms/:id/reservations.
func (h *Handler) RequestBooking(c *gin.Context) {
	roomID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	start, err := parseTime(req.Start, h.loc)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	end, err := parseTime(req.End, h.loc)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	r, err := h.svc.RequestBooking(c.Request.Context(), mw.ActorFrom(c), roomID, booking.BookingRequest{
		Start:     start,
		End:       end,
		Headcount: req.Headcount,
		Summary:   req.Summary,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, r)
}

// ListRoomReservations handles GET /api/rooms/:id/reservations.
func (h *Handler) ListRoomReservations(c *gin.Context) {
	roomID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	reservations, err := h.svc.ListForRoom(c.Request.Context(), roomID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, reservations)
}

// ListReservations handles GET /api/reservations, the administrator's review list.
func (h *Handler) ListReservations(c *gin.Context) {
	views, err := h.svc.ListAll(c.Request.Context(), mw.ActorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, views)
}

// GetReservation handles GET /api/reservations/:id.
func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.svc.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, r)
}

type resolveRequest struct {
	Decision model.Decision `json:"decision" binding:"required"`
	Reason   string         `json:"reason"`
}

// ResolveReservation handles POST /api/reservations/:id/resolve.
func (h *Handler) ResolveReservation(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	r, err := h.svc.Resolve(c.Request.Context(), mw.ActorFrom(c), id, req.Decision, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, r)
}

type attendeesResponse struct {
	ReservationID uint     `json:"reservationId"`
	Attendees     []string `json:"attendees"`
}

// JoinReservation handles POST /api/reservations/:id/join.
func (h *Handler) JoinReservation(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Join(c.Request.Context(), mw.ActorFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	h.writeAttendees(c, id)
}

// ListAttendees handles GET /api/reservations/:id/attendees.
func (h *Handler) ListAttendees(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	h.writeAttendees(c, id)
}

func (h *Handler) writeAttendees(c *gin.Context, id uint) {
	members, err := h.svc.MembersOf(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, attendeesResponse{ReservationID: id, Attendees: members})
}
