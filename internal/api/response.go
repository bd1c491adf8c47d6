package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/mw"
)

// Envelope is the body of every API response.
type Envelope = mw.Envelope

// Envelope status codes.
const (
	StatusOK                    = 0
	StatusInvalidInput          = 1
	StatusForbidden             = 2
	StatusRoomNotFound          = 3
	StatusReservationNotFound   = 4
	StatusTimeSlotConflict      = 5
	StatusApprovalRequired      = 6
	StatusMeetingAlreadyStarted = 7
	StatusAlreadyResolved       = 8
	StatusRecordNotFound        = 9
	StatusStorageUnavailable    = 10
	StatusUnauthenticated       = mw.StatusUnauthenticated
	StatusRateLimited           = mw.StatusRateLimited
)

type errorKind struct {
	err    error
	status int
	http   int
}

var errorKinds = []errorKind{
	{booking.ErrInvalidInput, StatusInvalidInput, http.StatusBadRequest},
	{booking.ErrForbidden, StatusForbidden, http.StatusForbidden},
	{booking.ErrRoomNotFound, StatusRoomNotFound, http.StatusNotFound},
	{booking.ErrReservationNotFound, StatusReservationNotFound, http.StatusNotFound},
	{booking.ErrTimeSlotConflict, StatusTimeSlotConflict, http.StatusConflict},
	{booking.ErrApprovalRequired, StatusApprovalRequired, http.StatusConflict},
	{booking.ErrMeetingAlreadyStarted, StatusMeetingAlreadyStarted, http.StatusConflict},
	{booking.ErrAlreadyResolved, StatusAlreadyResolved, http.StatusConflict},
	{booking.ErrRecordNotFound, StatusRecordNotFound, http.StatusNotFound},
	{booking.ErrStorageUnavailable, StatusStorageUnavailable, http.StatusServiceUnavailable},
}

func respond(c *gin.Context, httpStatus int, payload any) {
	c.JSON(httpStatus, Envelope{Status: StatusOK, Payload: payload})
}

// fail writes the envelope for err. Storage failures hide their cause from the client.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, kind := range errorKinds {
		if !errors.Is(err, kind.err) {
			continue
		}
		message := err.Error()
		if kind.status == StatusStorageUnavailable {
			h.log.Error("storage failure", zap.String("path", c.FullPath()), zap.Error(err))
			message = kind.err.Error()
		}
		c.AbortWithStatusJSON(kind.http, Envelope{Status: kind.status, Message: message})
		return
	}

	h.log.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{
		Status:  StatusStorageUnavailable,
		Message: "internal error",
	})
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Status: StatusInvalidInput, Message: message})
}

// idParam parses a positive numeric path parameter, answering 400 when it is not one.
func (h *Handler) idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
