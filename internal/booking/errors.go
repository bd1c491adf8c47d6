package booking

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrTimeSlotConflict      = errors.New("room is already reserved for an overlapping time slot")
	ErrApprovalRequired      = errors.New("reservation has not been approved")
	ErrMeetingAlreadyStarted = errors.New("meeting has already started")
	ErrAlreadyResolved       = errors.New("reservation has already been resolved")
	ErrRecordNotFound        = errors.New("no matching records")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrForbidden             = errors.New("administrator privileges required")
	ErrInvalidInput          = errors.New("invalid input")
)

// exclusionViolation is the SQLSTATE postgres raises when an EXCLUDE constraint rejects a row.
const exclusionViolation = "23P01"

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// isKnown reports whether err already carries one of the package's error kinds.
func isKnown(err error) bool {
	for _, kind := range []error{
		ErrRoomNotFound, ErrReservationNotFound, ErrTimeSlotConflict, ErrApprovalRequired,
		ErrMeetingAlreadyStarted, ErrAlreadyResolved, ErrRecordNotFound, ErrStorageUnavailable,
		ErrForbidden, ErrInvalidInput,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}
