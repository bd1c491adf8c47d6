package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"meeting-room-backend/internal/events"
	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

// liveStates are the states that hold a time slot.
var liveStates = []model.ApprovalState{model.StatePending, model.StateApproved}

// BookingRequest describes the slot a user asks for.
type BookingRequest struct {
	Start     time.Time
	End       time.Time
	Headcount int
	Summary   string
}

func (req BookingRequest) validate() error {
	if !req.Start.Before(req.End) {
		return invalid("start must be before end")
	}
	if req.Headcount <= 0 {
		return invalid("headcount must be positive")
	}
	if len(req.Summary) > 256 {
		return invalid("summary is longer than 256 bytes")
	}
	return nil
}

// ReservationView decorates a reservation with its room and current attendees.
type ReservationView struct {
	model.Reservation
	RoomName    string   `json:"roomName"`
	RoomAddress string   `json:"roomAddress"`
	Attendees   []string `json:"attendees,omitempty"`
}

// RequestBooking records a pending reservation unless the room is missing or the window
// overlaps a reservation of the same room that has not been rejected. The check and the
// insert run under the room's lock and inside one transaction that also row-locks the room.
func (s *Service) RequestBooking(ctx context.Context, actor Actor, roomID uint, req BookingRequest) (*model.Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	window := model.Window{Start: req.Start, End: req.End}.UTC()

	unlock := s.locks.lock(roomID)
	defer unlock()

	var created *model.Reservation
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.LockRoom(ctx, roomID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		live, err := tx.ListReservations(ctx, store.ReservationFilter{RoomID: roomID, States: liveStates})
		if err != nil {
			return err
		}
		for _, existing := range live {
			if existing.Window().Overlaps(window) {
				s.log.Info("booking rejected: overlapping reservation",
					zap.Uint("room_id", roomID),
					zap.Uint("conflicts_with", existing.ID))
				return ErrTimeSlotConflict
			}
		}

		r := &model.Reservation{
			OwnerID:   actor.UserID,
			OwnerName: actor.Username,
			RoomID:    roomID,
			StartAt:   window.Start,
			EndAt:     window.End,
			Headcount: req.Headcount,
			State:     model.StatePending,
			Summary:   req.Summary,
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		switch {
		case isKnown(err):
			return nil, err
		case isExclusionViolation(err):
			return nil, ErrTimeSlotConflict
		default:
			return nil, storageErr(err)
		}
	}

	s.log.Info("reservation requested",
		zap.Uint("reservation_id", created.ID),
		zap.Uint("room_id", roomID),
		zap.Uint("owner_id", actor.UserID),
		zap.Time("start", created.StartAt),
		zap.Time("end", created.EndAt))
	s.publish(ctx, events.RoutingReservationCreated, created)
	return created, nil
}

func (s *Service) GetReservation(ctx context.Context, id uint) (*model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, storageErr(err)
	}
	return r, nil
}

// ListForRoom returns every reservation of the room in insertion order.
func (s *Service) ListForRoom(ctx context.Context, roomID uint) ([]model.Reservation, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	reservations, err := s.store.ListReservations(ctx, store.ReservationFilter{RoomID: roomID})
	if err != nil {
		return nil, storageErr(err)
	}
	return reservations, nil
}

// ListAll is the administrator's review list: every reservation with its room.
func (s *Service) ListAll(ctx context.Context, actor Actor) ([]ReservationView, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reservations, err := s.store.ListReservations(ctx, store.ReservationFilter{})
	if err != nil {
		return nil, storageErr(err)
	}
	return s.decorate(ctx, reservations, false)
}

// decorate attaches room names and, when withAttendees is set, attendance sets.
func (s *Service) decorate(ctx context.Context, reservations []model.Reservation, withAttendees bool) ([]ReservationView, error) {
	roomIDs := make([]uint, 0, len(reservations))
	seen := make(map[uint]struct{}, len(reservations))
	for _, r := range reservations {
		if _, ok := seen[r.RoomID]; !ok {
			seen[r.RoomID] = struct{}{}
			roomIDs = append(roomIDs, r.RoomID)
		}
	}
	rooms, err := s.store.RoomsByID(ctx, roomIDs)
	if err != nil {
		return nil, storageErr(err)
	}

	views := make([]ReservationView, 0, len(reservations))
	for _, r := range reservations {
		view := ReservationView{Reservation: r}
		if room, ok := rooms[r.RoomID]; ok {
			view.RoomName = room.Name
			view.RoomAddress = room.Address
		}
		if withAttendees {
			members, err := s.attendance.Members(ctx, r.ID)
			if err != nil {
				return nil, storageErr(err)
			}
			view.Attendees = members
		}
		views = append(views, view)
	}
	return views, nil
}
