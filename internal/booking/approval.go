package booking

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"meeting-room-backend/internal/events"
	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

// Resolve approves or rejects a pending reservation and stores the reason verbatim.
// A reservation that is already approved or rejected is left untouched.
func (s *Service) Resolve(ctx context.Context, actor Actor, id uint, decision model.Decision, reason string) (*model.Reservation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	target, err := decision.State()
	if err != nil {
		return nil, invalid("%v", err)
	}
	if len(reason) > 256 {
		return nil, invalid("reason is longer than 256 bytes")
	}

	r, err := s.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetRoom(ctx, r.RoomID); err != nil {
		return nil, err
	}
	if r.State != model.StatePending {
		return nil, ErrAlreadyResolved
	}

	if err := s.store.TransitionReservation(ctx, id, model.StatePending, target, reason); err != nil {
		if errors.Is(err, store.ErrStateChanged) {
			return nil, ErrAlreadyResolved
		}
		return nil, storageErr(err)
	}
	r.State = target
	r.Reason = reason

	s.log.Info("reservation resolved",
		zap.Uint("reservation_id", id),
		zap.String("state", string(target)),
		zap.Uint("admin_id", actor.UserID))
	s.publish(ctx, events.RoutingReservationResolved, r)
	if s.notifier != nil {
		s.notifier.Dispatch(r.ID)
	}
	return r, nil
}
