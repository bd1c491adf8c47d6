package booking

import (
	"context"

	"go.uber.org/zap"

	"meeting-room-backend/internal/model"
)

// Join adds the actor to an approved reservation's attendance set. Joining is only
// possible strictly before the reservation starts. Joining twice has no further effect.
func (s *Service) Join(ctx context.Context, actor Actor, id uint) error {
	r, err := s.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if r.State != model.StateApproved {
		return ErrApprovalRequired
	}
	if !s.Now().Before(r.StartAt) {
		return ErrMeetingAlreadyStarted
	}

	if err := s.attendance.Add(ctx, id, actor.Username, r.EndAt.Add(s.retention)); err != nil {
		return storageErr(err)
	}
	s.log.Info("attendee joined", zap.Uint("reservation_id", id), zap.String("username", actor.Username))
	return nil
}

// MembersOf returns the usernames that joined the reservation.
func (s *Service) MembersOf(ctx context.Context, id uint) ([]string, error) {
	if _, err := s.GetReservation(ctx, id); err != nil {
		return nil, err
	}
	members, err := s.attendance.Members(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return members, nil
}
