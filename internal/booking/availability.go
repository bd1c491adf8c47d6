package booking

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

// RoomStatus pairs a room with its occupancy at the time of the query.
type RoomStatus struct {
	model.Room
	Busy bool `json:"busy"`
}

// RoomBusyNow reports whether an approved reservation of the room contains now.
func (s *Service) RoomBusyNow(ctx context.Context, roomID uint, now time.Time) (bool, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return false, err
	}
	approved, err := s.store.ListReservations(ctx, store.ReservationFilter{
		RoomID: roomID,
		States: []model.ApprovalState{model.StateApproved},
	})
	if err != nil {
		return false, storageErr(err)
	}
	return anyContains(approved, now), nil
}

// StatusBoard lists every room with its busy flag at now.
func (s *Service) StatusBoard(ctx context.Context, now time.Time) ([]RoomStatus, error) {
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := s.store.ListReservations(ctx, store.ReservationFilter{
		States: []model.ApprovalState{model.StateApproved},
	})
	if err != nil {
		return nil, storageErr(err)
	}

	byRoom := make(map[uint][]model.Reservation)
	for _, r := range approved {
		byRoom[r.RoomID] = append(byRoom[r.RoomID], r)
	}

	board := make([]RoomStatus, 0, len(rooms))
	for _, room := range rooms {
		board = append(board, RoomStatus{Room: room, Busy: anyContains(byRoom[room.ID], now)})
	}
	return board, nil
}

func anyContains(reservations []model.Reservation, now time.Time) bool {
	for _, r := range reservations {
		if r.Window().Contains(now) {
			return true
		}
	}
	return false
}

// MyReservations returns the reservations the actor owns or has joined, in insertion
// order, each with its room name and attendee list.
func (s *Service) MyReservations(ctx context.Context, actor Actor) ([]ReservationView, error) {
	owned, err := s.store.ListReservations(ctx, store.ReservationFilter{OwnerID: actor.UserID})
	if err != nil {
		return nil, storageErr(err)
	}

	joinedIDs, err := s.attendance.ReservationsOf(ctx, actor.Username)
	if err != nil {
		return nil, storageErr(err)
	}

	ownedIDs := make(map[uint]struct{}, len(owned))
	for _, r := range owned {
		ownedIDs[r.ID] = struct{}{}
	}
	candidates := make([]uint, 0, len(joinedIDs))
	for _, id := range joinedIDs {
		if _, ok := ownedIDs[id]; !ok {
			candidates = append(candidates, id)
		}
	}

	joined, err := s.store.ListReservations(ctx, store.ReservationFilter{IDs: candidates})
	if err != nil {
		return nil, storageErr(err)
	}

	all := owned
	for _, r := range joined {
		member, err := s.attendance.IsMember(ctx, r.ID, actor.Username)
		if err != nil {
			return nil, storageErr(err)
		}
		if !member {
			s.forget(ctx, actor.Username, r.ID)
			continue
		}
		all = append(all, r)
	}
	if len(all) == 0 {
		return []ReservationView{}, nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return s.decorate(ctx, all, true)
}

// forget prunes an expired membership from the user's index; failures only cost a retry later.
func (s *Service) forget(ctx context.Context, username string, id uint) {
	if err := s.attendance.Forget(ctx, username, id); err != nil {
		s.log.Warn("failed to prune attendance index",
			zap.String("username", username),
			zap.Uint("reservation_id", id),
			zap.Error(err))
	}
}
