package booking

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

// RoomInput carries the editable fields of a room.
type RoomInput struct {
	Name       string
	Address    string
	Facilities []string
}

func (in RoomInput) toRoom() (*model.Room, error) {
	name := strings.TrimSpace(in.Name)
	address := strings.TrimSpace(in.Address)
	if name == "" {
		return nil, invalid("room name must not be empty")
	}
	if address == "" {
		return nil, invalid("room address must not be empty")
	}
	if len(name) > 64 {
		return nil, invalid("room name is longer than 64 bytes")
	}
	if len(address) > 256 {
		return nil, invalid("room address is longer than 256 bytes")
	}
	facilities := model.NewFacilities(in.Facilities)
	if err := facilities.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if len(strings.Join(facilities, model.FacilitySeparator)) > 256 {
		return nil, invalid("facility list is longer than 256 bytes")
	}
	return &model.Room{Name: name, Address: address, Facilities: facilities}, nil
}

func (s *Service) CreateRoom(ctx context.Context, actor Actor, in RoomInput) (*model.Room, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	room, err := in.toRoom()
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, storageErr(err)
	}
	s.log.Info("room created", zap.Uint("room_id", room.ID), zap.String("name", room.Name))
	return room, nil
}

func (s *Service) UpdateRoom(ctx context.Context, actor Actor, id uint, in RoomInput) (*model.Room, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	room, err := in.toRoom()
	if err != nil {
		return nil, err
	}
	room.ID = id
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, storageErr(err)
	}
	s.log.Info("room updated", zap.Uint("room_id", id))
	return s.GetRoom(ctx, id)
}

// DeleteRoom removes the room immediately. Its reservations are left in place.
func (s *Service) DeleteRoom(ctx context.Context, actor Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeleteRoom(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoomNotFound
		}
		return storageErr(err)
	}
	s.log.Info("room deleted", zap.Uint("room_id", id))
	return nil
}

func (s *Service) GetRoom(ctx context.Context, id uint) (*model.Room, error) {
	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, storageErr(err)
	}
	return room, nil
}

func (s *Service) ListRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return rooms, nil
}
