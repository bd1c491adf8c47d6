package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meeting-room-backend/internal/model"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStateChanged is returned when a conditional update matched no row because
	// the reservation left the expected state.
	ErrStateChanged = errors.New("reservation state changed concurrently")
)

// ReservationFilter narrows ListReservations. Zero values are ignored.
type ReservationFilter struct {
	RoomID  uint
	OwnerID uint
	IDs     []uint
	States  []model.ApprovalState
}

// Store defines the interface for all database operations.
type Store interface {
	// InTx runs fn against a Store bound to a single transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
	DB() *gorm.DB

	CreateRoom(ctx context.Context, room *model.Room) error
	UpdateRoom(ctx context.Context, room *model.Room) error
	DeleteRoom(ctx context.Context, id uint) error
	GetRoom(ctx context.Context, id uint) (*model.Room, error)
	// LockRoom loads the room and holds a row lock until the transaction ends.
	LockRoom(ctx context.Context, id uint) (*model.Room, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	RoomsByID(ctx context.Context, ids []uint) (map[uint]model.Room, error)

	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id uint) (*model.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]model.Reservation, error)
	TransitionReservation(ctx context.Context, id uint, from, to model.ApprovalState, reason string) error

	UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID uint, endpoint string) error
	PushSubscriptionsForUser(ctx context.Context, userID uint) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("failed to create room %q: %w", room.Name, err)
	}
	return nil
}

func (s *gormStore) UpdateRoom(ctx context.Context, room *model.Room) error {
	res := s.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]any{
			"name":       room.Name,
			"address":    room.Address,
			"facilities": room.Facilities,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update room %d: %w", room.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) DeleteRoom(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Room{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete room %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) GetRoom(ctx context.Context, id uint) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

func (s *gormStore) LockRoom(ctx context.Context, id uint) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, id).Error
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

func (s *gormStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *gormStore) RoomsByID(ctx context.Context, ids []uint) (map[uint]model.Room, error) {
	rooms := make(map[uint]model.Room, len(ids))
	if len(ids) == 0 {
		return rooms, nil
	}
	var found []model.Room
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}
	for _, r := range found {
		rooms[r.ID] = r
	}
	return rooms, nil
}

func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create reservation for room %d: %w", r.RoomID, err)
	}
	return nil
}

func (s *gormStore) GetReservation(ctx context.Context, id uint) (*model.Reservation, error) {
	var r model.Reservation
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err, "reservation", id)
	}
	return &r, nil
}

// ListReservations returns matching reservations in insertion order.
func (s *gormStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]model.Reservation, error) {
	q := s.db.WithContext(ctx).Model(&model.Reservation{})
	if filter.RoomID != 0 {
		q = q.Where("room_id = ?", filter.RoomID)
	}
	if filter.OwnerID != 0 {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []model.Reservation{}, nil
		}
		q = q.Where("id IN ?", filter.IDs)
	}
	if len(filter.States) > 0 {
		q = q.Where("state IN ?", filter.States)
	}

	var reservations []model.Reservation
	if err := q.Order("id ASC").Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// TransitionReservation moves a reservation from one state to another only if it is
// still in the expected state.
func (s *gormStore) TransitionReservation(ctx context.Context, id uint, from, to model.ApprovalState, reason string) error {
	res := s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{"state": to, "reason": reason})
	if res.Error != nil {
		return fmt.Errorf("failed to update reservation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

func (s *gormStore) UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, userID uint, endpoint string) error {
	res := s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, userID).
		Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete push subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) PushSubscriptionsForUser(ctx context.Context, userID uint) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch push subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

func notFound(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to fetch %s %d: %w", kind, id, err)
}
