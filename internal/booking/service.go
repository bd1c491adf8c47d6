package booking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"meeting-room-backend/internal/attendance"
	"meeting-room-backend/internal/events"
	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

// Notifier receives the IDs of reservations whose owners should be told about a decision.
type Notifier interface {
	Dispatch(reservationID uint)
}

// Service implements the room catalog, the reservation ledger, the approval workflow,
// attendance rules and availability queries.
type Service struct {
	store      store.Store
	attendance attendance.Store
	publisher  events.Publisher
	notifier   Notifier
	log        *zap.Logger
	now        func() time.Time
	retention  time.Duration
	locks      *roomLocks
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used by join and availability rules.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAttendanceRetention sets how long an attendance set outlives its reservation.
func WithAttendanceRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// NewService creates the booking service.
func NewService(st store.Store, att attendance.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		attendance: att,
		publisher:  events.Nop{},
		log:        zap.NewNop(),
		now:        time.Now,
		retention:  time.Hour,
		locks:      newRoomLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, routingKey string, r *model.Reservation) {
	evt := events.ReservationEvent{
		ReservationID: r.ID,
		RoomID:        r.RoomID,
		OwnerID:       r.OwnerID,
		State:         string(r.State),
		StartAt:       r.StartAt,
		EndAt:         r.EndAt,
		Reason:        r.Reason,
		OccurredAt:    s.Now(),
	}
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		s.log.Warn("failed to publish reservation event",
			zap.String("routing_key", routingKey),
			zap.Uint("reservation_id", r.ID),
			zap.Error(err))
	}
}

// roomLocks hands out one mutex per room so that overlap checks and inserts for the
// same room never interleave inside this process.
type roomLocks struct {
	mu    sync.Mutex
	locks map[uint]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[uint]*roomLock)}
}

// lock blocks until the room's mutex is held and returns its release function.
func (l *roomLocks) lock(roomID uint) func() {
	l.mu.Lock()
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}
