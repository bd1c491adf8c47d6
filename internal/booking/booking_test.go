package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"meeting-room-backend/internal/attendance"
	"meeting-room-backend/internal/events"
	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

var (
	admin = Actor{UserID: 100, Username: "root", Admin: true}
	userX = Actor{UserID: 1, Username: "userx"}
	userY = Actor{UserID: 2, Username: "usery"}
	alice = Actor{UserID: 3, Username: "alice"}
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", "2024-01-01T"+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeClock drives both the service and miniredis, which evaluates EXPIREAT against its own time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
	mr *miniredis.Miniredis
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
	c.mr.SetTime(t)
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() {}

type recordingNotifier struct {
	ids []uint
}

func (n *recordingNotifier) Dispatch(id uint) { n.ids = append(n.ids, id) }

type fixture struct {
	svc       *Service
	db        *gorm.DB
	mr        *miniredis.Miniredis
	clock     *fakeClock
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, gormDB.AutoMigrate(&model.Room{}, &model.Reservation{}, &model.PushSubscription{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		db:        gormDB,
		mr:        mr,
		clock:     &fakeClock{mr: mr},
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	f.svc = NewService(store.NewGormStore(gormDB), attendance.NewRedisStore(client),
		WithClock(f.clock.Now),
		WithPublisher(f.publisher),
		WithNotifier(f.notifier),
		WithAttendanceRetention(30*time.Minute),
	)
	f.clock.Set(at("08:00"))
	return f
}

func (f *fixture) room(t *testing.T, name string) *model.Room {
	t.Helper()
	room, err := f.svc.CreateRoom(context.Background(), admin, RoomInput{Name: name, Address: "HQ", Facilities: []string{"projector"}})
	require.NoError(t, err)
	return room
}

func (f *fixture) book(t *testing.T, who Actor, roomID uint, from, to string) *model.Reservation {
	t.Helper()
	r, err := f.svc.RequestBooking(context.Background(), who, roomID, BookingRequest{Start: at(from), End: at(to), Headcount: 2})
	require.NoError(t, err)
	return r
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")

	r1, err := f.svc.RequestBooking(ctx, userX, room.ID, BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: 5, Summary: "standup"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), r1.ID)
	assert.Equal(t, model.StatePending, r1.State)

	_, err = f.svc.RequestBooking(ctx, userY, room.ID, BookingRequest{Start: at("10:30"), End: at("11:30"), Headcount: 3, Summary: "sync"})
	assert.ErrorIs(t, err, ErrTimeSlotConflict)

	resolved, err := f.svc.Resolve(ctx, admin, r1.ID, model.DecisionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, resolved.State)

	f.clock.Set(at("09:00"))
	require.NoError(t, f.svc.Join(ctx, alice, r1.ID))

	members, err := f.svc.MembersOf(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members)

	assert.Equal(t, []string{events.RoutingReservationCreated, events.RoutingReservationResolved}, f.publisher.keys)
	assert.Equal(t, []uint{r1.ID}, f.notifier.ids)
}

func TestRequestBooking_RoomNotFoundBeforeConflict(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101")
	f.book(t, userX, room.ID, "10:00", "11:00")

	require.NoError(t, f.svc.DeleteRoom(context.Background(), admin, room.ID))

	_, err := f.svc.RequestBooking(context.Background(), userY, room.ID, BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: 1})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = f.svc.RequestBooking(context.Background(), userY, 4242, BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: 1})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRequestBooking_OverlapRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")
	other := f.room(t, "B202")

	pending := f.book(t, userX, room.ID, "10:00", "11:00")

	testCases := []struct {
		name     string
		roomID   uint
		from, to string
		wantErr  error
	}{
		{"identical window", room.ID, "10:00", "11:00", ErrTimeSlotConflict},
		{"overlaps start", room.ID, "09:30", "10:01", ErrTimeSlotConflict},
		{"overlaps end", room.ID, "10:59", "12:00", ErrTimeSlotConflict},
		{"enclosed", room.ID, "10:15", "10:45", ErrTimeSlotConflict},
		{"enclosing", room.ID, "09:00", "12:00", ErrTimeSlotConflict},
		{"other room same window", other.ID, "10:00", "11:00", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RequestBooking(ctx, userY, tc.roomID, BookingRequest{Start: at(tc.from), End: at(tc.to), Headcount: 1})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	// Touching windows share no instant.
	f.book(t, userY, room.ID, "11:00", "12:00")
	f.book(t, userY, room.ID, "09:00", "10:00")

	// Approved reservations keep blocking, rejected ones free the slot.
	_, err := f.svc.Resolve(ctx, admin, pending.ID, model.DecisionApprove, "")
	require.NoError(t, err)
	_, err = f.svc.RequestBooking(ctx, userY, room.ID, BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: 1})
	assert.ErrorIs(t, err, ErrTimeSlotConflict)

	late := f.book(t, userX, room.ID, "13:00", "14:00")
	_, err = f.svc.Resolve(ctx, admin, late.ID, model.DecisionReject, "no")
	require.NoError(t, err)
	replacement := f.book(t, userY, room.ID, "13:30", "14:30")
	assert.Equal(t, model.StatePending, replacement.State)
}

func TestRequestBooking_InvalidInput(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101")

	testCases := []struct {
		name string
		req  BookingRequest
	}{
		{"end before start", BookingRequest{Start: at("11:00"), End: at("10:00"), Headcount: 1}},
		{"empty window", BookingRequest{Start: at("10:00"), End: at("10:00"), Headcount: 1}},
		{"zero headcount", BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: 0}},
		{"negative headcount", BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: -2}},
		{"long summary", BookingRequest{Start: at("10:00"), End: at("11:00"), Headcount: 1, Summary: strings.Repeat("x", 257)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RequestBooking(context.Background(), userX, room.ID, tc.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRequestBooking_ConcurrentOverlapsAdmitOne(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101")

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at("10:00").Add(time.Duration(i) * time.Minute)
			_, err := f.svc.RequestBooking(context.Background(), Actor{UserID: uint(i + 1), Username: fmt.Sprintf("u%d", i)}, room.ID,
				BookingRequest{Start: start, End: start.Add(time.Hour), Headcount: 1})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTimeSlotConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)

	var count int64
	require.NoError(t, f.db.Model(&model.Reservation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")
	r := f.book(t, userX, room.ID, "10:00", "11:00")

	_, err := f.svc.Resolve(ctx, userX, r.ID, model.DecisionApprove, "self-service")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Resolve(ctx, admin, r.ID, model.Decision("maybe"), "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Resolve(ctx, admin, 999, model.DecisionApprove, "")
	assert.ErrorIs(t, err, ErrReservationNotFound)

	rejected, err := f.svc.Resolve(ctx, admin, r.ID, model.DecisionReject, "  <b>room under repair</b> ")
	require.NoError(t, err)
	assert.Equal(t, model.StateRejected, rejected.State)

	stored, err := f.svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRejected, stored.State)
	assert.Equal(t, "  <b>room under repair</b> ", stored.Reason, "reason is stored verbatim")

	_, err = f.svc.Resolve(ctx, admin, r.ID, model.DecisionApprove, "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	stored, err = f.svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRejected, stored.State, "terminal state must not be overwritten")
}

func TestResolve_RoomDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")
	r := f.book(t, userX, room.ID, "10:00", "11:00")
	require.NoError(t, f.svc.DeleteRoom(ctx, admin, room.ID))

	_, err := f.svc.Resolve(ctx, admin, r.ID, model.DecisionApprove, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")
	r := f.book(t, userX, room.ID, "10:00", "11:00")

	assert.ErrorIs(t, f.svc.Join(ctx, alice, 999), ErrReservationNotFound)
	assert.ErrorIs(t, f.svc.Join(ctx, alice, r.ID), ErrApprovalRequired)

	_, err := f.svc.Resolve(ctx, admin, r.ID, model.DecisionApprove, "ok")
	require.NoError(t, err)

	f.clock.Set(at("09:59"))
	require.NoError(t, f.svc.Join(ctx, alice, r.ID))
	require.NoError(t, f.svc.Join(ctx, alice, r.ID))

	members, err := f.svc.MembersOf(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members, "joining twice keeps a single membership")

	ttl := f.mr.TTL("meeting:1:attendees")
	assert.InDelta(t, (91 * time.Minute).Seconds(), ttl.Seconds(), 5,
		"set expires retention after the reservation ends")

	f.clock.Set(at("10:00"))
	assert.ErrorIs(t, f.svc.Join(ctx, userY, r.ID), ErrMeetingAlreadyStarted)
	f.clock.Set(at("10:01"))
	assert.ErrorIs(t, f.svc.Join(ctx, userY, r.ID), ErrMeetingAlreadyStarted)

	rejected := f.book(t, userX, room.ID, "12:00", "13:00")
	_, err = f.svc.Resolve(ctx, admin, rejected.ID, model.DecisionReject, "no")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Join(ctx, alice, rejected.ID), ErrApprovalRequired)

	_, err = f.svc.MembersOf(ctx, 999)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestJoin_StorageUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")
	r := f.book(t, userX, room.ID, "10:00", "11:00")
	_, err := f.svc.Resolve(ctx, admin, r.ID, model.DecisionApprove, "ok")
	require.NoError(t, err)

	f.mr.SetError("ERR simulated outage")
	err = f.svc.Join(ctx, alice, r.ID)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	f.mr.SetError("")
}

func TestRoomBusyNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")
	r := f.book(t, userX, room.ID, "10:00", "11:00")

	busy, err := f.svc.RoomBusyNow(ctx, room.ID, at("10:30"))
	require.NoError(t, err)
	assert.False(t, busy, "pending reservations do not occupy the room")

	_, err = f.svc.Resolve(ctx, admin, r.ID, model.DecisionApprove, "ok")
	require.NoError(t, err)

	testCases := []struct {
		now  string
		busy bool
	}{
		{"09:59", false},
		{"10:00", true},
		{"10:30", true},
		{"10:59", true},
		{"11:00", false},
	}
	for _, tc := range testCases {
		busy, err := f.svc.RoomBusyNow(ctx, room.ID, at(tc.now))
		require.NoError(t, err)
		assert.Equal(t, tc.busy, busy, "at %s", tc.now)
	}

	_, err = f.svc.RoomBusyNow(ctx, 999, at("10:30"))
	assert.ErrorIs(t, err, ErrRoomNotFound)

	idle := f.room(t, "B202")
	board, err := f.svc.StatusBoard(ctx, at("10:30"))
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, room.ID, board[0].ID)
	assert.True(t, board[0].Busy)
	assert.Equal(t, idle.ID, board[1].ID)
	assert.False(t, board[1].Busy)
}

func TestMyReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101")

	views, err := f.svc.MyReservations(ctx, alice)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)

	joined := f.book(t, userX, room.ID, "10:00", "11:00")
	owned := f.book(t, alice, room.ID, "12:00", "13:00")
	f.book(t, userY, room.ID, "14:00", "15:00")
	later := f.book(t, userY, room.ID, "16:00", "17:00")

	for _, id := range []uint{joined.ID, later.ID} {
		_, err = f.svc.Resolve(ctx, admin, id, model.DecisionApprove, "ok")
		require.NoError(t, err)
		require.NoError(t, f.svc.Join(ctx, alice, id))
	}
	require.NoError(t, f.svc.Join(ctx, userY, joined.ID))

	views, err = f.svc.MyReservations(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, joined.ID, views[0].ID)
	assert.Equal(t, "A101", views[0].RoomName)
	assert.Equal(t, []string{"alice", "usery"}, views[0].Attendees)

	assert.Equal(t, owned.ID, views[1].ID)
	assert.Equal(t, model.StatePending, views[1].State)
	assert.Empty(t, views[1].Attendees)

	assert.Equal(t, later.ID, views[2].ID)
	assert.Equal(t, []string{"alice"}, views[2].Attendees)

	// The first attendance set expires at 11:30; the index lives until the later one ends.
	f.mr.FastForward(4 * time.Hour)
	views, err = f.svc.MyReservations(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, owned.ID, views[0].ID)
	assert.Equal(t, later.ID, views[1].ID)
	indexed, err := f.mr.Members("attendee:alice:meetings")
	require.NoError(t, err)
	assert.Equal(t, []string{fmt.Sprint(later.ID)}, indexed)

	f.mr.FastForward(24 * time.Hour)
	views, err = f.svc.MyReservations(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, owned.ID, views[0].ID)
	assert.False(t, f.mr.Exists("attendee:alice:meetings"))
}

func TestListAllAndForRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.room(t, "A101")
	b := f.room(t, "B202")
	r1 := f.book(t, userX, a.ID, "10:00", "11:00")
	r2 := f.book(t, userY, b.ID, "10:00", "11:00")

	_, err := f.svc.ListAll(ctx, userX)
	assert.ErrorIs(t, err, ErrForbidden)

	views, err := f.svc.ListAll(ctx, admin)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, r1.ID, views[0].ID)
	assert.Equal(t, "userx", views[0].OwnerName)
	assert.Equal(t, "A101", views[0].RoomName)
	assert.Equal(t, "HQ", views[0].RoomAddress)
	assert.Equal(t, r2.ID, views[1].ID)
	assert.Equal(t, "B202", views[1].RoomName)

	forA, err := f.svc.ListForRoom(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, r1.ID, forA[0].ID)

	_, err = f.svc.ListForRoom(ctx, 999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRoom(ctx, userX, RoomInput{Name: "A", Address: "B"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateRoom(ctx, admin, RoomInput{Name: " ", Address: "B"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateRoom(ctx, admin, RoomInput{Name: "A", Address: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateRoom(ctx, admin, RoomInput{Name: "A", Address: "B", Facilities: []string{"tv,hdmi"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	room, err := f.svc.CreateRoom(ctx, admin, RoomInput{Name: "A101", Address: "HQ", Facilities: []string{"projector", "mic"}})
	require.NoError(t, err)

	updated, err := f.svc.UpdateRoom(ctx, admin, room.ID, RoomInput{Name: "A102", Address: "HQ 2", Facilities: []string{"whiteboard"}})
	require.NoError(t, err)
	assert.Equal(t, "A102", updated.Name)
	assert.Equal(t, model.Facilities{"whiteboard"}, updated.Facilities)

	_, err = f.svc.UpdateRoom(ctx, admin, 999, RoomInput{Name: "x", Address: "y"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	rooms, err := f.svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, userX, room.ID), ErrForbidden)
	require.NoError(t, f.svc.DeleteRoom(ctx, admin, room.ID))
	assert.ErrorIs(t, f.svc.DeleteRoom(ctx, admin, room.ID), ErrRoomNotFound)

	_, err = f.svc.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomLocks_ReleaseCleansUp(t *testing.T) {
	locks := newRoomLocks()
	unlock := locks.lock(7)
	assert.Len(t, locks.locks, 1)
	unlock()
	assert.Empty(t, locks.locks)
}

func TestStorageErrWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := storageErr(cause)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, isKnown(err))
	assert.False(t, isKnown(cause))
}
