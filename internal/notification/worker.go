package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"meeting-room-backend/internal/model"
	"meeting-room-backend/internal/store"
)

// queueDepth is how many pending jobs each worker may have buffered.
const queueDepth = 32

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the JSON body delivered to the owner's browser.
type Message struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	ReservationID uint   `json:"reservationId"`
	State         string `json:"state"`
}

// WorkerPool tells reservation owners about approval decisions through web push.
type WorkerPool struct {
	size    int
	jobs    chan uint
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan uint, size*queueDepth),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.Named("notification"),
	}
}

// SetSender replaces the web push transport.
func (wp *WorkerPool) SetSender(s NotificationSender) {
	wp.sender = s
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case reservationID := <-wp.jobs:
			wp.notifyOwner(ctx, reservationID)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a reservation whose owner should hear about its decision.
// It never blocks the caller; when the queue is full the job is dropped.
func (wp *WorkerPool) Dispatch(reservationID uint) {
	select {
	case wp.jobs <- reservationID:
	default:
		wp.log.Warn("notification queue full, dropping job", zap.Uint("reservation_id", reservationID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan uint {
	return wp.jobs
}

func (wp *WorkerPool) notifyOwner(ctx context.Context, reservationID uint) {
	log := wp.log.With(zap.Uint("reservation_id", reservationID))

	r, err := wp.store.GetReservation(ctx, reservationID)
	if err != nil {
		log.Error("failed to load reservation", zap.Error(err))
		return
	}
	if !r.State.Resolved() {
		return
	}

	subscriptions, err := wp.store.PushSubscriptionsForUser(ctx, r.OwnerID)
	if err != nil {
		log.Error("failed to load push subscriptions", zap.Uint("owner_id", r.OwnerID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	roomLabel := fmt.Sprintf("room %d", r.RoomID)
	if room, err := wp.store.GetRoom(ctx, r.RoomID); err != nil {
		log.Warn("failed to load room, using its ID", zap.Uint("room_id", r.RoomID), zap.Error(err))
	} else {
		roomLabel = room.Name
	}

	payload, err := json.Marshal(buildMessage(r, roomLabel))
	if err != nil {
		log.Error("failed to encode notification", zap.Error(err))
		return
	}

	log.Info("sending decision notifications", zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func buildMessage(r *model.Reservation, roomLabel string) Message {
	body := fmt.Sprintf("Reservation #%d for %s was %s", r.ID, roomLabel, r.State)
	if r.Reason != "" {
		body += ": " + r.Reason
	}
	return Message{
		Title:         "Reservation " + string(r.State),
		Body:          body,
		ReservationID: r.ID,
		State:         string(r.State),
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeletePushSubscription(ctx, sub.UserID, sub.Endpoint); err != nil {
			wp.log.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
