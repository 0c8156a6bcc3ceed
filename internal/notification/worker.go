package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through webpush-go.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one notification addressed to every subscription of a user.
type Job struct {
	UserID       int64
	InvitationID int64
	Title        string
	Body         string
}

// Payload is what the service worker receives.
type Payload struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	InvitationID int64  `json:"invitationId,omitempty"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Debugf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Debugf("Worker %d notifying user %d about invitation %d", id, job.UserID, job.InvitationID)
			wp.sendToUser(ctx, job)
		case <-ctx.Done():
			log.Debugf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job. It blocks while the queue is full.
func (wp *WorkerPool) Dispatch(job Job) {
	wp.jobs <- job
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// NotifyInvitation queues a push about a new partner invitation for userID.
func (wp *WorkerPool) NotifyInvitation(userID int64, inv backend.Invitation) {
	wp.Dispatch(Job{
		UserID:       userID,
		InvitationID: inv.ID,
		Title:        "新的伙伴邀请",
		Body:         InvitationMessage(inv),
	})
}

// InvitationMessage renders the notification text for an invitation.
func InvitationMessage(inv backend.Invitation) string {
	inviter := inv.Inviter.FullName
	if inviter == "" {
		inviter = "有人"
	}
	seat := inv.Seat.SeatNumber
	if inv.Seat.AreaName != "" {
		seat = inv.Seat.AreaName + " " + seat
	}
	msg := fmt.Sprintf("%s 邀请你一起预订 %s", inviter, seat)
	if inv.BookingDate != "" {
		msg += "，" + inv.BookingDate
		if inv.TimeSlot.Time != "" {
			msg += " " + inv.TimeSlot.Time
		}
	}
	return msg
}

func (wp *WorkerPool) sendToUser(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("user_id = ?", job.UserID).Find(&subscriptions).Error; err != nil {
		log.Errorf("Error fetching subscriptions for user %d: %v", job.UserID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(Payload{Title: job.Title, Body: job.Body, InvitationID: job.InvitationID})
	if err != nil {
		log.Errorf("Failed to encode notification payload: %v", err)
		return
	}

	log.Infof("Sending %d notification(s) for invitation %d", len(subscriptions), job.InvitationID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
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
		log.Warnf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// The push service no longer knows this subscription.
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Infof("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Errorf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
