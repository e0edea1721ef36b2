package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"

	"checkin-billboard-backend/internal/model"
	"checkin-billboard-backend/internal/pickup"
	"checkin-billboard-backend/internal/store"
)

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

// queueFactor sizes the job buffer relative to the number of workers.
const queueFactor = 16

// WorkerPool delivers pickup alerts to volunteers subscribed to the
// children's locations.
type WorkerPool struct {
	size    int
	jobs    chan pickup.Alert
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan pickup.Alert, size*queueFactor),
		store:   s,
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
	log.Printf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking. When the queue is full the
// alert is dropped; the billboard remains the source of truth.
func (wp *WorkerPool) Dispatch(alert pickup.Alert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("Warning: alert queue full, dropping push alert for code %s", alert.SecurityCode)
	}
}

// Message formats one child's line of a push payload. A subscription
// following several of the children gets one push with a line each.
func Message(child pickup.Child, code string) string {
	location := child.LocationName
	if location == "" {
		location = "check-in"
	}
	return fmt.Sprintf("Pickup: %s (%s) at %s", child.Name, code, location)
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert pickup.Alert) {
	var locationIDs []string
	seen := map[string]bool{}
	for _, c := range alert.Children {
		if c.LocationID == "" || seen[c.LocationID] {
			continue
		}
		seen[c.LocationID] = true
		locationIDs = append(locationIDs, c.LocationID)
	}
	if len(locationIDs) == 0 {
		return
	}

	subs, err := wp.store.SubscriptionsForLocations(ctx, locationIDs)
	if err != nil {
		log.Printf("Error fetching subscriptions for code %s: %v", alert.SecurityCode, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	log.Printf("Sending pickup alert for code %s to %d subscriptions", alert.SecurityCode, len(subs))
	for _, sub := range subs {
		follows := make(map[string]bool, len(sub.Locations))
		for _, l := range sub.Locations {
			follows[l.LocationID] = true
		}
		var lines []string
		for _, child := range alert.Children {
			if follows[child.LocationID] {
				lines = append(lines, Message(child, alert.SecurityCode))
			}
		}
		if len(lines) == 0 {
			continue
		}
		wp.sendNotification(ctx, sub, []byte(strings.Join(lines, "\n")))
	}
}

// sendNotification sends a single web push notification, deleting the
// subscription when the push service reports it expired.
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
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
