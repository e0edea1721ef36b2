package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"checkin-billboard-backend/internal/db"
	"checkin-billboard-backend/internal/model"
	"checkin-billboard-backend/internal/pickup"
	"checkin-billboard-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func respond(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return store.NewGormStore(gormDB)
}

func subscribe(t *testing.T, s store.Store, endpoint string, locations ...string) {
	t.Helper()
	sub := model.PushSubscription{Endpoint: endpoint, P256DH: "p256dh", Auth: "auth"}
	require.NoError(t, s.PutSubscription(context.Background(), sub, locations))
}

var alert = pickup.Alert{
	EventID:      "E1",
	EventDate:    "2024-01-07",
	SecurityCode: "ABC1",
	Children: []pickup.Child{
		{ID: "C1", Name: "Ava Smith", LocationID: "L1", LocationName: "Nursery"},
		{ID: "C2", Name: "Ben Smith", LocationID: "L2", LocationName: "Toddlers"},
	},
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, newTestStore(t), &webpush.Options{})

	wp.Dispatch(alert)

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "ABC1", job.SecurityCode)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	wp := NewWorkerPool(1, newTestStore(t), &webpush.Options{})

	done := make(chan struct{})
	go func() {
		// No workers are running, so the queue fills and the rest is dropped.
		for i := 0; i < queueFactor*3; i++ {
			wp.Dispatch(alert)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, wp.jobs, queueFactor)
}

func TestWorkerPool_OnePushPerSubscription(t *testing.T) {
	s := newTestStore(t)
	subscribe(t, s, "https://push.example/nursery", "L1")
	subscribe(t, s, "https://push.example/both", "L1", "L2")
	subscribe(t, s, "https://push.example/other", "L9")

	var mu sync.Mutex
	got := map[string][]string{}
	var wg sync.WaitGroup
	wg.Add(2)

	wp := NewWorkerPool(1, s, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			mu.Lock()
			got[sub.Endpoint] = append(got[sub.Endpoint], string(payload))
			mu.Unlock()
			wg.Done()
			return respond(http.StatusCreated), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	wp.Dispatch(alert)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Pickup: Ava Smith (ABC1) at Nursery"}, got["https://push.example/nursery"])
	assert.Equal(t, []string{
		"Pickup: Ava Smith (ABC1) at Nursery\nPickup: Ben Smith (ABC1) at Toddlers",
	}, got["https://push.example/both"], "one push per subscription")
	assert.NotContains(t, got, "https://push.example/other")
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	s := newTestStore(t)
	subscribe(t, s, "https://push.example/expired", "L1")

	sent := make(chan struct{}, 1)
	wp := NewWorkerPool(1, s, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent <- struct{}{}
			return respond(http.StatusGone), nil
		},
	}

	wp.sendAlert(context.Background(), alert)
	<-sent

	_, err := s.GetSubscriptionLocations(context.Background(), "https://push.example/expired")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkerPool_SkipsUnlocatedChildren(t *testing.T) {
	s := newTestStore(t)
	subscribe(t, s, "https://push.example/a", "L1")

	wp := NewWorkerPool(1, s, &webpush.Options{})
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			t.Fatal("no notification expected for a child without a location")
			return nil, nil
		},
	}

	wp.sendAlert(context.Background(), pickup.Alert{
		SecurityCode: "Q1",
		Children:     []pickup.Child{{ID: "C9", Name: "Cal"}},
	})
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Pickup: Ava (ABC1) at Nursery", Message(pickup.Child{Name: "Ava", LocationName: "Nursery"}, "ABC1"))
	assert.Equal(t, "Pickup: Ava (ABC1) at check-in", Message(pickup.Child{Name: "Ava"}, "ABC1"))
}
