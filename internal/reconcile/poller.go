package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"checkin-billboard-backend/internal/pickup"
)

// pollTimeout bounds one poll's server round trips.
const pollTimeout = 15 * time.Second

// Poller drives one client's replica on a fixed cadence. Polls may overlap
// when the server is slow; the replica keeps only the newest response.
type Poller struct {
	role     Role
	replica  *Replica
	source   Source
	interval time.Duration
	timeout  time.Duration
	onUpdate func(*Replica)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPoller creates a poller. A non-positive interval uses the role's default.
func NewPoller(role Role, replica *Replica, source Source, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = role.Interval()
	}
	return &Poller{
		role:     role,
		replica:  replica,
		source:   source,
		interval: interval,
		timeout:  pollTimeout,
		stopCh:   make(chan struct{}),
	}
}

// OnUpdate registers fn to run after every applied poll.
func (p *Poller) OnUpdate(fn func(*Replica)) {
	p.onUpdate = fn
}

// Run polls immediately and then on every tick until ctx is done or Stop is
// called. In-flight polls are cancelled on return and their results dropped.
func (p *Poller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		p.replica.stop()
		cancel()
		wg.Wait()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("Polling as %s every %s", p.role, p.interval)
	for {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.poll(ctx)
		}()

		select {
		case <-ticker.C:
		case <-p.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop ends Run. Responses that arrive afterwards are discarded.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.replica.stop()
		close(p.stopCh)
	})
}

func (p *Poller) poll(ctx context.Context) {
	seq := p.replica.Begin()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := Result{Seq: seq}
	res.Billboard, res.BillboardErr = p.source.ActiveBillboard(ctx)
	if res.BillboardErr != nil {
		log.Printf("Poll %d (%s): failed to fetch billboard: %v", seq, p.role, res.BillboardErr)
	} else if p.role.watchesNotifications() {
		if res.Billboard == nil {
			res.Notifications = []pickup.Notification{}
		} else {
			res.Notifications, res.NotificationsErr = p.source.ActiveNotifications(ctx, res.Billboard.EventID, res.Billboard.EventDate)
			if res.NotificationsErr != nil {
				log.Printf("Poll %d (%s): failed to fetch notifications: %v", seq, p.role, res.NotificationsErr)
			}
		}
	}

	if !p.replica.Apply(res) {
		return
	}
	if p.onUpdate != nil {
		p.onUpdate(p.replica)
	}
}
