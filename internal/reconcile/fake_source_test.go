package reconcile

import (
	"context"
	"sync"

	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/pickup"
)

// fakeSource is an in-memory Source. gate, when set, blocks the first
// ActiveBillboard call until closed.
type fakeSource struct {
	mu         sync.Mutex
	board      *billboard.Snapshot
	boardErr   error
	notes      []pickup.Notification
	setErr     error
	sets       []billboard.SetRequest
	cleared    int
	boardCalls int
	noteCalls  int

	gate    chan struct{}
	started chan struct{}
	gated   *billboard.Snapshot

	setGate chan struct{}
}

func (f *fakeSource) ActiveBillboard(ctx context.Context) (*billboard.Snapshot, error) {
	f.mu.Lock()
	f.boardCalls++
	first := f.boardCalls == 1
	gate, gated := f.gate, f.gated
	f.mu.Unlock()

	if first && gate != nil {
		if f.started != nil {
			close(f.started)
		}
		<-gate
		return gated.Clone(), nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.board.Clone(), f.boardErr
}

func (f *fakeSource) ActiveNotifications(ctx context.Context, eventID, eventDate string) ([]pickup.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteCalls++
	return append([]pickup.Notification{}, f.notes...), nil
}

func (f *fakeSource) SetActive(ctx context.Context, req billboard.SetRequest) (*billboard.Snapshot, error) {
	if f.setGate != nil {
		<-f.setGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, req)
	if f.setErr != nil {
		return nil, f.setErr
	}
	f.board = &billboard.Snapshot{
		EventID:       req.EventID,
		EventName:     req.EventName,
		EventDate:     req.EventDate,
		SecurityCodes: req.SecurityCodes,
		LastUpdated:   clockStart.Add(42),
	}
	return f.board.Clone(), nil
}

func (f *fakeSource) ClearActive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.board = nil
	return nil
}

func (f *fakeSource) SubmitCode(ctx context.Context, code, eventID, eventDate string) (*pickup.SubmitResult, error) {
	return &pickup.SubmitResult{Success: false, Message: "Security code not found"}, nil
}

func (f *fakeSource) setBoard(b *billboard.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.board = b
}
