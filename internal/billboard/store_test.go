package billboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-billboard-backend/internal/apperr"
)

// memPersister is an in-memory Persister for tests.
type memPersister struct {
	mu      sync.Mutex
	saved   *Snapshot
	audits  []AuditEntry
	saveErr error
}

func (m *memPersister) SaveBillboard(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = snap.Clone()
	return nil
}

func (m *memPersister) DeleteBillboard(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	return nil
}

func (m *memPersister) LoadBillboard(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved.Clone(), nil
}

func (m *memPersister) AppendAudit(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

var admin = Actor{ID: "42", Name: "Pat Admin"}

func TestStore_SetReplacesAndNormalizes(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return fixed }))

	_, err := s.Set(ctx, SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"abc1", "ZZ9"}}, admin)
	require.NoError(t, err)

	snap, err := s.Set(ctx, SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{" def2", "DEF2", "ghi3"}}, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEF2", "GHI3"}, snap.SecurityCodes)

	active := s.Active()
	require.NotNil(t, active)
	assert.Equal(t, []string{"DEF2", "GHI3"}, active.SecurityCodes, "codes from the earlier billboard must not survive a full replace")
	assert.Equal(t, admin, active.CreatedBy)
	assert.Equal(t, fixed, active.LastUpdated)
}

func TestStore_SetValidation(t *testing.T) {
	testCases := []struct {
		name string
		req  SetRequest
	}{
		{"missing event id", SetRequest{EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"A1"}}},
		{"missing event name", SetRequest{EventID: "E1", EventDate: "2024-01-07", SecurityCodes: []string{"A1"}}},
		{"bad date", SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "01/07/2024", SecurityCodes: []string{"A1"}}},
		{"no codes", SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{" ", ""}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			_, err := s.Set(context.Background(), tc.req, admin)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Nil(t, s.Active(), "a rejected set must not publish state")
		})
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	assert.Nil(t, s.Active())

	_, err := s.Set(ctx, SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"A1"}}, admin)
	require.NoError(t, err)

	s.Clear(ctx, admin)
	assert.Nil(t, s.Active())
	s.Clear(ctx, admin)
	assert.Nil(t, s.Active())
}

func TestStore_ActiveReturnsCopy(t *testing.T) {
	s := NewStore()
	_, err := s.Set(context.Background(), SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"A1"}}, admin)
	require.NoError(t, err)

	a := s.Active()
	a.SecurityCodes[0] = "MUTATED"
	assert.Equal(t, []string{"A1"}, s.Active().SecurityCodes)
}

func TestStore_PersistAndRestore(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	s := NewStore(WithPersister(p))

	_, err := s.Set(ctx, SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"a1"}}, admin)
	require.NoError(t, err)

	restored := NewStore(WithPersister(p))
	require.NoError(t, restored.Restore(ctx))
	require.NotNil(t, restored.Active())
	assert.Equal(t, []string{"A1"}, restored.Active().SecurityCodes)

	s.RecordSoftClear(ctx, admin)
	s.Clear(ctx, admin)
	fresh := NewStore(WithPersister(p))
	require.NoError(t, fresh.Restore(ctx))
	assert.Nil(t, fresh.Active())

	require.Len(t, p.audits, 3)
	assert.Equal(t, ActionSet, p.audits[0].Action)
	assert.Equal(t, ActionSoftClear, p.audits[1].Action)
	assert.Equal(t, ActionClear, p.audits[2].Action)
	assert.Equal(t, "E1", p.audits[2].EventID)
}

func TestStore_PersistFailureDoesNotFailSet(t *testing.T) {
	s := NewStore(WithPersister(&memPersister{saveErr: errors.New("db down")}))
	snap, err := s.Set(context.Background(), SetRequest{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"A1"}}, admin)
	require.NoError(t, err)
	assert.Equal(t, snap, s.Active())
}

// Readers racing writers must only ever observe complete snapshots.
func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	sets := []SetRequest{
		{EventID: "E1", EventName: "Sunday AM", EventDate: "2024-01-07", SecurityCodes: []string{"A1", "A2"}},
		{EventID: "E2", EventName: "Sunday PM", EventDate: "2024-01-14", SecurityCodes: []string{"B1", "B2", "B3"}},
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Active()
				if snap == nil {
					continue
				}
				switch snap.EventID {
				case "E1":
					assert.Equal(t, "2024-01-07", snap.EventDate)
					assert.Len(t, snap.SecurityCodes, 2)
				case "E2":
					assert.Equal(t, "2024-01-14", snap.EventDate)
					assert.Len(t, snap.SecurityCodes, 3)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_, err := s.Set(ctx, sets[i%2], admin)
		require.NoError(t, err)
		if i%50 == 0 {
			s.Clear(ctx, admin)
		}
	}
	close(stop)
	wg.Wait()
}
