package reconcile

import (
	"context"

	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/pickup"
)

// Source is the server as seen by a polling client.
type Source interface {
	ActiveBillboard(ctx context.Context) (*billboard.Snapshot, error)
	ActiveNotifications(ctx context.Context, eventID, eventDate string) ([]pickup.Notification, error)
	SetActive(ctx context.Context, req billboard.SetRequest) (*billboard.Snapshot, error)
	ClearActive(ctx context.Context) error
	SubmitCode(ctx context.Context, code, eventID, eventDate string) (*pickup.SubmitResult, error)
}
