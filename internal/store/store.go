package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	billboard.Persister

	ListAudit(ctx context.Context, limit int) ([]billboard.AuditEntry, error)

	PutSubscription(ctx context.Context, sub model.PushSubscription, locationIDs []string) error
	GetSubscriptionLocations(ctx context.Context, endpoint string) ([]string, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForLocations(ctx context.Context, locationIDs []string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// SaveBillboard upserts the single active billboard row.
func (s *gormStore) SaveBillboard(ctx context.Context, snap *billboard.Snapshot) error {
	row := model.ActiveBillboard{
		ID:            model.ActiveBillboardID,
		EventID:       snap.EventID,
		EventName:     snap.EventName,
		EventDate:     snap.EventDate,
		SecurityCodes: snap.SecurityCodes,
		CreatedByID:   snap.CreatedBy.ID,
		CreatedByName: snap.CreatedBy.Name,
		LastUpdated:   snap.LastUpdated,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save active billboard: %w", err)
	}
	return nil
}

// DeleteBillboard removes the active billboard row, if any.
func (s *gormStore) DeleteBillboard(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&model.ActiveBillboard{}, model.ActiveBillboardID).Error; err != nil {
		return fmt.Errorf("failed to delete active billboard: %w", err)
	}
	return nil
}

// LoadBillboard returns the persisted billboard or nil when there is none.
func (s *gormStore) LoadBillboard(ctx context.Context) (*billboard.Snapshot, error) {
	var row model.ActiveBillboard
	err := s.db.WithContext(ctx).First(&row, model.ActiveBillboardID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active billboard: %w", err)
	}
	return &billboard.Snapshot{
		EventID:       row.EventID,
		EventName:     row.EventName,
		EventDate:     row.EventDate,
		SecurityCodes: row.SecurityCodes,
		CreatedBy:     billboard.Actor{ID: row.CreatedByID, Name: row.CreatedByName},
		LastUpdated:   row.LastUpdated.UTC(),
	}, nil
}

// AppendAudit stores one audit entry, assigning an id when missing.
func (s *gormStore) AppendAudit(ctx context.Context, entry billboard.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	row := model.BillboardAudit{
		ID:        entry.ID,
		Action:    string(entry.Action),
		ActorID:   entry.Actor.ID,
		ActorName: entry.Actor.Name,
		EventID:   entry.EventID,
		EventDate: entry.EventDate,
		CodeCount: entry.CodeCount,
		At:        entry.At,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append billboard audit: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit entries, newest first.
func (s *gormStore) ListAudit(ctx context.Context, limit int) ([]billboard.AuditEntry, error) {
	var rows []model.BillboardAudit
	if err := s.db.WithContext(ctx).Order("at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list billboard audit: %w", err)
	}
	entries := make([]billboard.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, billboard.AuditEntry{
			ID:        r.ID,
			Action:    billboard.AuditAction(r.Action),
			Actor:     billboard.Actor{ID: r.ActorID, Name: r.ActorName},
			EventID:   r.EventID,
			EventDate: r.EventDate,
			CodeCount: r.CodeCount,
			At:        r.At.UTC(),
		})
	}
	return entries, nil
}

// PutSubscription creates or replaces a subscription and its location set.
func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription, locationIDs []string) error {
	sub.Locations = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return err
		}

		if err := tx.Where("subscription_endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionLocation{}).Error; err != nil {
			return err
		}

		seen := make(map[string]bool, len(locationIDs))
		var rows []model.SubscriptionLocation
		for _, id := range locationIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, model.SubscriptionLocation{SubscriptionEndpoint: sub.Endpoint, LocationID: id})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSubscriptionLocations returns the location ids a subscription follows.
func (s *gormStore) GetSubscriptionLocations(ctx context.Context, endpoint string) ([]string, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Locations").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sub.Locations))
	for i, l := range sub.Locations {
		ids[i] = l.LocationID
	}
	return ids, nil
}

// DeleteSubscription removes a subscription and its location mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_endpoint = ?", endpoint).Delete(&model.SubscriptionLocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

// SubscriptionsForLocations returns every subscription following any of the
// locations, with their location sets loaded.
func (s *gormStore) SubscriptionsForLocations(ctx context.Context, locationIDs []string) ([]model.PushSubscription, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}
	var subs []model.PushSubscription
	following := s.db.Model(&model.SubscriptionLocation{}).
		Select("subscription_endpoint").
		Where("location_id IN ?", locationIDs)
	err := s.db.WithContext(ctx).
		Preload("Locations").
		Where("endpoint IN (?)", following).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
