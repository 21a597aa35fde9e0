package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/model"
)

type EventRepository interface {
	Record(ctx context.Context, event *model.Event) error
	// События указанного типа, новые сначала.
	ListByType(ctx context.Context, eventType model.EventType, limit int) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Record(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ListByType(ctx context.Context, eventType model.EventType, limit int) ([]model.Event, error) {
	var events []model.Event
	q := r.db.WithContext(ctx).Where("event_type = ?", eventType).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// UUIDPtr возвращает указатель на копию id или nil для uuid.Nil.
func UUIDPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
