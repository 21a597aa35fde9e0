package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/therapy-booking/internal/model"
)

type ScheduleRepository interface {
	// Шаблон расписания провайдера.
	GetByProvider(ctx context.Context, providerID uuid.UUID) (*model.ScheduleTemplate, error)
	// Заменить времена слотов и длительность в шаблоне провайдера.
	Upsert(ctx context.Context, tpl *model.ScheduleTemplate) error
	// Все провайдеры, у которых есть шаблон.
	ProviderIDs(ctx context.Context) ([]uuid.UUID, error)
}

type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) GetByProvider(ctx context.Context, providerID uuid.UUID) (*model.ScheduleTemplate, error) {
	var tpl model.ScheduleTemplate
	if err := r.db.WithContext(ctx).First(&tpl, "provider_id = ?", providerID).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *GormScheduleRepository) Upsert(ctx context.Context, tpl *model.ScheduleTemplate) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"daily_slot_times", "slot_duration_minutes", "updated_at"}),
		}).
		Create(tpl).Error
}

func (r *GormScheduleRepository) ProviderIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.ScheduleTemplate{}).
		Order("created_at ASC").
		Pluck("provider_id", &ids).Error
	return ids, err
}
