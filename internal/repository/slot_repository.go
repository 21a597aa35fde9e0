package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/therapy-booking/internal/model"
)

// Все методы работают поверх переданного *gorm.DB: и обычного, и транзакции.
type SlotRepository interface {
	// Удалить свободные активные слоты провайдера в [from, to); нулевой to означает
	// открытый интервал. Слоты, на которые ссылается бронь, остаются.
	DeleteUnbooked(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int64, error)
	// Пакетная вставка; конфликты по (provider_id, start_instant) пропускаются.
	InsertIgnoringDuplicates(ctx context.Context, slots []model.SlotInstance) (int64, error)
	// Все слоты провайдера в [from, to), по времени начала.
	ListForRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.SlotInstance, error)
	// Активные свободные слоты провайдера в [from, to), по времени начала.
	ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.SlotInstance, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.SlotInstance, error)
	// Compare-and-set: is_booked ставится, только если слот активен и свободен.
	TryReserve(ctx context.Context, id uuid.UUID) (bool, error)
	// Снять отметку брони со слотов.
	Release(ctx context.Context, ids []uuid.UUID) (int64, error)
	// Снять с публикации все слоты провайдера в [from, to).
	DeactivateRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int64, error)
	// Включить или выключить свободные слоты по ID; занятые не трогаются.
	SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error)
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

const slotInsertBatch = 200

func (r *GormSlotRepository) DeleteUnbooked(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int64, error) {
	q := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("start_instant >= ?", from.UTC()).
		Where("is_booked = ? AND is_active = ?", false, true).
		Where("NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.slot_instance_id = slot_instances.id)")
	if !to.IsZero() {
		q = q.Where("start_instant < ?", to.UTC())
	}
	res := q.Delete(&model.SlotInstance{})
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) InsertIgnoringDuplicates(ctx context.Context, slots []model.SlotInstance) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_id"}, {Name: "start_instant"}},
			DoNothing: true,
		}).
		CreateInBatches(&slots, slotInsertBatch)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) ListForRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.SlotInstance, error) {
	var slots []model.SlotInstance
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("start_instant >= ? AND start_instant < ?", from.UTC(), to.UTC()).
		Order("start_instant ASC").
		Find(&slots).Error
	return slots, err
}

func (r *GormSlotRepository) ListAvailable(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.SlotInstance, error) {
	var slots []model.SlotInstance
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("start_instant >= ? AND start_instant < ?", from.UTC(), to.UTC()).
		Where("is_active = ? AND is_booked = ?", true, false).
		Order("start_instant ASC").
		Find(&slots).Error
	return slots, err
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SlotInstance, error) {
	var slot model.SlotInstance
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *GormSlotRepository) TryReserve(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.SlotInstance{}).
		Where("id = ? AND is_booked = ? AND is_active = ?", id, false, true).
		Update("is_booked", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSlotRepository) Release(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.SlotInstance{}).
		Where("id IN ?", ids).
		Update("is_booked", false)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) DeactivateRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.SlotInstance{}).
		Where("provider_id = ?", providerID).
		Where("start_instant >= ? AND start_instant < ?", from.UTC(), to.UTC()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *GormSlotRepository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.SlotInstance{}).
		Where("id IN ? AND is_booked = ?", ids, false).
		Update("is_active", active)
	return res.RowsAffected, res.Error
}
