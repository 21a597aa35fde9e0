package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/model"
)

type BookingRepository interface {
	// Создать бронь.
	Create(ctx context.Context, booking *model.Booking) error
	// Бронь с подгруженными слотом и ребёнком.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Условная смена статуса; false, если бронь уже не в статусе from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus, cancelledAt *time.Time) (bool, error)
	// Постраничный список, новые сначала.
	List(ctx context.Context, filter BookingFilter, limit, offset int) ([]model.Booking, int64, error)
	// SCHEDULED-брони провайдера со слотом в [from, to).
	ScheduledInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	// Массовый перевод SCHEDULED -> CANCELLED_BY_PROVIDER.
	CancelByProvider(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}

// BookingFilter сужает List; нулевые поля означают «любой».
type BookingFilter struct {
	ParentID   uuid.UUID
	ProviderID uuid.UUID
}

type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).
		Preload("Slot").
		Preload("Child").
		First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.BookingStatus,
	cancelledAt *time.Time,
) (bool, error) {
	update := map[string]any{
		"status": to,
	}
	if cancelledAt != nil {
		update["cancelled_at"] = cancelledAt.UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormBookingRepository) List(
	ctx context.Context,
	filter BookingFilter,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).Model(&model.Booking{})
	if filter.ParentID != uuid.Nil {
		q = q.Where("parent_id = ?", filter.ParentID)
	}
	if filter.ProviderID != uuid.Nil {
		q = q.Where("provider_id = ?", filter.ProviderID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Preload("Slot").Preload("Child").
		Order("created_at DESC").
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) ScheduledInRange(
	ctx context.Context,
	providerID uuid.UUID,
	from, to time.Time,
) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("bookings.*").
		Joins("JOIN slot_instances ON slot_instances.id = bookings.slot_instance_id").
		Where("bookings.provider_id = ?", providerID).
		Where("bookings.status = ?", model.BookingStatusScheduled).
		Where("slot_instances.start_instant >= ? AND slot_instances.start_instant < ?", from.UTC(), to.UTC()).
		Order("slot_instances.start_instant ASC").
		Find(&bookings).Error
	return bookings, err
}

func (r *GormBookingRepository) CancelByProvider(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id IN ? AND status = ?", ids, model.BookingStatusScheduled).
		Updates(map[string]any{
			"status":       model.BookingStatusCancelledByProvider,
			"cancelled_at": at.UTC(),
		})
	return res.RowsAffected, res.Error
}
