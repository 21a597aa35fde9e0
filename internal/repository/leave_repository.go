package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/therapy-booking/internal/model"
)

type LeaveRepository interface {
	Create(ctx context.Context, leave *model.LeaveRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.LeaveRequest, error)
	// Есть ли PENDING или APPROVED заявка провайдера на этот день.
	ExistsLive(ctx context.Context, providerID uuid.UUID, day time.Time) (bool, error)
	// Число APPROVED заявок одного типа с датой в [from, to).
	CountApproved(ctx context.Context, providerID uuid.UUID, leaveType model.LeaveType, from, to time.Time) (int64, error)
	// Дни в [from, to), закрытые APPROVED заявкой.
	ApprovedDays(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]time.Time, error)
	// Условный переход PENDING -> to; false, если решение уже принято.
	Decide(ctx context.Context, id uuid.UUID, to model.LeaveStatus, decidedBy uuid.UUID, adminNotes string, at time.Time) (bool, error)
	UpsertBalance(ctx context.Context, balance *model.LeaveBalance) error
	GetBalance(ctx context.Context, providerID uuid.UUID, year int, month time.Month) (*model.LeaveBalance, error)
}

type GormLeaveRepository struct {
	db *gorm.DB
}

func NewGormLeaveRepository(db *gorm.DB) *GormLeaveRepository {
	return &GormLeaveRepository{db: db}
}

func (r *GormLeaveRepository) Create(ctx context.Context, leave *model.LeaveRequest) error {
	return r.db.WithContext(ctx).Create(leave).Error
}

func (r *GormLeaveRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LeaveRequest, error) {
	var l model.LeaveRequest
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *GormLeaveRepository) ExistsLive(ctx context.Context, providerID uuid.UUID, day time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Where("provider_id = ? AND date = ?", providerID, day.UTC()).
		Where("status IN ?", []model.LeaveStatus{model.LeaveStatusPending, model.LeaveStatusApproved}).
		Count(&n).Error
	return n > 0, err
}

func (r *GormLeaveRepository) CountApproved(
	ctx context.Context,
	providerID uuid.UUID,
	leaveType model.LeaveType,
	from, to time.Time,
) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Where("provider_id = ? AND type = ? AND status = ?", providerID, leaveType, model.LeaveStatusApproved).
		Where("date >= ? AND date < ?", from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}

func (r *GormLeaveRepository) ApprovedDays(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	var leaves []model.LeaveRequest
	err := r.db.WithContext(ctx).
		Select("id", "date").
		Where("provider_id = ? AND status = ?", providerID, model.LeaveStatusApproved).
		Where("date >= ? AND date < ?", from.UTC(), to.UTC()).
		Find(&leaves).Error
	if err != nil {
		return nil, err
	}
	days := make([]time.Time, 0, len(leaves))
	for i := range leaves {
		days = append(days, leaves[i].Day())
	}
	return days, nil
}

func (r *GormLeaveRepository) Decide(
	ctx context.Context,
	id uuid.UUID,
	to model.LeaveStatus,
	decidedBy uuid.UUID,
	adminNotes string,
	at time.Time,
) (bool, error) {
	update := map[string]any{
		"status":     to,
		"decided_by": decidedBy,
		"decided_at": at.UTC(),
	}
	if adminNotes != "" {
		update["admin_notes"] = adminNotes
	}
	res := r.db.WithContext(ctx).
		Model(&model.LeaveRequest{}).
		Where("id = ? AND status = ?", id, model.LeaveStatusPending).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormLeaveRepository) UpsertBalance(ctx context.Context, balance *model.LeaveBalance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_id"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"casual_remaining", "sick_remaining", "festive_remaining", "optional_remaining", "updated_at",
			}),
		}).
		Create(balance).Error
}

func (r *GormLeaveRepository) GetBalance(ctx context.Context, providerID uuid.UUID, year int, month time.Month) (*model.LeaveBalance, error) {
	var b model.LeaveBalance
	if err := r.db.WithContext(ctx).
		First(&b, "provider_id = ? AND year = ? AND month = ?", providerID, year, month).Error; err != nil {
		return nil, err
	}
	return &b, nil
}
