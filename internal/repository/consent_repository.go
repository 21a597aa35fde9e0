package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/therapy-booking/internal/model"
)

type ConsentRepository interface {
	// Есть ли действующее (не отозванное) согласие по брони.
	HasConsent(ctx context.Context, bookingID uuid.UUID) (bool, error)
	Grant(ctx context.Context, bookingID, grantedBy uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, bookingID uuid.UUID, at time.Time) error
}

type GormConsentRepository struct {
	db *gorm.DB
}

func NewGormConsentRepository(db *gorm.DB) *GormConsentRepository {
	return &GormConsentRepository{db: db}
}

func (r *GormConsentRepository) HasConsent(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.DataAccessConsent{}).
		Where("booking_id = ? AND revoked_at IS NULL", bookingID).
		Count(&n).Error
	return n > 0, err
}

func (r *GormConsentRepository) Grant(ctx context.Context, bookingID, grantedBy uuid.UUID, at time.Time) error {
	c := model.DataAccessConsent{BookingID: bookingID, GrantedBy: grantedBy, GrantedAt: at.UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "booking_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"granted_by": grantedBy,
				"granted_at": at.UTC(),
				"revoked_at": nil,
			}),
		}).
		Create(&c).Error
}

func (r *GormConsentRepository) Revoke(ctx context.Context, bookingID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.DataAccessConsent{}).
		Where("booking_id = ? AND revoked_at IS NULL", bookingID).
		Update("revoked_at", at.UTC()).Error
}
