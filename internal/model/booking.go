package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusScheduled           BookingStatus = "SCHEDULED"
	BookingStatusCompleted           BookingStatus = "COMPLETED"
	BookingStatusCancelledByProvider BookingStatus = "CANCELLED_BY_PROVIDER"
	BookingStatusCancelled           BookingStatus = "CANCELLED"
)

// bookings
//
// Не больше одной неотменённой брони на слот: частичный уникальный индекс
// подстраховывает условное резервирование в транзакции брони.
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ParentID       uuid.UUID     `gorm:"type:uuid;not null;index"`
	ChildID        uuid.UUID     `gorm:"type:uuid;not null;index"`
	ProviderID     uuid.UUID     `gorm:"type:uuid;not null;index"`
	SlotInstanceID uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_booking_live_slot,where:status <> 'CANCELLED' AND status <> 'CANCELLED_BY_PROVIDER'"`
	Status         BookingStatus `gorm:"type:varchar(32);not null;index"`

	CancelledAt *time.Time
	Comment     string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Child *Child        `gorm:"foreignKey:ChildID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Slot  *SlotInstance `gorm:"foreignKey:SlotInstanceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Cancelled сообщает, что бронь больше не держит слот.
func (b *Booking) Cancelled() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusCancelledByProvider
}

// data_access_consents: согласие родителя показать провайдеру чувствительные поля ребёнка по одной брони.
type DataAccessConsent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	BookingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	GrantedBy uuid.UUID `gorm:"type:uuid;not null"`

	GrantedAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
}

func (c *DataAccessConsent) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
