package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeSlotsMaterialized EventType = "slots_materialized"
	EventTypeTemplateUpdated   EventType = "template_updated"
	EventTypeBookingCreated    EventType = "booking_created"
	EventTypeBookingCancelled  EventType = "booking_cancelled"
	EventTypeBookingCompleted  EventType = "booking_completed"
	EventTypeLeaveRequested    EventType = "leave_requested"
	EventTypeLeaveApproved     EventType = "leave_approved"
	EventTypeLeaveRejected     EventType = "leave_rejected"
	EventTypeConsentGranted    EventType = "consent_granted"
	EventTypeConsentRevoked    EventType = "consent_revoked"
)

// events: журнал аудита, пишется в той же транзакции, что и само изменение.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	UserID     *uuid.UUID `gorm:"type:uuid;index"`
	ProviderID *uuid.UUID `gorm:"type:uuid;index"`
	BookingID  *uuid.UUID `gorm:"type:uuid;index"`
	LeaveID    *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
