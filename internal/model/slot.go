package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// slot_instances: конкретные интервалы для записи с уже применённой таймзоной.
//
// (provider_id, start_instant) уникален, поэтому разворачивание идемпотентно
// по провайдеру, дате и времени дня.
type SlotInstance struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProviderID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_slot_provider_start,priority:1;index"`
	TemplateID *uuid.UUID `gorm:"type:uuid;index"`

	// Всегда в UTC.
	StartInstant time.Time `gorm:"not null;uniqueIndex:idx_slot_provider_start,priority:2;index"`
	EndInstant   time.Time `gorm:"not null"`

	// false: слот снят (например, одобренным отпуском или сменой шаблона).
	IsActive bool `gorm:"not null;index"`
	IsBooked bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *SlotInstance) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Available сообщает, можно ли ещё предлагать слот клиентам.
func (s *SlotInstance) Available() bool {
	return s.IsActive && !s.IsBooked
}
