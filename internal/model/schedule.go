package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// DailySlotCount: число фиксированных времён начала в шаблоне.
	DailySlotCount = 8
	// SlotDurationMinutes одинакова для всех шаблонов.
	SlotDurationMinutes = 60
)

// schedule_templates: один на провайдера.
type ScheduleTemplate struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	// Записи "HH:mm" по возрастанию, без повторов.
	DailySlotTimes datatypes.JSONSlice[string] `gorm:"not null"`

	SlotDurationMinutes int `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *ScheduleTemplate) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SlotDuration возвращает длительность слота.
func (s *ScheduleTemplate) SlotDuration() time.Duration {
	if s.SlotDurationMinutes <= 0 {
		return SlotDurationMinutes * time.Minute
	}
	return time.Duration(s.SlotDurationMinutes) * time.Minute
}
