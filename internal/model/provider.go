package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider: терапевт, чьё расписание разворачивается в слоты.
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	DisplayName string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	// IANA-зона из аккаунта провайдера; по ней считаются все локальные времена.
	TimeZone string `gorm:"type:varchar(64);not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	User     *User             `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Template *ScheduleTemplate `gorm:"foreignKey:ProviderID"`
}

func (p *Provider) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
