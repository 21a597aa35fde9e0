package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// users
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	DisplayName  string `gorm:"type:varchar(255)"`
	Email        string `gorm:"type:varchar(255);index"`
	ContactPhone string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:UserID"`
	Children []Child   `gorm:"foreignKey:ParentID"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// children: клиент практики, всегда принадлежит родителю.
type Child struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ParentID uuid.UUID `gorm:"type:uuid;not null;index"`
	FullName string    `gorm:"type:varchar(255);not null"`

	// Чувствительные данные; провайдеру видны только при согласии.
	DateOfBirth   *datatypes.Date
	ClinicalNotes string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Parent *User `gorm:"foreignKey:ParentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (c *Child) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
