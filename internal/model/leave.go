package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LeaveType string

const (
	LeaveTypeCasual   LeaveType = "CASUAL"
	LeaveTypeSick     LeaveType = "SICK"
	LeaveTypeFestive  LeaveType = "FESTIVE"
	LeaveTypeOptional LeaveType = "OPTIONAL"
)

type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "PENDING"
	LeaveStatusApproved LeaveStatus = "APPROVED"
	LeaveStatusRejected LeaveStatus = "REJECTED"
)

const (
	// AnnualLeaveQuota: лимит CASUAL, SICK и FESTIVE на календарный год.
	AnnualLeaveQuota = 5
	// MonthlyOptionalQuota: лимит OPTIONAL на календарный месяц.
	MonthlyOptionalQuota = 1
)

// Balances: остаток по каждому типу отпуска.
type Balances struct {
	CasualRemaining   int `gorm:"not null" json:"casualRemaining"`
	SickRemaining     int `gorm:"not null" json:"sickRemaining"`
	FestiveRemaining  int `gorm:"not null" json:"festiveRemaining"`
	OptionalRemaining int `gorm:"not null" json:"optionalRemaining"`
}

// Remaining возвращает остаток для одного типа.
func (b Balances) Remaining(t LeaveType) int {
	switch t {
	case LeaveTypeCasual:
		return b.CasualRemaining
	case LeaveTypeSick:
		return b.SickRemaining
	case LeaveTypeFestive:
		return b.FestiveRemaining
	case LeaveTypeOptional:
		return b.OptionalRemaining
	}
	return 0
}

// Decrement возвращает копию, где списана одна единица t.
func (b Balances) Decrement(t LeaveType) Balances {
	switch t {
	case LeaveTypeCasual:
		b.CasualRemaining--
	case LeaveTypeSick:
		b.SickRemaining--
	case LeaveTypeFestive:
		b.FestiveRemaining--
	case LeaveTypeOptional:
		b.OptionalRemaining--
	}
	return b
}

// leave_requests: не удаляются. Не больше одной PENDING или APPROVED заявки на провайдера и день.
type LeaveRequest struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProviderID uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_leave_live_day,priority:1,where:status <> 'REJECTED'"`
	Date       datatypes.Date `gorm:"not null;index;uniqueIndex:idx_leave_live_day,priority:2,where:status <> 'REJECTED'"`

	Type   LeaveType   `gorm:"type:varchar(16);not null;index"`
	Status LeaveStatus `gorm:"type:varchar(16);not null;index"`

	Reason     string `gorm:"type:text"`
	AdminNotes string `gorm:"type:text"`

	// Снимок остатков на случай одобрения заявки.
	Balances `gorm:"embedded;embeddedPrefix:snapshot_"`

	DecidedBy *uuid.UUID `gorm:"type:uuid"`
	DecidedAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (l *LeaveRequest) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Day возвращает календарный день отпуска как полночь UTC.
func (l *LeaveRequest) Day() time.Time {
	y, m, d := time.Time(l.Date).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// leave_balances: состояние учёта, записывается при одобрении отпуска.
// Источник истины: история одобренных заявок.
type LeaveBalance struct {
	ProviderID uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Year       int        `gorm:"primaryKey"`
	Month      time.Month `gorm:"primaryKey"`

	Balances `gorm:"embedded"`

	UpdatedAt time.Time `gorm:"not null"`
}
