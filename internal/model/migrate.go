package model

import "gorm.io/gorm"

// AutoMigrate мигрирует все сущности ядра расписания.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Role{},
		&UserRole{},
		&Child{},
		&Provider{},
		&ScheduleTemplate{},
		&SlotInstance{},
		&Booking{},
		&DataAccessConsent{},
		&LeaveRequest{},
		&LeaveBalance{},
		&Event{},
	)
}
