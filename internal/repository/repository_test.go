package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/therapy-booking/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.AutoMigrate(db))
	return db
}

func seedProvider(t *testing.T, db *gorm.DB) model.Provider {
	t.Helper()
	u := model.User{DisplayName: "Dr. Iyer"}
	require.NoError(t, db.Create(&u).Error)
	p := model.Provider{UserID: u.ID, DisplayName: "Dr. Iyer", TimeZone: "Asia/Kolkata"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func hourlySlots(providerID uuid.UUID, start time.Time, n int) []model.SlotInstance {
	out := make([]model.SlotInstance, n)
	for i := range out {
		s := start.Add(time.Duration(i) * time.Hour)
		out[i] = model.SlotInstance{ProviderID: providerID, StartInstant: s, EndInstant: s.Add(time.Hour), IsActive: true}
	}
	return out
}

func TestSlotRepository_InsertIgnoringDuplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	repo := NewGormSlotRepository(db)
	start := time.Date(2026, time.March, 3, 3, 30, 0, 0, time.UTC)

	n, err := repo.InsertIgnoringDuplicates(ctx, hourlySlots(p.ID, start, 8))
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	// four overlap the first batch
	n, err = repo.InsertIgnoringDuplicates(ctx, hourlySlots(p.ID, start.Add(4*time.Hour), 8))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	slots, err := repo.ListForRange(ctx, p.ID, start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, slots, 12)
}

func TestSlotRepository_TryReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	repo := NewGormSlotRepository(db)

	_, err := repo.InsertIgnoringDuplicates(ctx, hourlySlots(p.ID, time.Date(2026, time.March, 3, 3, 30, 0, 0, time.UTC), 2))
	require.NoError(t, err)
	slots, err := repo.ListForRange(ctx, p.ID, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, slots, 2)

	ok, err := repo.TryReserve(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TryReserve(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must lose")

	n, err := repo.DeactivateRange(ctx, p.ID, slots[1].StartInstant, slots[1].EndInstant)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	ok, err = repo.TryReserve(ctx, slots[1].ID)
	require.NoError(t, err)
	assert.False(t, ok, "inactive slots cannot be reserved")

	n, err = repo.Release(ctx, []uuid.UUID{slots[0].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	ok, err = repo.TryReserve(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSlotRepository_DeleteUnbookedKeepsReferencedRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	repo := NewGormSlotRepository(db)
	start := time.Date(2026, time.March, 3, 3, 30, 0, 0, time.UTC)

	_, err := repo.InsertIgnoringDuplicates(ctx, hourlySlots(p.ID, start, 4))
	require.NoError(t, err)
	slots, err := repo.ListForRange(ctx, p.ID, start, start.Add(4*time.Hour))
	require.NoError(t, err)

	parent := model.User{DisplayName: "Parent"}
	require.NoError(t, db.Create(&parent).Error)
	child := model.Child{ParentID: parent.ID, FullName: "Child"}
	require.NoError(t, db.Create(&child).Error)

	// slot 0 booked, slot 1 freed by a cancelled booking, slot 2 withdrawn
	_, err = repo.TryReserve(ctx, slots[0].ID)
	require.NoError(t, err)
	bookings := NewGormBookingRepository(db)
	require.NoError(t, bookings.Create(ctx, &model.Booking{ParentID: parent.ID, ChildID: child.ID, ProviderID: p.ID, SlotInstanceID: slots[0].ID, Status: model.BookingStatusScheduled}))
	require.NoError(t, bookings.Create(ctx, &model.Booking{ParentID: parent.ID, ChildID: child.ID, ProviderID: p.ID, SlotInstanceID: slots[1].ID, Status: model.BookingStatusCancelled}))
	_, err = repo.DeactivateRange(ctx, p.ID, slots[2].StartInstant, slots[2].EndInstant)
	require.NoError(t, err)

	n, err := repo.DeleteUnbooked(ctx, p.ID, start, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := repo.ListForRange(ctx, p.ID, start, start.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, slots[0].ID, left[0].ID)
	assert.Equal(t, slots[1].ID, left[1].ID)
	assert.Equal(t, slots[2].ID, left[2].ID)
}

func TestSlotRepository_SetActiveSkipsBookedRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	repo := NewGormSlotRepository(db)

	slots := hourlySlots(p.ID, time.Date(2026, time.March, 3, 3, 30, 0, 0, time.UTC), 3)
	_, err := repo.InsertIgnoringDuplicates(ctx, slots)
	require.NoError(t, err)
	ok, err := repo.TryReserve(ctx, slots[0].ID)
	require.NoError(t, err)
	require.True(t, ok)

	ids := []uuid.UUID{slots[0].ID, slots[1].ID, slots[2].ID}
	n, err := repo.SetActive(ctx, ids, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n, "the booked slot keeps its state")

	booked, err := repo.GetByID(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.True(t, booked.IsActive)

	n, err = repo.SetActive(ctx, ids[1:], true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.SetActive(ctx, nil, true)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProviderRepository_LockByID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		got, err := NewGormProviderRepository(tx).LockByID(ctx, p.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, p.ID, got.ID)
		return nil
	})
	require.NoError(t, err)

	_, err = NewGormProviderRepository(db).LockByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProviderRepository_LockByIDSelectsForUpdateOnPostgres(t *testing.T) {
	db, err := gorm.Open(postgres.Open("host=localhost user=booking dbname=booking sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	var sql string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		sql = tx.Statement.SQL.String()
	}))

	_, _ = NewGormProviderRepository(db).LockByID(context.Background(), uuid.New())
	assert.Contains(t, sql, `FROM "providers"`)
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestBookingRepository_LiveBookingIsUniquePerSlot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	slots := hourlySlots(p.ID, time.Date(2026, time.March, 3, 3, 30, 0, 0, time.UTC), 1)
	require.NoError(t, db.Create(&slots).Error)

	parent := model.User{DisplayName: "Parent"}
	require.NoError(t, db.Create(&parent).Error)
	child := model.Child{ParentID: parent.ID, FullName: "Child"}
	require.NoError(t, db.Create(&child).Error)

	repo := NewGormBookingRepository(db)
	first := model.Booking{ParentID: parent.ID, ChildID: child.ID, ProviderID: p.ID, SlotInstanceID: slots[0].ID, Status: model.BookingStatusScheduled}
	require.NoError(t, repo.Create(ctx, &first))

	dup := model.Booking{ParentID: parent.ID, ChildID: child.ID, ProviderID: p.ID, SlotInstanceID: slots[0].ID, Status: model.BookingStatusScheduled}
	assert.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	ok, err := repo.TransitionStatus(ctx, first.ID, model.BookingStatusScheduled, model.BookingStatusCancelled, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.TransitionStatus(ctx, first.ID, model.BookingStatusScheduled, model.BookingStatusCompleted, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	again := model.Booking{ParentID: parent.ID, ChildID: child.ID, ProviderID: p.ID, SlotInstanceID: slots[0].ID, Status: model.BookingStatusScheduled}
	assert.NoError(t, repo.Create(ctx, &again), "cancelled bookings release the slot")
}

func TestLeaveRepository_DecideAndLiveUniqueness(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	repo := NewGormLeaveRepository(db)
	day := time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC)

	leave := model.LeaveRequest{ProviderID: p.ID, Date: datatypes.Date(day), Type: model.LeaveTypeCasual, Status: model.LeaveStatusPending}
	require.NoError(t, repo.Create(ctx, &leave))

	exists, err := repo.ExistsLive(ctx, p.ID, day)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := model.LeaveRequest{ProviderID: p.ID, Date: datatypes.Date(day), Type: model.LeaveTypeSick, Status: model.LeaveStatusPending}
	assert.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	admin := uuid.New()
	ok, err := repo.Decide(ctx, leave.ID, model.LeaveStatusRejected, admin, "clinic is short-staffed", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Decide(ctx, leave.ID, model.LeaveStatusApproved, admin, "", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "a decided request cannot be decided again")

	exists, err = repo.ExistsLive(ctx, p.ID, day)
	require.NoError(t, err)
	assert.False(t, exists, "rejected requests free the day")

	again := model.LeaveRequest{ProviderID: p.ID, Date: datatypes.Date(day), Type: model.LeaveTypeSick, Status: model.LeaveStatusPending}
	require.NoError(t, repo.Create(ctx, &again))
	ok, err = repo.Decide(ctx, again.ID, model.LeaveStatusApproved, admin, "", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.CountApproved(ctx, p.ID, model.LeaveTypeSick, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	days, err := repo.ApprovedDays(ctx, p.ID, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day}, days)
}

func TestLeaveRepository_UpsertBalanceOverwrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	p := seedProvider(t, db)
	repo := NewGormLeaveRepository(db)

	require.NoError(t, repo.UpsertBalance(ctx, &model.LeaveBalance{
		ProviderID: p.ID, Year: 2026, Month: time.March,
		Balances: model.Balances{CasualRemaining: 4, SickRemaining: 5, FestiveRemaining: 5, OptionalRemaining: 1},
	}))
	require.NoError(t, repo.UpsertBalance(ctx, &model.LeaveBalance{
		ProviderID: p.ID, Year: 2026, Month: time.March,
		Balances: model.Balances{CasualRemaining: 4, SickRemaining: 5, FestiveRemaining: 5, OptionalRemaining: 0},
	}))

	b, err := repo.GetBalance(ctx, p.ID, 2026, time.March)
	require.NoError(t, err)
	assert.Equal(t, 0, b.OptionalRemaining)
	assert.Equal(t, 4, b.CasualRemaining)

	var n int64
	require.NoError(t, db.Model(&model.LeaveBalance{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestUserRepository_Roles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormUserRepository(db)

	admin := model.User{DisplayName: "Admin"}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, repo.SetRole(ctx, admin.ID, model.RoleCodeProvider))
	require.NoError(t, repo.SetRole(ctx, admin.ID, model.RoleCodeAdmin))

	role, err := repo.GetRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCodeAdmin, role)

	ids, err := repo.IDsWithRole(ctx, model.RoleCodeAdmin)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{admin.ID}, ids)

	ids, err = repo.IDsWithRole(ctx, model.RoleCodeProvider)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
