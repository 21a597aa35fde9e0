package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/therapy-booking/internal/calendar"
	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/repository"
)

// Monday 2 March 2026, 06:00 in Asia/Kolkata.
var kolkataNow = time.Date(2026, time.March, 2, 0, 30, 0, 0, time.UTC)

var standardTimes = []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection: every goroutine sees the same in-memory database and writers serialize
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type sentMessage struct {
	UserID  uuid.UUID
	Message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *fakeNotifier) Send(userID uuid.UUID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{UserID: userID, Message: message})
}

func (n *fakeNotifier) to(userID uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.UserID == userID {
			out = append(out, m.Message)
		}
	}
	return out
}

type fakeConsent map[uuid.UUID]bool

func (c fakeConsent) HasConsent(_ context.Context, bookingID uuid.UUID) (bool, error) {
	return c[bookingID], nil
}

type family struct {
	parent model.User
	child  model.Child
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	now      time.Time
	loc      *time.Location
	notifier *fakeNotifier
	consent  fakeConsent

	provider     model.Provider
	providerUser model.User
	admin        model.User

	materializer *Materializer
	bookings     *BookingService
	leaves       *LeaveService
}

func newFixture(t *testing.T, zone string, now time.Time) *fixture {
	t.Helper()

	loc, err := calendar.LoadLocation(zone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       newTestDB(t),
		now:      now,
		loc:      loc,
		notifier: &fakeNotifier{},
		consent:  fakeConsent{},
	}

	f.providerUser = model.User{DisplayName: "Dr. Rao", Email: "rao@example.com"}
	f.mustCreate(&f.providerUser)
	f.provider = model.Provider{UserID: f.providerUser.ID, DisplayName: "Dr. Rao", TimeZone: zone}
	f.mustCreate(&f.provider)

	f.admin = model.User{DisplayName: "Admin"}
	f.mustCreate(&f.admin)
	users := repository.NewGormUserRepository(f.db)
	if err := users.SetRole(f.ctx, f.admin.ID, model.RoleCodeAdmin); err != nil {
		t.Fatalf("set admin role: %v", err)
	}
	if err := users.SetRole(f.ctx, f.providerUser.ID, model.RoleCodeProvider); err != nil {
		t.Fatalf("set provider role: %v", err)
	}

	clock := Clock(func() time.Time { return f.now })
	logger := zerolog.Nop()
	f.materializer = NewMaterializer(f.db, logger, MaterializerOptions{Clock: clock})
	f.bookings = NewBookingService(f.db, f.notifier, f.consent, logger, BookingOptions{Clock: clock})
	f.leaves = NewLeaveService(f.db, f.notifier, logger, LeaveOptions{Clock: clock})
	return f
}

func (f *fixture) mustCreate(v any) {
	f.t.Helper()
	if err := f.db.Create(v).Error; err != nil {
		f.t.Fatalf("create %T: %v", v, err)
	}
}

func (f *fixture) newFamily(name string) family {
	f.t.Helper()
	parent := model.User{DisplayName: name}
	f.mustCreate(&parent)
	child := model.Child{ParentID: parent.ID, FullName: name + " Jr.", ClinicalNotes: "speech therapy, week 3"}
	f.mustCreate(&child)
	return family{parent: parent, child: child}
}

func (f *fixture) setStandardTemplate() {
	f.t.Helper()
	if _, _, err := f.materializer.SetTemplate(f.ctx, SetTemplateInput{
		ProviderID:     f.provider.ID,
		DailySlotTimes: standardTimes,
	}); err != nil {
		f.t.Fatalf("set template: %v", err)
	}
}

// day returns provider-local today + n as a civil date.
func (f *fixture) day(n int) time.Time {
	return calendar.AddDays(calendar.TodayIn(f.now, f.loc), n)
}

// slotAt returns the slot starting at hh:mm local on the civil date.
func (f *fixture) slotAt(date time.Time, hhmm string) model.SlotInstance {
	f.t.Helper()
	tod, err := calendar.ParseTimeOfDay(hhmm)
	if err != nil {
		f.t.Fatalf("parse %q: %v", hhmm, err)
	}
	var slot model.SlotInstance
	start := calendar.LocalInstant(date, tod, f.loc)
	if err := f.db.First(&slot, "provider_id = ? AND start_instant = ?", f.provider.ID, start).Error; err != nil {
		f.t.Fatalf("slot at %s %s: %v", date.Format(time.DateOnly), hhmm, err)
	}
	return slot
}

func (f *fixture) reloadSlot(id uuid.UUID) model.SlotInstance {
	f.t.Helper()
	var slot model.SlotInstance
	if err := f.db.First(&slot, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload slot: %v", err)
	}
	return slot
}

func (f *fixture) reloadBooking(id uuid.UUID) model.Booking {
	f.t.Helper()
	var b model.Booking
	if err := f.db.First(&b, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload booking: %v", err)
	}
	return b
}

func (f *fixture) book(fam family, slot model.SlotInstance) *model.Booking {
	f.t.Helper()
	b, err := f.bookings.BookSlot(f.ctx, BookSlotInput{
		ParentID:       fam.parent.ID,
		ChildID:        fam.child.ID,
		SlotInstanceID: slot.ID,
	})
	if err != nil {
		f.t.Fatalf("book slot: %v", err)
	}
	return b
}

func (f *fixture) countSlots(query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	if err := f.db.Model(&model.SlotInstance{}).Where(query, args...).Count(&n).Error; err != nil {
		f.t.Fatalf("count slots: %v", err)
	}
	return n
}
