package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/apperr"
	"github.com/Leganyst/therapy-booking/internal/calendar"
	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/repository"
	"github.com/Leganyst/therapy-booking/internal/telemetry"
)

const DefaultBookingWindowDays = 30

type BookingOptions struct {
	BookingWindowDays int
	Clock             Clock
}

// BookingService reserves slots and manages the booking lifecycle.
type BookingService struct {
	db       *gorm.DB
	notifier Notifier
	consent  ConsentChecker
	logger   zerolog.Logger
	clock    Clock
	window   int
}

func NewBookingService(
	db *gorm.DB,
	notifier Notifier,
	consent ConsentChecker,
	logger zerolog.Logger,
	opts BookingOptions,
) *BookingService {
	window := opts.BookingWindowDays
	if window <= 0 {
		window = DefaultBookingWindowDays
	}
	return &BookingService{
		db:       db,
		notifier: notifier,
		consent:  consent,
		logger:   logger.With().Str("component", "booking").Logger(),
		clock:    opts.Clock,
		window:   window,
	}
}

type BookSlotInput struct {
	ParentID       uuid.UUID `validate:"required"`
	ChildID        uuid.UUID `validate:"required"`
	SlotInstanceID uuid.UUID `validate:"required"`
	Comment        string    `validate:"max=1000"`
}

// BookSlot reserves the slot and creates a SCHEDULED booking in one
// transaction. A concurrent winner makes every other caller fail with
// SlotUnavailable; any later rejection rolls the reservation back.
func (s *BookingService) BookSlot(ctx context.Context, in BookSlotInput) (*model.Booking, error) {
	booking, provider, err := s.bookSlot(ctx, in)
	if err != nil {
		telemetry.BookingAttempts.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	telemetry.BookingAttempts.WithLabelValues("booked").Inc()

	when := calendar.FormatSlotForUser(calendar.TimeRange{Start: booking.Slot.StartInstant, End: booking.Slot.EndInstant}, s.zoneOf(provider))
	s.notifier.Send(in.ParentID, fmt.Sprintf("Your session with %s on %s is confirmed.", provider.DisplayName, when))
	s.notifier.Send(provider.UserID, fmt.Sprintf("New session booked on %s.", when))

	s.logger.Info().
		Str("booking_id", booking.ID.String()).
		Str("slot_id", in.SlotInstanceID.String()).
		Str("parent_id", in.ParentID.String()).
		Msg("slot booked")
	return booking, nil
}

func (s *BookingService) bookSlot(ctx context.Context, in BookSlotInput) (*model.Booking, *model.Provider, error) {
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}
	now := s.clock.now()

	var (
		booking  *model.Booking
		provider *model.Provider
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slots := repository.NewGormSlotRepository(tx)

		reserved, err := slots.TryReserve(ctx, in.SlotInstanceID)
		if err != nil {
			return storeErr("reserve slot", err)
		}
		if !reserved {
			if _, err := slots.GetByID(ctx, in.SlotInstanceID); err != nil {
				return storeErr("slot", err)
			}
			return apperr.ErrSlotUnavailable
		}

		slot, err := slots.GetByID(ctx, in.SlotInstanceID)
		if err != nil {
			return storeErr("slot", err)
		}
		if slot.StartInstant.Before(now) || slot.StartInstant.After(now.AddDate(0, 0, s.window)) {
			return apperr.ErrOutOfBookingWindow
		}
		if calendar.IsWeekendUTC(slot.StartInstant) {
			return apperr.ErrWeekendNotBookable
		}

		if _, err := repository.NewGormUserRepository(tx).ChildOfParent(ctx, in.ChildID, in.ParentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrChildNotFound
			}
			return storeErr("child", err)
		}

		provider, err = repository.NewGormProviderRepository(tx).GetByID(ctx, slot.ProviderID)
		if err != nil {
			return storeErr("provider", err)
		}

		booking = &model.Booking{
			ParentID:       in.ParentID,
			ChildID:        in.ChildID,
			ProviderID:     slot.ProviderID,
			SlotInstanceID: slot.ID,
			Status:         model.BookingStatusScheduled,
			Comment:        in.Comment,
		}
		if err := repository.NewGormBookingRepository(tx).Create(ctx, booking); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrSlotUnavailable
			}
			return storeErr("create booking", err)
		}
		booking.Slot = slot

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeBookingCreated,
			UserID:     repository.UUIDPtr(in.ParentID),
			ProviderID: repository.UUIDPtr(slot.ProviderID),
			BookingID:  repository.UUIDPtr(booking.ID),
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return booking, provider, nil
}

// ListAvailableSlots returns active, unbooked slots of the provider's civil date.
func (s *BookingService) ListAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]model.SlotInstance, error) {
	_, loc, err := loadProvider(ctx, s.db, providerID)
	if err != nil {
		return nil, err
	}
	day := calendar.DayBounds(calendar.DateOf(date), loc)
	slots, err := repository.NewGormSlotRepository(s.db).ListAvailable(ctx, providerID, day.Start, day.End)
	if err != nil {
		return nil, storeErr("list available slots", err)
	}
	return slots, nil
}

// CancelBooking lets a parent cancel their own SCHEDULED booking. The slot
// becomes bookable again unless the template no longer offers its start time.
func (s *BookingService) CancelBooking(ctx context.Context, parentID, bookingID uuid.UUID) (*model.Booking, error) {
	now := s.clock.now()

	var booking *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookings := repository.NewGormBookingRepository(tx)

		b, err := bookings.GetByID(ctx, bookingID)
		if err != nil {
			return storeErr("booking", err)
		}
		if b.ParentID != parentID {
			return apperr.NotFound("booking", nil)
		}

		ok, err := bookings.TransitionStatus(ctx, b.ID, model.BookingStatusScheduled, model.BookingStatusCancelled, &now)
		if err != nil {
			return storeErr("cancel booking", err)
		}
		if !ok {
			return apperr.ErrBookingNotScheduled
		}
		slots := repository.NewGormSlotRepository(tx)
		if _, err := slots.Release(ctx, []uuid.UUID{b.SlotInstanceID}); err != nil {
			return storeErr("release slot", err)
		}
		// a slot kept only because it was booked when the template changed goes away with the booking
		if b.Slot != nil {
			off, err := offTemplate(ctx, tx, b.Slot)
			if err != nil {
				return err
			}
			if off {
				if _, err := slots.SetActive(ctx, []uuid.UUID{b.SlotInstanceID}, false); err != nil {
					return storeErr("withdraw slot", err)
				}
			}
		}

		b.Status = model.BookingStatusCancelled
		b.CancelledAt = &now
		booking = b

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeBookingCancelled,
			UserID:     repository.UUIDPtr(parentID),
			ProviderID: repository.UUIDPtr(b.ProviderID),
			BookingID:  repository.UUIDPtr(b.ID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyProvider(ctx, booking, "A session on %s was cancelled by the parent.")
	return booking, nil
}

// CompleteBooking marks a SCHEDULED booking as COMPLETED. A non-nil providerID
// restricts the call to that provider's bookings.
func (s *BookingService) CompleteBooking(ctx context.Context, providerID, bookingID uuid.UUID) (*model.Booking, error) {
	var booking *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookings := repository.NewGormBookingRepository(tx)

		b, err := bookings.GetByID(ctx, bookingID)
		if err != nil {
			return storeErr("booking", err)
		}
		if providerID != uuid.Nil && b.ProviderID != providerID {
			return apperr.NotFound("booking", nil)
		}

		ok, err := bookings.TransitionStatus(ctx, b.ID, model.BookingStatusScheduled, model.BookingStatusCompleted, nil)
		if err != nil {
			return storeErr("complete booking", err)
		}
		if !ok {
			return apperr.ErrBookingNotScheduled
		}
		b.Status = model.BookingStatusCompleted
		booking = b

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeBookingCompleted,
			ProviderID: repository.UUIDPtr(b.ProviderID),
			BookingID:  repository.UUIDPtr(b.ID),
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// SetConsent grants or withdraws the provider's access to the child's
// sensitive fields for one of the parent's bookings. Cancelled bookings accept
// only a withdrawal.
func (s *BookingService) SetConsent(ctx context.Context, parentID, bookingID uuid.UUID, granted bool) error {
	now := s.clock.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := repository.NewGormBookingRepository(tx).GetByID(ctx, bookingID)
		if err != nil {
			return storeErr("booking", err)
		}
		if b.ParentID != parentID {
			return apperr.NotFound("booking", nil)
		}
		if granted && b.Cancelled() {
			return apperr.New(apperr.KindInvalidState, "cannot share data for a cancelled booking")
		}

		consents := repository.NewGormConsentRepository(tx)
		eventType := model.EventTypeConsentGranted
		if granted {
			err = consents.Grant(ctx, b.ID, parentID, now)
		} else {
			eventType = model.EventTypeConsentRevoked
			err = consents.Revoke(ctx, b.ID, now)
		}
		if err != nil {
			return storeErr("consent", err)
		}

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  eventType,
			UserID:     repository.UUIDPtr(parentID),
			ProviderID: repository.UUIDPtr(b.ProviderID),
			BookingID:  repository.UUIDPtr(b.ID),
		})
	})
}

// BookingView is a booking as returned to a caller; Redacted marks that the
// child's sensitive fields were withheld.
type BookingView struct {
	model.Booking
	Redacted bool
}

// ListBookings pages through the bookings visible to the caller. Parents see
// their own; providers see theirs with child details redacted unless consent
// was granted for that booking; admins see everything.
func (s *BookingService) ListBookings(ctx context.Context, caller calendar.Caller, page, pageSize int) (calendar.Page[BookingView], error) {
	var (
		filter repository.BookingFilter
		redact bool
	)
	switch caller.Role {
	case calendar.RoleParent:
		filter.ParentID = caller.ID
	case calendar.RoleProvider:
		provider, err := repository.NewGormProviderRepository(s.db).GetByUserID(ctx, caller.ID)
		if err != nil {
			return calendar.Page[BookingView]{}, storeErr("provider", err)
		}
		filter.ProviderID = provider.ID
		redact = true
	case calendar.RoleAdmin:
	default:
		return calendar.Page[BookingView]{}, apperr.ErrForbidden
	}

	limit, offset := calendar.Offset(page, pageSize)
	bookings, total, err := repository.NewGormBookingRepository(s.db).List(ctx, filter, limit, offset)
	if err != nil {
		return calendar.Page[BookingView]{}, storeErr("list bookings", err)
	}

	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		v := BookingView{Booking: b}
		if redact {
			ok, err := s.consent.HasConsent(ctx, b.ID)
			if err != nil {
				return calendar.Page[BookingView]{}, storeErr("consent", err)
			}
			if !ok {
				redactChild(&v)
			}
		}
		views = append(views, v)
	}
	return calendar.NewPage(views, page, pageSize, total), nil
}

func redactChild(v *BookingView) {
	v.Redacted = true
	if v.Child == nil {
		return
	}
	child := *v.Child
	child.DateOfBirth = nil
	child.ClinicalNotes = ""
	v.Child = &child
}

func (s *BookingService) notifyProvider(ctx context.Context, b *model.Booking, format string) {
	provider, err := repository.NewGormProviderRepository(s.db).GetByID(ctx, b.ProviderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("provider lookup for notification failed")
		return
	}
	when := b.CreatedAt.String()
	if b.Slot != nil {
		when = calendar.FormatSlotForUser(calendar.TimeRange{Start: b.Slot.StartInstant, End: b.Slot.EndInstant}, s.zoneOf(provider))
	}
	s.notifier.Send(provider.UserID, fmt.Sprintf(format, when))
}

// zoneOf falls back to UTC for message text when the provider's zone does not load.
func (s *BookingService) zoneOf(p *model.Provider) *time.Location {
	loc, err := calendar.LoadLocation(p.TimeZone)
	if err != nil {
		s.logger.Debug().Err(err).Str("provider_id", p.ID.String()).Msg("provider zone unavailable, formatting in UTC")
		return time.UTC
	}
	return loc
}
