package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/apperr"
	"github.com/Leganyst/therapy-booking/internal/calendar"
	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/repository"
	"github.com/Leganyst/therapy-booking/internal/telemetry"
)

const DefaultApprovalTimeout = 15 * time.Second

type LeaveAction string

const (
	LeaveActionApprove LeaveAction = "approve"
	LeaveActionReject  LeaveAction = "reject"
)

type LeaveOptions struct {
	// ApprovalTimeout bounds the approval transaction, which may cancel a full day of bookings.
	ApprovalTimeout time.Duration
	Clock           Clock
}

// LeaveService runs the leave request state machine and its balance ledger.
type LeaveService struct {
	db              *gorm.DB
	notifier        Notifier
	logger          zerolog.Logger
	clock           Clock
	approvalTimeout time.Duration
}

func NewLeaveService(db *gorm.DB, notifier Notifier, logger zerolog.Logger, opts LeaveOptions) *LeaveService {
	timeout := opts.ApprovalTimeout
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &LeaveService{
		db:              db,
		notifier:        notifier,
		logger:          logger.With().Str("component", "leave").Logger(),
		clock:           opts.Clock,
		approvalTimeout: timeout,
	}
}

type RequestLeaveInput struct {
	ProviderID uuid.UUID       `validate:"required"`
	Date       time.Time       `validate:"required"`
	Type       model.LeaveType `validate:"required,oneof=CASUAL SICK FESTIVE OPTIONAL"`
	Reason     string          `validate:"max=2000"`
}

type DecideLeaveInput struct {
	LeaveID    uuid.UUID   `validate:"required"`
	AdminID    uuid.UUID   `validate:"required"`
	Action     LeaveAction `validate:"required,oneof=approve reject"`
	AdminNotes string      `validate:"max=2000"`
}

// LeaveDecision is the outcome of DecideLeave.
type LeaveDecision struct {
	Leave             *model.LeaveRequest
	Balances          model.Balances
	DeactivatedSlots  int64
	CancelledBookings []uuid.UUID
}

// RequestLeave records a PENDING request for a provider-local civil date,
// capturing what the balances become if it is approved.
func (s *LeaveService) RequestLeave(ctx context.Context, in RequestLeaveInput) (*model.LeaveRequest, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	provider, loc, err := loadProvider(ctx, s.db, in.ProviderID)
	if err != nil {
		return nil, err
	}

	day := calendar.DateOf(in.Date)
	if day.Before(calendar.TodayIn(s.clock.now(), loc)) {
		return nil, apperr.New(apperr.KindInvalidDate, "leave date is in the past")
	}

	var leave *model.LeaveRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.NewGormProviderRepository(tx).LockByID(ctx, provider.ID); err != nil {
			return storeErr("lock provider", err)
		}
		leaves := repository.NewGormLeaveRepository(tx)

		exists, err := leaves.ExistsLive(ctx, provider.ID, day)
		if err != nil {
			return storeErr("leave lookup", err)
		}
		if exists {
			return apperr.ErrDuplicateLeave
		}

		balances, err := s.balancesFor(ctx, leaves, provider.ID, day)
		if err != nil {
			return err
		}
		if balances.Remaining(in.Type) <= 0 {
			return quotaExhausted(in.Type)
		}

		leave = &model.LeaveRequest{
			ProviderID: provider.ID,
			Date:       datatypes.Date(day),
			Type:       in.Type,
			Status:     model.LeaveStatusPending,
			Reason:     strings.TrimSpace(in.Reason),
			Balances:   balances.Decrement(in.Type),
		}
		if err := leaves.Create(ctx, leave); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrDuplicateLeave
			}
			return storeErr("create leave", err)
		}

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeLeaveRequested,
			UserID:     repository.UUIDPtr(provider.UserID),
			ProviderID: repository.UUIDPtr(provider.ID),
			LeaveID:    repository.UUIDPtr(leave.ID),
			Details:    fmt.Sprintf("type=%s date=%s", in.Type, day.Format(time.DateOnly)),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, fmt.Sprintf("%s requested %s leave for %s.", provider.DisplayName, leave.Type, day.Format(time.DateOnly)))
	s.notifier.Send(provider.UserID, fmt.Sprintf("Your %s leave request for %s was submitted.", leave.Type, day.Format(time.DateOnly)))

	s.logger.Info().
		Str("leave_id", leave.ID.String()).
		Str("provider_id", provider.ID.String()).
		Str("type", string(leave.Type)).
		Msg("leave requested")
	return leave, nil
}

// DecideLeave approves or rejects a PENDING request. Approval is one
// transaction: status, ledger, slot withdrawal and booking cancellation either
// all commit or none do.
func (s *LeaveService) DecideLeave(ctx context.Context, in DecideLeaveInput) (*LeaveDecision, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, in.AdminID); err != nil {
		return nil, err
	}
	if in.Action == LeaveActionReject {
		return s.reject(ctx, in)
	}
	return s.approve(ctx, in)
}

func (s *LeaveService) reject(ctx context.Context, in DecideLeaveInput) (*LeaveDecision, error) {
	now := s.clock.now()

	var leave *model.LeaveRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leaves := repository.NewGormLeaveRepository(tx)

		ok, err := leaves.Decide(ctx, in.LeaveID, model.LeaveStatusRejected, in.AdminID, in.AdminNotes, now)
		if err != nil {
			return storeErr("reject leave", err)
		}
		leave, err = leaves.GetByID(ctx, in.LeaveID)
		if err != nil {
			return storeErr("leave", err)
		}
		if !ok {
			return apperr.ErrAlreadyProcessed
		}

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeLeaveRejected,
			UserID:     repository.UUIDPtr(in.AdminID),
			ProviderID: repository.UUIDPtr(leave.ProviderID),
			LeaveID:    repository.UUIDPtr(leave.ID),
			Details:    in.AdminNotes,
		})
	})
	if err != nil {
		telemetry.LeaveDecisions.WithLabelValues(string(LeaveActionReject), string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	telemetry.LeaveDecisions.WithLabelValues(string(LeaveActionReject), "ok").Inc()

	balances, err := s.GetBalances(ctx, leave.ProviderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("leave_id", leave.ID.String()).Msg("balances after rejection")
	}

	if provider, err := repository.NewGormProviderRepository(s.db).GetByID(ctx, leave.ProviderID); err == nil {
		msg := fmt.Sprintf("Your %s leave request for %s was rejected.", leave.Type, leave.Day().Format(time.DateOnly))
		if in.AdminNotes != "" {
			msg += " Notes: " + in.AdminNotes
		}
		s.notifier.Send(provider.UserID, msg)
	}

	return &LeaveDecision{Leave: leave, Balances: balances}, nil
}

func (s *LeaveService) approve(ctx context.Context, in DecideLeaveInput) (*LeaveDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.approvalTimeout)
	defer cancel()

	started := time.Now()
	now := s.clock.now()

	var (
		decision = &LeaveDecision{}
		provider *model.Provider
		affected []model.Booking
		loc      *time.Location
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leaves := repository.NewGormLeaveRepository(tx)

		leave, err := leaves.GetByID(ctx, in.LeaveID)
		if err != nil {
			return storeErr("leave", err)
		}

		// approvals and requests of one provider queue up here until commit
		provider, err = repository.NewGormProviderRepository(tx).LockByID(ctx, leave.ProviderID)
		if err != nil {
			return storeErr("lock provider", err)
		}
		if loc, err = calendar.LoadLocation(provider.TimeZone); err != nil {
			return apperr.Wrap(apperr.KindConfigurationMissing, "provider time zone is not configured", err)
		}

		// re-read under the lock: a concurrent decision may have committed meanwhile
		if leave, err = leaves.GetByID(ctx, in.LeaveID); err != nil {
			return storeErr("leave", err)
		}
		if leave.Status != model.LeaveStatusPending {
			return apperr.ErrAlreadyProcessed
		}
		day := leave.Day()

		// the snapshot must still agree with the history it was derived from
		fresh, err := s.balancesFor(ctx, leaves, provider.ID, day)
		if err != nil {
			return err
		}
		remaining := fresh.Remaining(leave.Type)
		if remaining <= 0 {
			return quotaExhausted(leave.Type)
		}
		if remaining-1 != leave.Balances.Remaining(leave.Type) {
			return apperr.New(apperr.KindQuotaExhausted, "leave balance changed since the request was made")
		}

		ok, err := leaves.Decide(ctx, leave.ID, model.LeaveStatusApproved, in.AdminID, in.AdminNotes, now)
		if err != nil {
			return storeErr("approve leave", err)
		}
		if !ok {
			return apperr.ErrAlreadyProcessed
		}

		decision.Balances = fresh.Decrement(leave.Type)
		if err := leaves.UpsertBalance(ctx, &model.LeaveBalance{
			ProviderID: provider.ID,
			Year:       day.Year(),
			Month:      day.Month(),
			Balances:   decision.Balances,
		}); err != nil {
			return storeErr("update leave balance", err)
		}

		window := calendar.DayBounds(day, loc)
		slots := repository.NewGormSlotRepository(tx)
		decision.DeactivatedSlots, err = slots.DeactivateRange(ctx, provider.ID, window.Start, window.End)
		if err != nil {
			return storeErr("deactivate slots", err)
		}

		bookings := repository.NewGormBookingRepository(tx)
		affected, err = bookings.ScheduledInRange(ctx, provider.ID, window.Start, window.End)
		if err != nil {
			return storeErr("affected bookings", err)
		}
		bookingIDs := make([]uuid.UUID, 0, len(affected))
		slotIDs := make([]uuid.UUID, 0, len(affected))
		for _, b := range affected {
			bookingIDs = append(bookingIDs, b.ID)
			slotIDs = append(slotIDs, b.SlotInstanceID)
		}
		if _, err := bookings.CancelByProvider(ctx, bookingIDs, now); err != nil {
			return storeErr("cancel bookings", err)
		}
		if _, err := slots.Release(ctx, slotIDs); err != nil {
			return storeErr("release slots", err)
		}
		decision.CancelledBookings = bookingIDs

		leave.Status = model.LeaveStatusApproved
		leave.DecidedBy = &in.AdminID
		leave.DecidedAt = &now
		if in.AdminNotes != "" {
			leave.AdminNotes = in.AdminNotes
		}
		decision.Leave = leave

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeLeaveApproved,
			UserID:     repository.UUIDPtr(in.AdminID),
			ProviderID: repository.UUIDPtr(provider.ID),
			LeaveID:    repository.UUIDPtr(leave.ID),
			Details:    fmt.Sprintf("deactivated=%d cancelled=%d", decision.DeactivatedSlots, len(bookingIDs)),
		})
	})
	telemetry.ApprovalDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		telemetry.LeaveDecisions.WithLabelValues(string(LeaveActionApprove), string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	telemetry.LeaveDecisions.WithLabelValues(string(LeaveActionApprove), "ok").Inc()
	telemetry.CascadeCancellations.Add(float64(len(affected)))

	s.notifyApproval(provider, decision, affected)

	s.logger.Info().
		Str("leave_id", decision.Leave.ID.String()).
		Str("provider_id", provider.ID.String()).
		Int64("deactivated_slots", decision.DeactivatedSlots).
		Int("cancelled_bookings", len(affected)).
		Msg("leave approved")
	return decision, nil
}

func (s *LeaveService) notifyApproval(provider *model.Provider, d *LeaveDecision, affected []model.Booking) {
	b := d.Balances
	leaveDay := d.Leave.Day()
	s.notifier.Send(provider.UserID, fmt.Sprintf(
		"Your %s leave for %s was approved. Remaining in %d: casual %d, sick %d, festive %d; optional in %s: %d.",
		d.Leave.Type, leaveDay.Format(time.DateOnly),
		leaveDay.Year(), b.CasualRemaining, b.SickRemaining, b.FestiveRemaining,
		leaveDay.Format("January 2006"), b.OptionalRemaining,
	))

	day := d.Leave.Day().Format("Monday, 02 Jan 2006")
	notified := make(map[uuid.UUID]struct{}, len(affected))
	for _, booking := range affected {
		if _, seen := notified[booking.ParentID]; seen {
			continue
		}
		notified[booking.ParentID] = struct{}{}
		s.notifier.Send(booking.ParentID, fmt.Sprintf(
			"Your session with %s on %s was cancelled because the therapist is on leave. Please book another slot.",
			provider.DisplayName, day,
		))
	}
}

// GetBalances derives the provider's remaining entitlements for the current
// year and month in the provider's zone from approved history. Leave is charged
// to the year and month of its date, so a request for a day in another period
// does not show up here until that period begins.
func (s *LeaveService) GetBalances(ctx context.Context, providerID uuid.UUID) (model.Balances, error) {
	provider, loc, err := loadProvider(ctx, s.db, providerID)
	if err != nil {
		return model.Balances{}, err
	}
	today := calendar.TodayIn(s.clock.now(), loc)
	leaves := repository.NewGormLeaveRepository(s.db)
	b, err := s.balancesFor(ctx, leaves, provider.ID, today)
	if err != nil {
		return b, err
	}

	// the month's ledger row is written by every approval in that month, so its
	// optional entitlement must match history
	ledger, err := leaves.GetBalance(ctx, provider.ID, today.Year(), today.Month())
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		s.logger.Warn().Err(err).Str("provider_id", provider.ID.String()).Msg("leave ledger lookup failed")
	case ledger.OptionalRemaining != b.OptionalRemaining:
		s.logger.Warn().
			Str("provider_id", provider.ID.String()).
			Int("ledger", ledger.OptionalRemaining).
			Int("derived", b.OptionalRemaining).
			Msg("leave ledger disagrees with approved history")
	}
	return b, nil
}

// requireAdmin checks the deciding user against the stored role, not just the caller's claim.
func (s *LeaveService) requireAdmin(ctx context.Context, userID uuid.UUID) error {
	role, err := repository.NewGormUserRepository(s.db).GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrForbidden
		}
		return storeErr("user role", err)
	}
	if role != model.RoleCodeAdmin {
		return apperr.ErrForbidden
	}
	return nil
}

// balancesFor computes the balances of the year and month containing day.
func (s *LeaveService) balancesFor(ctx context.Context, leaves repository.LeaveRepository, providerID uuid.UUID, day time.Time) (model.Balances, error) {
	yearFrom, yearTo := calendar.YearBounds(day.Year())
	annual := func(t model.LeaveType) (int, error) {
		n, err := leaves.CountApproved(ctx, providerID, t, yearFrom, yearTo)
		if err != nil {
			return 0, storeErr("count approved leave", err)
		}
		return max(model.AnnualLeaveQuota-int(n), 0), nil
	}

	var (
		b   model.Balances
		err error
	)
	if b.CasualRemaining, err = annual(model.LeaveTypeCasual); err != nil {
		return b, err
	}
	if b.SickRemaining, err = annual(model.LeaveTypeSick); err != nil {
		return b, err
	}
	if b.FestiveRemaining, err = annual(model.LeaveTypeFestive); err != nil {
		return b, err
	}

	monthFrom, monthTo := calendar.MonthBounds(day.Year(), day.Month())
	optional, err := leaves.CountApproved(ctx, providerID, model.LeaveTypeOptional, monthFrom, monthTo)
	if err != nil {
		return b, storeErr("count approved leave", err)
	}
	b.OptionalRemaining = max(model.MonthlyOptionalQuota-int(optional), 0)
	return b, nil
}

func quotaExhausted(t model.LeaveType) error {
	if t == model.LeaveTypeOptional {
		return apperr.New(apperr.KindQuotaExhausted, "optional leave already used this month")
	}
	return apperr.New(apperr.KindQuotaExhausted, fmt.Sprintf("no %s leaves remaining this year", strings.ToLower(string(t))))
}

func (s *LeaveService) notifyAdmins(ctx context.Context, message string) {
	admins, err := repository.NewGormUserRepository(s.db).IDsWithRole(ctx, model.RoleCodeAdmin)
	if err != nil {
		s.logger.Warn().Err(err).Msg("admin lookup for notification failed")
		return
	}
	for _, id := range admins {
		s.notifier.Send(id, message)
	}
}
