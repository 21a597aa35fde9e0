package server

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/apperr"
	"github.com/Leganyst/therapy-booking/internal/calendar"
	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/service"
)

// providerFor resolves the provider a call acts on. Providers act on their own
// record; admins name one explicitly.
func (s *SchedulingServer) providerFor(ctx context.Context, caller calendar.Caller, requested uuid.UUID) (uuid.UUID, error) {
	switch caller.Role {
	case calendar.RoleAdmin:
		if requested == uuid.Nil {
			return uuid.Nil, apperr.Validation("provider_id: is required", nil)
		}
		return requested, nil
	case calendar.RoleProvider:
		own, err := s.providers.GetByUserID(ctx, caller.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, apperr.ErrForbidden
			}
			return uuid.Nil, err
		}
		if requested != uuid.Nil && requested != own.ID {
			return uuid.Nil, apperr.ErrForbidden
		}
		return own.ID, nil
	}
	return uuid.Nil, apperr.ErrForbidden
}

func requireRole(caller calendar.Caller, roles ...calendar.Role) error {
	for _, r := range roles {
		if caller.Role == r {
			return nil
		}
	}
	return apperr.ErrForbidden
}

func (s *SchedulingServer) setTemplate(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	requested := f.optUUID("provider_id")
	times := f.strings("daily_slot_times")
	horizon := f.int("horizon_days")
	if f.err != nil {
		return nil, f.err
	}
	providerID, err := s.providerFor(ctx, caller, requested)
	if err != nil {
		return nil, err
	}

	tpl, inserted, err := s.materializer.SetTemplate(ctx, service.SetTemplateInput{
		ProviderID:     providerID,
		DailySlotTimes: times,
		HorizonDays:    horizon,
	})
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"template": templateValue(tpl),
		"inserted": inserted,
	})
}

func (s *SchedulingServer) materialize(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	requested := f.optUUID("provider_id")
	horizon := f.int("horizon_days")
	if f.err != nil {
		return nil, f.err
	}
	providerID, err := s.providerFor(ctx, caller, requested)
	if err != nil {
		return nil, err
	}

	inserted, err := s.materializer.Materialize(ctx, providerID, horizon)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"inserted": inserted})
}

func (s *SchedulingServer) getSlotsForDate(ctx context.Context, _ calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	providerID := f.uuid("provider_id")
	date := f.date("date")
	if f.err != nil {
		return nil, f.err
	}

	slots, err := s.materializer.GetSlotsForDate(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"slots": slotList(slots)})
}

func (s *SchedulingServer) listAvailableSlots(ctx context.Context, _ calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	providerID := f.uuid("provider_id")
	date := f.date("date")
	if f.err != nil {
		return nil, f.err
	}

	slots, err := s.bookings.ListAvailableSlots(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"slots": slotList(slots)})
}

func (s *SchedulingServer) bookSlot(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRole(caller, calendar.RoleParent); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	in := service.BookSlotInput{
		ParentID:       caller.ID,
		ChildID:        f.uuid("child_id"),
		SlotInstanceID: f.uuid("slot_instance_id"),
		Comment:        f.str("comment"),
	}
	if f.err != nil {
		return nil, f.err
	}

	b, err := s.bookings.BookSlot(ctx, in)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"booking": bookingValue(b)})
}

func (s *SchedulingServer) cancelBooking(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRole(caller, calendar.RoleParent); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	bookingID := f.uuid("booking_id")
	if f.err != nil {
		return nil, f.err
	}

	b, err := s.bookings.CancelBooking(ctx, caller.ID, bookingID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"booking": bookingValue(b)})
}

func (s *SchedulingServer) completeBooking(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	bookingID := f.uuid("booking_id")
	if f.err != nil {
		return nil, f.err
	}

	var providerID uuid.UUID
	switch caller.Role {
	case calendar.RoleAdmin:
	case calendar.RoleProvider:
		id, err := s.providerFor(ctx, caller, uuid.Nil)
		if err != nil {
			return nil, err
		}
		providerID = id
	default:
		return nil, apperr.ErrForbidden
	}

	b, err := s.bookings.CompleteBooking(ctx, providerID, bookingID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"booking": bookingValue(b)})
}

func (s *SchedulingServer) listBookings(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	pageNum, pageSize := f.int("page"), f.int("page_size")
	if f.err != nil {
		return nil, f.err
	}
	page, err := s.bookings.ListBookings(ctx, caller, pageNum, pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]any, len(page.Items))
	for i, v := range page.Items {
		items[i] = bookingViewValue(v)
	}
	return respond(map[string]any{
		"bookings":  items,
		"page":      page.Page,
		"page_size": page.PageSize,
		"total":     page.Total,
		"has_next":  page.HasNext,
	})
}

func (s *SchedulingServer) grantConsent(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	return s.setConsent(ctx, caller, req, true)
}

func (s *SchedulingServer) revokeConsent(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	return s.setConsent(ctx, caller, req, false)
}

func (s *SchedulingServer) setConsent(ctx context.Context, caller calendar.Caller, req *structpb.Struct, granted bool) (*structpb.Struct, error) {
	if err := requireRole(caller, calendar.RoleParent); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	bookingID := f.uuid("booking_id")
	if f.err != nil {
		return nil, f.err
	}

	if err := s.bookings.SetConsent(ctx, caller.ID, bookingID, granted); err != nil {
		return nil, err
	}
	return respond(map[string]any{"booking_id": bookingID.String(), "granted": granted})
}

func (s *SchedulingServer) requestLeave(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	requested := f.optUUID("provider_id")
	date := f.date("date")
	if f.err != nil {
		return nil, f.err
	}
	providerID, err := s.providerFor(ctx, caller, requested)
	if err != nil {
		return nil, err
	}

	leave, err := s.leaves.RequestLeave(ctx, service.RequestLeaveInput{
		ProviderID: providerID,
		Date:       date,
		Type:       model.LeaveType(strings.ToUpper(f.str("type"))),
		Reason:     f.str("reason"),
	})
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"leave": leaveValue(leave)})
}

func (s *SchedulingServer) decideLeave(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireRole(caller, calendar.RoleAdmin); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	in := service.DecideLeaveInput{
		LeaveID:    f.uuid("leave_id"),
		AdminID:    caller.ID,
		Action:     service.LeaveAction(strings.ToLower(f.str("action"))),
		AdminNotes: f.str("admin_notes"),
	}
	if f.err != nil {
		return nil, f.err
	}

	d, err := s.leaves.DecideLeave(ctx, in)
	if err != nil {
		return nil, err
	}
	cancelled := make([]any, len(d.CancelledBookings))
	for i, id := range d.CancelledBookings {
		cancelled[i] = id.String()
	}
	return respond(map[string]any{
		"leave":              leaveValue(d.Leave),
		"balances":           balancesValue(d.Balances),
		"deactivated_slots":  d.DeactivatedSlots,
		"cancelled_bookings": cancelled,
	})
}

func (s *SchedulingServer) getBalances(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	requested := f.optUUID("provider_id")
	if f.err != nil {
		return nil, f.err
	}
	providerID, err := s.providerFor(ctx, caller, requested)
	if err != nil {
		return nil, err
	}

	b, err := s.leaves.GetBalances(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"balances": balancesValue(b)})
}
