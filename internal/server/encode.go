package server

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/service"
)

func respond(v map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(v)
}

func instant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optInstant(t *time.Time) any {
	if t == nil {
		return nil
	}
	return instant(*t)
}

func optID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func slotValue(s model.SlotInstance) map[string]any {
	return map[string]any{
		"id":            s.ID.String(),
		"provider_id":   s.ProviderID.String(),
		"start_instant": instant(s.StartInstant),
		"end_instant":   instant(s.EndInstant),
		"is_active":     s.IsActive,
		"is_booked":     s.IsBooked,
	}
}

func slotList(slots []model.SlotInstance) []any {
	out := make([]any, len(slots))
	for i, s := range slots {
		out[i] = slotValue(s)
	}
	return out
}

func templateValue(t *model.ScheduleTemplate) map[string]any {
	times := make([]any, len(t.DailySlotTimes))
	for i, v := range t.DailySlotTimes {
		times[i] = v
	}
	return map[string]any{
		"id":                    t.ID.String(),
		"provider_id":           t.ProviderID.String(),
		"daily_slot_times":      times,
		"slot_duration_minutes": t.SlotDurationMinutes,
	}
}

func bookingValue(b *model.Booking) map[string]any {
	v := map[string]any{
		"id":               b.ID.String(),
		"parent_id":        b.ParentID.String(),
		"child_id":         b.ChildID.String(),
		"provider_id":      b.ProviderID.String(),
		"slot_instance_id": b.SlotInstanceID.String(),
		"status":           string(b.Status),
		"comment":          b.Comment,
		"cancelled_at":     optInstant(b.CancelledAt),
		"created_at":       instant(b.CreatedAt),
	}
	if b.Slot != nil {
		v["start_instant"] = instant(b.Slot.StartInstant)
		v["end_instant"] = instant(b.Slot.EndInstant)
	}
	return v
}

func bookingViewValue(bv service.BookingView) map[string]any {
	v := bookingValue(&bv.Booking)
	v["redacted"] = bv.Redacted
	if c := bv.Child; c != nil {
		child := map[string]any{
			"id":        c.ID.String(),
			"full_name": c.FullName,
		}
		if !bv.Redacted {
			child["clinical_notes"] = c.ClinicalNotes
			if c.DateOfBirth != nil {
				child["date_of_birth"] = time.Time(*c.DateOfBirth).Format(time.DateOnly)
			}
		}
		v["child"] = child
	}
	return v
}

func balancesValue(b model.Balances) map[string]any {
	return map[string]any{
		"casual_remaining":   b.CasualRemaining,
		"sick_remaining":     b.SickRemaining,
		"festive_remaining":  b.FestiveRemaining,
		"optional_remaining": b.OptionalRemaining,
	}
}

func leaveValue(l *model.LeaveRequest) map[string]any {
	return map[string]any{
		"id":          l.ID.String(),
		"provider_id": l.ProviderID.String(),
		"date":        l.Day().Format(time.DateOnly),
		"type":        string(l.Type),
		"status":      string(l.Status),
		"reason":      l.Reason,
		"admin_notes": l.AdminNotes,
		"balances":    balancesValue(l.Balances),
		"decided_by":  optID(l.DecidedBy),
		"decided_at":  optInstant(l.DecidedAt),
		"created_at":  instant(l.CreatedAt),
	}
}
