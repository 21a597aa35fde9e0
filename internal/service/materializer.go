package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

const DefaultHorizonDays = 60

type MaterializerOptions struct {
	HorizonDays int
	Clock       Clock
}

// Materializer expands schedule templates into dated slot instances.
type Materializer struct {
	db          *gorm.DB
	logger      zerolog.Logger
	clock       Clock
	horizonDays int
}

func NewMaterializer(db *gorm.DB, logger zerolog.Logger, opts MaterializerOptions) *Materializer {
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	return &Materializer{
		db:          db,
		logger:      logger.With().Str("component", "materializer").Logger(),
		clock:       opts.Clock,
		horizonDays: horizon,
	}
}

// SetTemplateInput replaces a provider's daily slot times.
type SetTemplateInput struct {
	ProviderID     uuid.UUID `validate:"required"`
	DailySlotTimes []string  `validate:"required"`
	HorizonDays    int       `validate:"gte=0,lte=366"`
}

// Materialize regenerates unbooked slots for [today, today+horizonDays) in the
// provider's zone and returns the number of rows inserted.
func (m *Materializer) Materialize(ctx context.Context, providerID uuid.UUID, horizonDays int) (int64, error) {
	if horizonDays <= 0 {
		horizonDays = m.horizonDays
	}

	provider, loc, err := loadProvider(ctx, m.db, providerID)
	if err != nil {
		return 0, err
	}

	tpl, err := repository.NewGormScheduleRepository(m.db).GetByProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.ErrConfigurationMissing
		}
		return 0, storeErr("schedule template", err)
	}

	times, err := calendar.NormalizeDailyTimes(tpl.DailySlotTimes, model.DailySlotCount)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInvalidScheduleTemplate, err.Error(), err)
	}

	var inserted int64
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		today := calendar.TodayIn(m.clock.now(), loc)
		inserted, err = m.materialize(ctx, tx, provider, tpl, times, loc, today, horizonDays)
		return err
	})
	if err != nil {
		telemetry.MaterializeRuns.WithLabelValues("error").Inc()
		return 0, err
	}

	telemetry.MaterializeRuns.WithLabelValues("ok").Inc()
	telemetry.SlotsMaterialized.Add(float64(inserted))
	m.logger.Debug().
		Str("provider_id", providerID.String()).
		Int("horizon_days", horizonDays).
		Int64("inserted", inserted).
		Msg("slots materialized")
	return inserted, nil
}

// SetTemplate validates and stores the provider's template, then regenerates
// every unbooked future slot from it. Nothing changes if validation fails.
func (m *Materializer) SetTemplate(ctx context.Context, in SetTemplateInput) (*model.ScheduleTemplate, int64, error) {
	if err := validateInput(in); err != nil {
		return nil, 0, err
	}
	times, err := calendar.NormalizeDailyTimes(in.DailySlotTimes, model.DailySlotCount)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInvalidScheduleTemplate, err.Error(), err)
	}
	horizon := in.HorizonDays
	if horizon <= 0 {
		horizon = m.horizonDays
	}

	var (
		tpl      *model.ScheduleTemplate
		inserted int64
	)
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		provider, loc, err := loadProvider(ctx, tx, in.ProviderID)
		if err != nil {
			return err
		}

		templates := repository.NewGormScheduleRepository(tx)
		if err := templates.Upsert(ctx, &model.ScheduleTemplate{
			ProviderID:          provider.ID,
			DailySlotTimes:      calendar.FormatDailyTimes(times),
			SlotDurationMinutes: model.SlotDurationMinutes,
		}); err != nil {
			return storeErr("upsert schedule template", err)
		}
		// the upsert keeps the original row id on conflict
		tpl, err = templates.GetByProvider(ctx, provider.ID)
		if err != nil {
			return storeErr("schedule template", err)
		}

		today := calendar.TodayIn(m.clock.now(), loc)
		if _, err := repository.NewGormSlotRepository(tx).
			DeleteUnbooked(ctx, provider.ID, calendar.DayBounds(today, loc).Start, time.Time{}); err != nil {
			return storeErr("delete future slots", err)
		}

		inserted, err = m.materialize(ctx, tx, provider, tpl, times, loc, today, horizon)
		if err != nil {
			return err
		}

		return repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
			EventType:  model.EventTypeTemplateUpdated,
			UserID:     repository.UUIDPtr(provider.UserID),
			ProviderID: repository.UUIDPtr(provider.ID),
			Details:    fmt.Sprintf("daily_slot_times=%v", tpl.DailySlotTimes),
		})
	})
	if err != nil {
		return nil, 0, err
	}

	telemetry.SlotsMaterialized.Add(float64(inserted))
	m.logger.Info().
		Str("provider_id", in.ProviderID.String()).
		Strs("daily_slot_times", tpl.DailySlotTimes).
		Int64("inserted", inserted).
		Msg("schedule template updated")
	return tpl, inserted, nil
}

// MaterializeReport summarizes a MaterializeAll run.
type MaterializeReport struct {
	Providers int
	Failed    int
	Inserted  int64
}

// MaterializeAll runs Materialize for every provider with a template. A failing
// provider does not stop the others; their errors are joined.
func (m *Materializer) MaterializeAll(ctx context.Context, horizonDays int) (MaterializeReport, error) {
	var report MaterializeReport

	ids, err := repository.NewGormScheduleRepository(m.db).ProviderIDs(ctx)
	if err != nil {
		return report, storeErr("list providers", err)
	}

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report.Providers++
		n, err := m.Materialize(ctx, id, horizonDays)
		if err != nil {
			report.Failed++
			m.logger.Warn().Err(err).Str("provider_id", id.String()).Msg("materialize failed")
			errs = append(errs, fmt.Errorf("provider %s: %w", id, err))
			continue
		}
		report.Inserted += n
	}
	return report, errors.Join(errs...)
}

// GetSlotsForDate returns every slot of the provider on the civil date, in
// provider-local day bounds, ordered by start.
func (m *Materializer) GetSlotsForDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]model.SlotInstance, error) {
	_, loc, err := loadProvider(ctx, m.db, providerID)
	if err != nil {
		return nil, err
	}
	day := calendar.DayBounds(calendar.DateOf(date), loc)
	slots, err := repository.NewGormSlotRepository(m.db).ListForRange(ctx, providerID, day.Start, day.End)
	if err != nil {
		return nil, storeErr("list slots", err)
	}
	return slots, nil
}

// materialize deletes unbooked active slots in the horizon window and inserts
// fresh ones, skipping days covered by approved leave. Rows the delete had to
// keep (booked, or referenced by a past booking) are reconciled with the
// template: free ones off the template are withdrawn, withdrawn ones back on it
// are re-offered, and no new slot may overlap a booked one. Runs on tx.
func (m *Materializer) materialize(
	ctx context.Context,
	tx *gorm.DB,
	provider *model.Provider,
	tpl *model.ScheduleTemplate,
	times []calendar.TimeOfDay,
	loc *time.Location,
	today time.Time,
	horizonDays int,
) (int64, error) {
	end := calendar.AddDays(today, horizonDays)
	window := calendar.RangeBounds(today, end, loc)

	leaveDays, err := repository.NewGormLeaveRepository(tx).ApprovedDays(ctx, provider.ID, today, end)
	if err != nil {
		return 0, storeErr("approved leave days", err)
	}
	onLeave := make(map[time.Time]struct{}, len(leaveDays))
	for _, d := range leaveDays {
		onLeave[d] = struct{}{}
	}

	slotRepo := repository.NewGormSlotRepository(tx)
	if _, err := slotRepo.DeleteUnbooked(ctx, provider.ID, window.Start, window.End); err != nil {
		return 0, storeErr("delete unbooked slots", err)
	}
	kept, err := slotRepo.ListForRange(ctx, provider.ID, window.Start, window.End)
	if err != nil {
		return 0, storeErr("kept slots", err)
	}

	duration := tpl.SlotDuration()
	wanted := make(map[time.Time]calendar.TimeRange, horizonDays*len(times))
	for i := 0; i < horizonDays; i++ {
		day := calendar.AddDays(today, i)
		if _, skip := onLeave[day]; skip {
			continue
		}
		for _, tod := range times {
			start := calendar.LocalInstant(day, tod, loc).UTC()
			r, err := calendar.SlotRange(start, duration)
			if err != nil {
				return 0, apperr.Wrap(apperr.KindInvalidScheduleTemplate, err.Error(), err)
			}
			wanted[r.Start] = r
		}
	}

	var held []calendar.TimeRange
	occupied := make(map[time.Time]struct{}, len(kept))
	for _, s := range kept {
		occupied[s.StartInstant.UTC()] = struct{}{}
		if !s.IsBooked {
			continue
		}
		r, err := calendar.NewTimeRange(s.StartInstant.UTC(), s.EndInstant.UTC())
		if err != nil {
			return 0, storeErr("booked slot range", err)
		}
		held = append(held, r)
	}
	free := func(r calendar.TimeRange) bool {
		overlaps, _ := calendar.HasOverlap(r, held, false)
		return !overlaps
	}

	var retire, reoffer []uuid.UUID
	for _, s := range kept {
		r, onTemplate := wanted[s.StartInstant.UTC()]
		switch {
		case s.Available() && !onTemplate:
			retire = append(retire, s.ID)
		case !s.IsBooked && !s.IsActive && onTemplate && free(r):
			reoffer = append(reoffer, s.ID)
		}
	}

	slots := make([]model.SlotInstance, 0, len(wanted))
	templateID := tpl.ID
	for start, r := range wanted {
		if _, taken := occupied[start]; taken || !free(r) {
			continue
		}
		slots = append(slots, model.SlotInstance{
			ProviderID:   provider.ID,
			TemplateID:   &templateID,
			StartInstant: r.Start,
			EndInstant:   r.End,
			IsActive:     true,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartInstant.Before(slots[j].StartInstant) })

	if _, err := slotRepo.SetActive(ctx, retire, false); err != nil {
		return 0, storeErr("withdraw stale slots", err)
	}
	if _, err := slotRepo.SetActive(ctx, reoffer, true); err != nil {
		return 0, storeErr("re-offer slots", err)
	}
	inserted, err := slotRepo.InsertIgnoringDuplicates(ctx, slots)
	if err != nil {
		return 0, storeErr("insert slots", err)
	}
	if len(retire) > 0 {
		m.logger.Debug().
			Str("provider_id", provider.ID.String()).
			Int("withdrawn", len(retire)).
			Msg("stale slots withdrawn")
	}

	if err := repository.NewGormEventRepository(tx).Record(ctx, &model.Event{
		EventType:  model.EventTypeSlotsMaterialized,
		ProviderID: repository.UUIDPtr(provider.ID),
		Details:    fmt.Sprintf("from=%s days=%d inserted=%d withdrawn=%d", today.Format(time.DateOnly), horizonDays, inserted, len(retire)),
	}); err != nil {
		return 0, storeErr("record event", err)
	}
	return inserted, nil
}

