package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/therapy-booking/internal/apperr"
	"github.com/Leganyst/therapy-booking/internal/calendar"
	"github.com/Leganyst/therapy-booking/internal/model"
	"github.com/Leganyst/therapy-booking/internal/repository"
)

// Notifier is the fire-and-forget outbound channel. Implementations must not
// block the caller and must not report delivery failures.
type Notifier interface {
	Send(userID uuid.UUID, message string)
}

// ConsentChecker answers whether a provider may see a child's sensitive fields for a booking.
type ConsentChecker interface {
	HasConsent(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// Clock returns the current instant.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

var validate = validator.New()

// validateInput runs struct tags and converts failures to a Validation error.
func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Validation(fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()), err)
		}
		return apperr.Validation("invalid input", err)
	}
	return nil
}

// storeErr maps a repository error to the taxonomy.
func storeErr(resource string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource, err)
	}
	return fmt.Errorf("%s: %w", resource, err)
}

// loadProvider fetches the provider and resolves its IANA zone.
func loadProvider(ctx context.Context, db *gorm.DB, providerID uuid.UUID) (*model.Provider, *time.Location, error) {
	provider, err := repository.NewGormProviderRepository(db).GetByID(ctx, providerID)
	if err != nil {
		return nil, nil, storeErr("provider", err)
	}
	loc, err := calendar.LoadLocation(provider.TimeZone)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindConfigurationMissing, "provider time zone is not configured", err)
	}
	return provider, loc, nil
}

// offTemplate reports whether the slot's local start time has been dropped from
// the provider's current template. No template means nothing is off it.
func offTemplate(ctx context.Context, tx *gorm.DB, slot *model.SlotInstance) (bool, error) {
	tpl, err := repository.NewGormScheduleRepository(tx).GetByProvider(ctx, slot.ProviderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("schedule template", err)
	}
	_, loc, err := loadProvider(ctx, tx, slot.ProviderID)
	if err != nil {
		return false, err
	}
	return !slices.Contains(tpl.DailySlotTimes, slot.StartInstant.In(loc).Format("15:04")), nil
}
