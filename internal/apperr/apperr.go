package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of its message.
type Kind string

const (
	KindConfigurationMissing    Kind = "configuration_missing"
	KindInvalidScheduleTemplate Kind = "invalid_schedule_template"
	KindSlotUnavailable         Kind = "slot_unavailable"
	KindOutOfBookingWindow      Kind = "out_of_booking_window"
	KindWeekendNotBookable      Kind = "weekend_not_bookable"
	KindChildNotFound           Kind = "child_not_found"
	KindInvalidDate             Kind = "invalid_date"
	KindDuplicateLeave          Kind = "duplicate_leave"
	KindQuotaExhausted          Kind = "quota_exhausted"
	KindAlreadyProcessed        Kind = "already_processed"
	KindInvalidState            Kind = "invalid_state"
	KindNotFound                Kind = "not_found"
	KindValidation              Kind = "validation"
	KindForbidden               Kind = "forbidden"
	KindInternal                Kind = "internal"
)

// Error is a typed application failure.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfigurationMissing    = &Error{Kind: KindConfigurationMissing, Message: "schedule template is not configured"}
	ErrInvalidScheduleTemplate = &Error{Kind: KindInvalidScheduleTemplate, Message: "invalid schedule template"}
	ErrSlotUnavailable         = &Error{Kind: KindSlotUnavailable, Message: "this slot was just taken"}
	ErrOutOfBookingWindow      = &Error{Kind: KindOutOfBookingWindow, Message: "slot is outside the booking window"}
	ErrWeekendNotBookable      = &Error{Kind: KindWeekendNotBookable, Message: "weekend slots cannot be booked"}
	ErrChildNotFound           = &Error{Kind: KindChildNotFound, Message: "child not found"}
	ErrInvalidDate             = &Error{Kind: KindInvalidDate, Message: "invalid date"}
	ErrDuplicateLeave          = &Error{Kind: KindDuplicateLeave, Message: "leave already requested for this date"}
	ErrQuotaExhausted          = &Error{Kind: KindQuotaExhausted, Message: "leave quota exhausted"}
	ErrAlreadyProcessed        = &Error{Kind: KindAlreadyProcessed, Message: "leave request already processed"}
	ErrBookingNotScheduled     = &Error{Kind: KindInvalidState, Message: "booking is no longer scheduled"}
	ErrNotFound                = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation              = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrForbidden               = &Error{Kind: KindForbidden, Message: "forbidden"}
)

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(resource string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
