package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/therapy-booking/internal/apperr"
)

// toStatus maps an error kind to a gRPC status. Internal causes never reach the client.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(codeOf(ae.Kind), messageOf(ae))
}

func codeOf(kind apperr.Kind) codes.Code {
	switch kind {
	case apperr.KindSlotUnavailable:
		return codes.Aborted
	case apperr.KindNotFound, apperr.KindChildNotFound:
		return codes.NotFound
	case apperr.KindValidation, apperr.KindInvalidScheduleTemplate, apperr.KindInvalidDate:
		return codes.InvalidArgument
	case apperr.KindForbidden:
		return codes.PermissionDenied
	case apperr.KindDuplicateLeave:
		return codes.AlreadyExists
	case apperr.KindAlreadyProcessed,
		apperr.KindQuotaExhausted,
		apperr.KindInvalidState,
		apperr.KindOutOfBookingWindow,
		apperr.KindWeekendNotBookable,
		apperr.KindConfigurationMissing:
		return codes.FailedPrecondition
	}
	return codes.Internal
}

func messageOf(ae *apperr.Error) string {
	switch ae.Kind {
	case apperr.KindInternal:
		return "internal error"
	case apperr.KindSlotUnavailable:
		return apperr.ErrSlotUnavailable.Message
	}
	return ae.Message
}
