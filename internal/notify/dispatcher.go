package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Leganyst/therapy-booking/internal/telemetry"
)

type DispatcherOptions struct {
	RatePerSecond float64
	Burst         int
	SendTimeout   time.Duration
}

// Dispatcher sends notifications in the background. Send never blocks on
// delivery and never reports failure to the caller; failures are logged.
type Dispatcher struct {
	sink    Sink
	limiter *rate.Limiter
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, logger zerolog.Logger, opts DispatcherOptions) *Dispatcher {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sink:    sink,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Send schedules delivery of message to userID and returns immediately.
func (d *Dispatcher) Send(userID uuid.UUID, message string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				telemetry.Notifications.WithLabelValues("failed").Inc()
				d.logger.Error().Interface("panic", r).Str("user_id", userID.String()).Msg("notification sink panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.limiter.Wait(ctx); err != nil {
			telemetry.Notifications.WithLabelValues("dropped").Inc()
			d.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("notification dropped by rate limiter")
			return
		}
		if err := d.sink.Notify(ctx, userID, message); err != nil {
			telemetry.Notifications.WithLabelValues("failed").Inc()
			d.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("notification failed")
			return
		}
		telemetry.Notifications.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until every scheduled send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
