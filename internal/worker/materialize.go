package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Leganyst/therapy-booking/internal/service"
)

// Runner regenerates slots for every provider with a template.
type Runner interface {
	MaterializeAll(ctx context.Context, horizonDays int) (service.MaterializeReport, error)
}

type MaterializeConfig struct {
	Interval    time.Duration
	HorizonDays int
	// RunOnStart triggers one pass before the first tick.
	RunOnStart bool
}

// MaterializeLoop keeps the rolling slot horizon filled.
type MaterializeLoop struct {
	runner Runner
	config MaterializeConfig
	logger zerolog.Logger
}

func NewMaterializeLoop(runner Runner, config MaterializeConfig, logger zerolog.Logger) *MaterializeLoop {
	if config.Interval <= 0 {
		panic("materialize interval must be greater than 0")
	}
	return &MaterializeLoop{
		runner: runner,
		config: config,
		logger: logger.With().Str("component", "materialize_worker").Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (l *MaterializeLoop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	l.logger.Info().Dur("interval", l.config.Interval).Msg("starting materialize worker")
	if l.config.RunOnStart {
		l.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("shutting down materialize worker")
			return
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *MaterializeLoop) runOnce(ctx context.Context) {
	report, err := l.runner.MaterializeAll(ctx, l.config.HorizonDays)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		l.logger.Error().Err(err).
			Int("providers", report.Providers).
			Int("failed", report.Failed).
			Msg("materialize pass finished with errors")
		return
	}
	l.logger.Info().
		Int("providers", report.Providers).
		Int64("inserted", report.Inserted).
		Msg("materialize pass finished")
}
