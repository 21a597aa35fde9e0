package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Leganyst/therapy-booking/internal/config"
)

// NewSink builds the configured sink. The returned closer is never nil.
func NewSink(ctx context.Context, cfg config.NotifyConfig, logger zerolog.Logger) (Sink, func() error, error) {
	switch cfg.Sink {
	case "", "log":
		return NewLogSink(logger), func() error { return nil }, nil
	case "redis":
		s, err := NewRedisSink(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "nats":
		s, err := NewNATSSink(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification sink: %s", cfg.Sink)
	}
}
