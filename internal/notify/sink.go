package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sink delivers a message to a user. Delivery itself is out of scope for the
// booking engine; sinks hand the message to whatever transport fans it out.
type Sink interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// Message is the envelope published by the broker-backed sinks.
type Message struct {
	UserID  string    `json:"user_id"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

func encode(userID uuid.UUID, message string) ([]byte, error) {
	payload, err := json.Marshal(Message{UserID: userID.String(), Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return payload, nil
}

// LogSink writes notifications to the log. Used in development.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify_log").Logger()}
}

func (s *LogSink) Notify(_ context.Context, userID uuid.UUID, message string) error {
	s.logger.Info().Str("user_id", userID.String()).Str("message", message).Msg("notification")
	return nil
}

// RedisSink publishes notifications on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(ctx context.Context, url, channel string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

func (s *RedisSink) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	payload, err := encode(userID, message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// NATSSink publishes notifications on a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(url, subject string, logger zerolog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("therapy-booking"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Notify(_ context.Context, userID uuid.UUID, message string) error {
	payload, err := encode(userID, message)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, payload)
}

func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
