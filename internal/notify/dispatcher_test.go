package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/therapy-booking/internal/telemetry"
)

type recordingSink struct {
	mu   sync.Mutex
	got  map[uuid.UUID][]string
	fail bool
}

func (s *recordingSink) Notify(_ context.Context, userID uuid.UUID, message string) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.got == nil {
		s.got = map[uuid.UUID][]string{}
	}
	s.got[userID] = append(s.got[userID], message)
	return nil
}

type blockingSink struct{}

func (blockingSink) Notify(ctx context.Context, _ uuid.UUID, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_DeliversAll(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zerolog.Nop(), DispatcherOptions{})

	a, b := uuid.New(), uuid.New()
	d.Send(a, "one")
	d.Send(a, "two")
	d.Send(b, "three")
	d.Wait()

	require.Len(t, sink.got[a], 2)
	assert.ElementsMatch(t, []string{"one", "two"}, sink.got[a])
	assert.Equal(t, []string{"three"}, sink.got[b])
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	before := testutil.ToFloat64(telemetry.Notifications.WithLabelValues("failed"))

	d := NewDispatcher(&recordingSink{fail: true}, zerolog.Nop(), DispatcherOptions{})
	d.Send(uuid.New(), "lost")
	d.Wait()

	after := testutil.ToFloat64(telemetry.Notifications.WithLabelValues("failed"))
	assert.Equal(t, before+1, after)
}

func TestDispatcher_SendDoesNotBlockOnSlowSink(t *testing.T) {
	d := NewDispatcher(blockingSink{}, zerolog.Nop(), DispatcherOptions{SendTimeout: 50 * time.Millisecond})

	start := time.Now()
	d.Send(uuid.New(), "slow")
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	d.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
