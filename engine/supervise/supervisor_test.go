package supervise

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tachtalk/engine/telemetry/logging"
)

func TestSupervisorRestartsAfterMissedBeats(t *testing.T) {
	s := NewSupervisor(logging.New(nil))
	var restarts atomic.Int32
	fail := true
	s.Register(Task{
		Name:   "adapter",
		Policy: Permanent,
		Heartbeat: func(ctx context.Context) error {
			if fail {
				return errors.New("down")
			}
			return nil
		},
		Restart: func(ctx context.Context) error {
			restarts.Add(1)
			fail = false
			return nil
		},
	})

	ctx := context.Background()
	s.tick(ctx)
	s.tick(ctx)
	assert.Equal(t, int32(0), restarts.Load())
	s.tick(ctx)
	assert.Equal(t, int32(1), restarts.Load())
}

func TestSupervisorExplicitRestart(t *testing.T) {
	s := NewSupervisor(logging.New(nil))
	var called bool
	s.Register(Task{Name: "proxy", Restart: func(ctx context.Context) error { called = true; return nil }})
	assert.NoError(t, s.Restart(context.Background(), "proxy"))
	assert.True(t, called)
}

func TestEvaluatorCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	probe := ProbeFunc(func(ctx context.Context) ProbeResult {
		calls.Add(1)
		return ProbeResult{Name: "x", Status: StatusHealthy}
	})
	e := NewEvaluator(50*time.Millisecond, probe)
	e.Evaluate(context.Background())
	e.Evaluate(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	time.Sleep(60 * time.Millisecond)
	e.Evaluate(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}
