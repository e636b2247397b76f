package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachtalk/engine/config"
	"tachtalk/engine/telemetry/logging"
	"tachtalk/internal/kvstore"
	"tachtalk/internal/led"
	"tachtalk/internal/rpmcell"
)

func TestRendererTransmitsFrameForCurrentRPM(t *testing.T) {
	store := config.NewStore(kvstore.NewMemory(), logging.New(nil))
	cell := rpmcell.New(time.Now())
	cell.Set(2600, time.Now())
	strip := led.NewSimulated(1)

	clockMs := int64(0)
	r := NewRenderer(store, cell, strip, logging.New(nil), func() int64 { return clockMs })

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		last := strip.Last()
		return len(last) == 1 && last[0] == led.Pixel{R: 255}
	}, time.Second, 5*time.Millisecond)
}

func TestRendererRebuildsPlanOnConfigUpdate(t *testing.T) {
	store := config.NewStore(kvstore.NewMemory(), logging.New(nil))
	cell := rpmcell.New(time.Now())
	strip := led.NewSimulated(2)

	r := NewRenderer(store, cell, strip, logging.New(nil), func() int64 { return 0 })
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	defer cancel()

	next := config.Default()
	next.LED.TotalLEDs = 2
	next.Thresholds = []config.Threshold{{Name: "both", RPMMin: 0, StartLED: 0, EndLED: 1, Color: config.Color{B: 255}}}
	_, err := store.Update(context.Background(), next)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		last := strip.Last()
		return len(last) == 2 && last[0].B == 255 && last[1].B == 255
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, strip.Len())
}
