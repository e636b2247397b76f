package render

import (
	"context"
	"time"

	"tachtalk/engine/config"
	"tachtalk/engine/telemetry/logging"
	"tachtalk/internal/led"
	"tachtalk/internal/rpmcell"
)

const (
	minTick = 10 * time.Millisecond  // "no faster than 100Hz", §4.1
	maxTick = 100 * time.Millisecond // slowest allowed cadence absent any blink
)

// Renderer drives the strip from the current RPM cell and the live
// configuration revision (C1). Run blocks until ctx is cancelled.
type Renderer struct {
	store *config.Store
	rpm   *rpmcell.Cell
	strip led.Strip
	log   logging.Logger
	clock Clock
}

// NewRenderer constructs a Renderer. A nil clock defaults to
// MonotonicClock().
func NewRenderer(store *config.Store, rpm *rpmcell.Cell, strip led.Strip, log logging.Logger, clock Clock) *Renderer {
	if clock == nil {
		clock = MonotonicClock()
	}
	return &Renderer{store: store, rpm: rpm, strip: strip, log: log, clock: clock}
}

// Run renders frames until ctx is cancelled, rebuilding its Plan whenever
// the configuration store publishes a new revision and otherwise ticking at
// half the shortest blink period of any blinking threshold, clamped to
// [10ms,100ms]. Ticks are not aligned to blink boundaries, so a blink
// transition is drawn on the first tick after its boundary, up to one tick
// interval late.
func (r *Renderer) Run(ctx context.Context) {
	plan := BuildPlan(r.store.Load())
	cfgCh, cancel := r.store.Subscribe(1)
	defer cancel()

	ticker := time.NewTicker(cadence(plan))
	defer ticker.Stop()

	var last []led.Pixel
	for {
		select {
		case <-ctx.Done():
			return
		case <-cfgCh:
			plan = BuildPlan(r.store.Load())
			ticker.Reset(cadence(plan))
		case <-ticker.C:
			sample := r.rpm.Get()
			frame := plan.Render(sample.RPM, r.clock())
			if framesEqual(frame, last) {
				continue
			}
			if err := r.strip.Show(frame); err != nil {
				r.log.WarnCtx(ctx, "render: strip transmit failed, retrying next tick", "error", err)
				continue
			}
			last = frame
		}
	}
}

func cadence(p Plan) time.Duration {
	interval := maxTick
	for _, th := range p.Thresholds {
		if !th.Blink {
			continue
		}
		nyquist := th.BlinkPeriod / 2
		if nyquist < interval {
			interval = nyquist
		}
	}
	if interval < minTick {
		interval = minTick
	}
	if interval > maxTick {
		interval = maxTick
	}
	return interval
}

func framesEqual(a, b []led.Pixel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
