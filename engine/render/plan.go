// Package render implements the threshold renderer (C1): translating the
// current RPM sample and the active configuration revision into WS2812B
// pixel frames.
package render

import (
	"time"

	"tachtalk/engine/config"
	"tachtalk/internal/led"
)

// ThresholdPlan is one threshold's precomputed paint instructions: pixel
// range, brightness-scaled color, and blink period. Precomputing this per
// configuration revision means the hot render path does no per-pixel
// multiplication, per the Design Note in §9 ("LED color precomputation").
type ThresholdPlan struct {
	RPMMin      int
	StartLED    int
	EndLED      int
	Color       led.Pixel
	Blink       bool
	BlinkPeriod time.Duration
}

// Plan is the static render plan for one configuration revision.
type Plan struct {
	TotalLEDs  int
	Thresholds []ThresholdPlan
}

// BuildPlan precomputes a Plan from a configuration snapshot, per §4.1 step
// 3: every pixel component is scaled linearly by brightness/255, using
// floor division (the spec permits either rounding rule; floor is the
// documented choice here).
func BuildPlan(cfg config.Config) Plan {
	plan := Plan{TotalLEDs: cfg.LED.TotalLEDs}
	for _, th := range cfg.Thresholds {
		blinkMs := th.BlinkMs
		if blinkMs <= 0 {
			blinkMs = 1
		}
		plan.Thresholds = append(plan.Thresholds, ThresholdPlan{
			RPMMin:      th.RPMMin,
			StartLED:    th.StartLED,
			EndLED:      th.EndLED,
			Color:       scaleColor(th.Color, cfg.LED.Brightness),
			Blink:       th.Blink,
			BlinkPeriod: time.Duration(blinkMs) * time.Millisecond,
		})
	}
	return plan
}

func scaleColor(c config.Color, brightness int) led.Pixel {
	return led.Pixel{
		R: scaleComponent(c.R, brightness),
		G: scaleComponent(c.G, brightness),
		B: scaleComponent(c.B, brightness),
	}
}

func scaleComponent(v uint8, brightness int) uint8 {
	return uint8((int(v) * brightness) / 255) // floor division, §4.1 step 3
}

// Render computes the frame for rpm at nowMs (monotonic milliseconds since
// boot, per the Design Note "Timestamps... never wall-clock"), applying
// thresholds in declared order so later thresholds repaint earlier ones,
// and blinking per §4.1 step 2: color when (now_ms/blink_ms) mod 2 == 0,
// else black.
func (p Plan) Render(rpm uint16, nowMs int64) []led.Pixel {
	frame := make([]led.Pixel, p.TotalLEDs)
	for _, th := range p.Thresholds {
		if int(rpm) < th.RPMMin {
			continue
		}
		color := th.Color
		if th.Blink {
			periodMs := th.BlinkPeriod.Milliseconds()
			if periodMs <= 0 {
				periodMs = 1
			}
			if (nowMs/periodMs)%2 != 0 {
				color = led.Pixel{}
			}
		}
		for i := th.StartLED; i <= th.EndLED && i < p.TotalLEDs; i++ {
			if i < 0 {
				continue
			}
			frame[i] = color
		}
	}
	return frame
}
