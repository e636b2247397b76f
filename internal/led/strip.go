// Package led abstracts the WS2812B peripheral behind a small interface so
// the renderer's hot path never depends on hardware-specific timing code.
// The shipped Strip implementation simulates the peripheral in memory; a
// real build would swap in a DMA/RMT-backed driver behind the same contract.
package led

import "fmt"

// Pixel is one RGB LED value, component order as addressed logically
// (red, green, blue); Strip.Show is responsible for reordering to the wire
// format (GRB for WS2812B).
type Pixel struct {
	R, G, B uint8
}

// Strip is the peripheral contract the renderer transmits frames through.
type Strip interface {
	// Show transmits a full frame. len(frame) must equal the strip's pixel
	// count; implementations may return an error which the renderer logs
	// and retries on the next tick, never surfacing it to callers.
	Show(frame []Pixel) error
	Len() int
}

// Simulated is a host-side Strip that records the last transmitted frame,
// standing in for real WS2812B RMT/DMA peripheral code.
type Simulated struct {
	n    int
	last []Pixel
}

// NewSimulated returns a Simulated strip with n pixels.
func NewSimulated(n int) *Simulated {
	if n < 1 {
		n = 1
	}
	return &Simulated{n: n, last: make([]Pixel, n)}
}

func (s *Simulated) Len() int { return s.n }

func (s *Simulated) Show(frame []Pixel) error {
	if len(frame) != s.n {
		return fmt.Errorf("led: frame length %d does not match strip length %d", len(frame), s.n)
	}
	copy(s.last, frame)
	return nil
}

// Last returns a copy of the most recently transmitted frame, used by tests
// to observe renderer output without real hardware.
func (s *Simulated) Last() []Pixel {
	out := make([]Pixel, len(s.last))
	copy(out, s.last)
	return out
}

// EncodeGRB reorders a pixel into the byte order WS2812B expects on the wire.
func EncodeGRB(p Pixel) [3]byte {
	return [3]byte{p.G, p.R, p.B}
}
