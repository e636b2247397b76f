// Package mdns advertises tachtalk.local on the station interface once
// associated, per §6. True mDNS responder logic is host-simulated here
// (logged state flips) since radio bring-up itself is out of scope (§1).
package mdns

import (
	"context"
	"sync/atomic"

	"tachtalk/engine/telemetry/logging"
)

// Advertiser announces a hostname on the local network.
type Advertiser interface {
	Start(ctx context.Context, hostname string) error
	Stop() error
	Active() bool
}

// Simulated is a host Advertiser that just tracks whether advertising is
// active and logs transitions.
type Simulated struct {
	log    logging.Logger
	active atomic.Bool
}

// NewSimulated constructs a Simulated advertiser.
func NewSimulated(log logging.Logger) *Simulated {
	return &Simulated{log: log}
}

func (s *Simulated) Start(ctx context.Context, hostname string) error {
	s.active.Store(true)
	s.log.InfoCtx(ctx, "mdns: advertising", "hostname", hostname)
	return nil
}

func (s *Simulated) Stop() error {
	s.active.Store(false)
	return nil
}

func (s *Simulated) Active() bool { return s.active.Load() }
