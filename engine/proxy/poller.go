package proxy

import (
	"context"
	"time"

	"tachtalk/engine/adapter"
	"tachtalk/internal/rpmcell"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	backedOffInterval   = time.Second
)

// Poller is the idle background task from §4.4: it emits an RPM request
// whenever the interval since the last observation exceeds the poll
// interval, suspending itself while any client has an in-flight request so
// interactive clients never see head-of-line delay behind it.
type Poller struct {
	requester   *adapter.Channel
	rpm         *rpmcell.Cell
	clientsBusy func() bool
	interval    time.Duration
	timeout     time.Duration

	consecutiveFailures int
}

// NewPoller constructs a Poller. clientsBusy should report
// (*proxy.Server).ClientsActive.
func NewPoller(requester *adapter.Channel, rpm *rpmcell.Cell, clientsBusy func() bool, timeout time.Duration) *Poller {
	return &Poller{requester: requester, rpm: rpm, clientsBusy: clientsBusy, interval: defaultPollInterval, timeout: timeout}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval / 2)
	defer ticker.Stop()

	var lastAttempt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.clientsBusy() {
				continue
			}
			last := p.rpm.Get()
			if time.Since(last.Timestamp) < p.interval || time.Since(lastAttempt) < p.interval {
				continue
			}
			lastAttempt = time.Now()
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	records, err := p.requester.Request(reqCtx, "010C", p.timeout)
	if err != nil {
		p.consecutiveFailures++
		if p.consecutiveFailures >= 3 {
			p.interval = backedOffInterval
		}
		return
	}
	p.consecutiveFailures = 0
	p.interval = defaultPollInterval
	if rpm, ok := adapter.ExtractRPM(records); ok {
		p.rpm.Set(rpm, time.Now())
	}
}
