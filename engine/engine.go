// Package engine is the composition root: it wires the configuration
// store, status bus, RPM cell, adapter channel, renderer, proxy server,
// idle poller and supervisor into one running device, mirroring the
// reference engine's own top-level Engine facade.
package engine

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"

	"tachtalk/engine/adapter"
	"tachtalk/engine/config"
	"tachtalk/engine/proxy"
	"tachtalk/engine/render"
	"tachtalk/engine/status"
	"tachtalk/engine/supervise"
	"tachtalk/engine/telemetry/logging"
	"tachtalk/engine/telemetry/metrics"
	"tachtalk/internal/kvstore"
	"tachtalk/internal/led"
	"tachtalk/internal/rpmcell"
)

// Engine owns every long-lived subsystem (C1-C8) and their wiring.
type Engine struct {
	Config     *config.Store
	Bus        status.Bus
	RPM        *rpmcell.Cell
	Adapter    *adapter.Channel
	Renderer   *render.Renderer
	Proxy      *proxy.Server
	Poller     *proxy.Poller
	Supervisor *supervise.Supervisor

	log logging.Logger
}

// Deps bundles the host-provided collaborators an Engine needs: where
// configuration persists, what LED peripheral to drive, and which metrics
// provider to instrument the status bus with.
type Deps struct {
	KVStore  kvstore.Store
	Strip    led.Strip
	Metrics  metrics.Provider
	Log      logging.Logger
	RPMClock func() int64 // render.Clock; nil uses a fresh MonotonicClock
}

// New constructs an Engine and all its subsystems, wired per §2/§4 but not
// yet running; call Run to start every task.
func New(deps Deps) *Engine {
	if deps.Log == nil {
		deps.Log = logging.New(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopProvider()
	}

	cfgStore := config.NewStore(deps.KVStore, deps.Log)
	bus := status.NewBus(deps.Metrics)
	cell := rpmcell.New(time.Now())

	cfg := cfgStore.Load()

	adapterDial := func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", cfg.OBD.AdapterAddress, cfg.OBD.AdapterPort))
	}
	ch := adapter.NewChannel(adapterDial, deps.Log,
		adapter.WithHeaders(true),
		adapter.WithRecordSink(func(records []adapter.Record) {
			if rpm, ok := adapter.ExtractRPM(records); ok {
				cell.Set(rpm, time.Now())
				_ = bus.PublishCtx(context.Background(), status.TopicRPMSample, map[string]interface{}{"rpm": rpm})
			}
		}),
		adapter.WithStateSink(func(st adapter.ConnState) {
			_ = bus.PublishCtx(context.Background(), status.TopicUpstreamState, map[string]interface{}{"state": st.String()})
		}),
	)

	strip := deps.Strip
	if strip == nil {
		strip = led.NewSimulated(cfg.LED.TotalLEDs)
	}
	renderer := render.NewRenderer(cfgStore, cell, strip, deps.Log, deps.RPMClock)

	addr := fmt.Sprintf(":%d", cfg.OBD.ListenPort)
	timeout := time.Duration(cfg.OBD.TimeoutMs) * time.Millisecond
	srv := proxy.NewServer(addr, ch, timeout, deps.Log,
		proxy.WithClientsChangedHook(func(n int) {
			_ = bus.PublishCtx(context.Background(), status.TopicClientsChanged, map[string]interface{}{"count": n})
		}),
		proxy.WithAtCommandHook(func(cmd string) {
			_ = bus.PublishCtx(context.Background(), status.TopicAtCommandLogged, map[string]interface{}{"command": cmd})
		}),
		proxy.WithPidHook(func(cmd string) {
			_ = bus.PublishCtx(context.Background(), status.TopicPidLogged, map[string]interface{}{"command": cmd})
		}),
	)
	poller := proxy.NewPoller(ch, cell, srv.ClientsActive, timeout)

	supervisor := supervise.NewSupervisor(deps.Log)
	supervisor.Register(supervise.Task{
		Name:   "adapter",
		Policy: supervise.Permanent,
		Heartbeat: func(ctx context.Context) error {
			if ch.State() == adapter.Faulted {
				return fmt.Errorf("adapter channel faulted")
			}
			return nil
		},
	})
	supervisor.Evaluator().Register(supervise.ProbeFunc(func(ctx context.Context) supervise.ProbeResult {
		status := supervise.StatusHealthy
		if ch.State() == adapter.Faulted {
			status = supervise.StatusDegraded
		}
		return supervise.ProbeResult{Name: "adapter", Status: status, Detail: ch.State().String()}
	}))

	return &Engine{
		Config: cfgStore, Bus: bus, RPM: cell, Adapter: ch,
		Renderer: renderer, Proxy: srv, Poller: poller, Supervisor: supervisor,
		log: deps.Log,
	}
}

// heapStatsInterval is how often Run publishes TopicHeapStats (§4.6).
const heapStatsInterval = 5 * time.Second

// Run starts every subsystem and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go e.Adapter.Run(ctx)
	go e.Renderer.Run(ctx)
	go e.Poller.Run(ctx)
	go e.Supervisor.Run(ctx)
	go e.publishHeapStats(ctx)
	go func() { errCh <- e.Proxy.Serve(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// publishHeapStats periodically reports runtime memory stats on the status
// bus's HeapStats topic (§4.6), used by the HTTP/SSE shim's diagnostics
// view.
func (e *Engine) publishHeapStats(ctx context.Context) {
	ticker := time.NewTicker(heapStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			_ = e.Bus.PublishCtx(ctx, status.TopicHeapStats, map[string]interface{}{
				"heap_alloc": m.HeapAlloc,
				"heap_sys":   m.HeapSys,
				"num_gc":     m.NumGC,
			})
		}
	}
}

// HealthSnapshot reports the overall device health, for the HTTP health
// handler.
func (e *Engine) HealthSnapshot(ctx context.Context) supervise.Snapshot {
	return e.Supervisor.Evaluator().Evaluate(ctx)
}
