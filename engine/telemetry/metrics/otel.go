package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OtelProvider implements Provider on top of the OpenTelemetry metrics SDK,
// selected by tachtalkd's -metrics-backend=otel flag instead of "prom".
// It runs with no exporter registered (instruments are created and updated,
// but nothing ships off-box) unless the process wires a reader externally;
// this mirrors the tracing package's "assign real, don't require a
// collector" stance.
type OtelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

// NewOtelProvider constructs a MeterProvider and binds a meter named
// "tachtalk".
func NewOtelProvider() *OtelProvider {
	mp := sdkmetric.NewMeterProvider()
	return &OtelProvider{
		mp:         mp,
		meter:      mp.Meter("tachtalk"),
		counters:   make(map[string]metric.Float64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (p *OtelProvider) NewCounter(opts CounterOpts) Counter {
	name, _ := buildFQName(opts.CommonOpts)
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.counters[name]
	if !ok {
		var err error
		c, err = p.meter.Float64Counter(name, metric.WithDescription(opts.Help))
		if err != nil {
			return noopCounter{}
		}
		p.counters[name] = c
	}
	return &otelCounter{c: c}
}

func (p *OtelProvider) NewGauge(opts GaugeOpts) Gauge {
	name, _ := buildFQName(opts.CommonOpts)
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gauges[name]
	if !ok {
		var err error
		g, err = p.meter.Float64Gauge(name, metric.WithDescription(opts.Help))
		if err != nil {
			return noopGauge{}
		}
		p.gauges[name] = g
	}
	return &otelGauge{g: g}
}

func (p *OtelProvider) NewHistogram(opts HistogramOpts) Histogram {
	name, _ := buildFQName(opts.CommonOpts)
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.histograms[name]
	if !ok {
		var err error
		h, err = p.meter.Float64Histogram(name, metric.WithDescription(opts.Help))
		if err != nil {
			return noopHistogram{}
		}
		p.histograms[name] = h
	}
	return &otelHistogram{h: h}
}

func (p *OtelProvider) Health(ctx context.Context) error { return nil }

// Shutdown releases the underlying MeterProvider.
func (p *OtelProvider) Shutdown(ctx context.Context) error { return p.mp.Shutdown(ctx) }

type otelCounter struct{ c metric.Float64Counter }

func (o *otelCounter) Inc(delta float64, labels ...string) {
	o.c.Add(context.Background(), delta, metric.WithAttributes(attrsFromLabels(labels)...))
}

type otelGauge struct{ g metric.Float64Gauge }

func (o *otelGauge) Set(v float64, labels ...string) {
	o.g.Record(context.Background(), v, metric.WithAttributes(attrsFromLabels(labels)...))
}
func (o *otelGauge) Add(delta float64, labels ...string) {
	o.g.Record(context.Background(), delta, metric.WithAttributes(attrsFromLabels(labels)...))
}

type otelHistogram struct{ h metric.Float64Histogram }

func (o *otelHistogram) Observe(v float64, labels ...string) {
	o.h.Record(context.Background(), v, metric.WithAttributes(attrsFromLabels(labels)...))
}
