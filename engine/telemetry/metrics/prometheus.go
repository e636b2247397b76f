package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// PrometheusProvider implements Provider backed by a Prometheus registry,
// exposed at GET /metrics per the expanded spec's opt-in observability
// surface.
type PrometheusProvider struct {
	reg        *prom.Registry
	mu         sync.RWMutex
	counters   map[string]*prom.CounterVec
	gauges     map[string]*prom.GaugeVec
	histograms map[string]*prom.HistogramVec
	problems   []error
	handler    http.Handler
}

// NewPrometheusProvider creates a provider backed by its own registry.
func NewPrometheusProvider() *PrometheusProvider {
	reg := prom.NewRegistry()
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]*prom.CounterVec),
		gauges:     make(map[string]*prom.GaugeVec),
		histograms: make(map[string]*prom.HistogramVec),
		handler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

// MetricsHandler returns the http.Handler serving GET /metrics.
func (p *PrometheusProvider) MetricsHandler() http.Handler { return p.handler }

func buildFQName(c CommonOpts) (string, error) {
	if c.Name == "" {
		return "", errors.New("metric name required")
	}
	parts := make([]string, 0, 3)
	if c.Namespace != "" {
		parts = append(parts, c.Namespace)
	}
	if c.Subsystem != "" {
		parts = append(parts, c.Subsystem)
	}
	parts = append(parts, c.Name)
	fq := parts[0]
	for i := 1; i < len(parts); i++ {
		fq += "_" + parts[i]
	}
	if !metricNameRE.MatchString(fq) {
		return "", fmt.Errorf("invalid metric name: %s", fq)
	}
	return fq, nil
}

func (p *PrometheusProvider) NewCounter(opts CounterOpts) Counter {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopCounter{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cv := p.counters[fq]; cv != nil {
		return &promCounter{cv: cv}
	}
	vec := prom.NewCounterVec(prom.CounterOpts{Name: fq, Help: opts.Help}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.CounterVec)
		} else {
			p.problems = append(p.problems, err)
			return noopCounter{}
		}
	}
	p.counters[fq] = vec
	return &promCounter{cv: vec}
}

func (p *PrometheusProvider) NewGauge(opts GaugeOpts) Gauge {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopGauge{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if gv := p.gauges[fq]; gv != nil {
		return &promGauge{gv: gv}
	}
	vec := prom.NewGaugeVec(prom.GaugeOpts{Name: fq, Help: opts.Help}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.GaugeVec)
		} else {
			p.problems = append(p.problems, err)
			return noopGauge{}
		}
	}
	p.gauges[fq] = vec
	return &promGauge{gv: vec}
}

func (p *PrometheusProvider) NewHistogram(opts HistogramOpts) Histogram {
	fq, err := buildFQName(opts.CommonOpts)
	if err != nil {
		return noopHistogram{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if hv := p.histograms[fq]; hv != nil {
		return &promHistogram{hv: hv}
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{Name: fq, Help: opts.Help, Buckets: buckets}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.HistogramVec)
		} else {
			p.problems = append(p.problems, err)
			return noopHistogram{}
		}
	}
	p.histograms[fq] = vec
	return &promHistogram{hv: vec}
}

func (p *PrometheusProvider) Health(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.problems) == 0 {
		return nil
	}
	return fmt.Errorf("prometheus provider encountered %d problems (first: %v)", len(p.problems), p.problems[0])
}

type promCounter struct{ cv *prom.CounterVec }

func (c *promCounter) Inc(delta float64, labels ...string) {
	if delta <= 0 {
		return
	}
	c.cv.WithLabelValues(labels...).Add(delta)
}

type promGauge struct{ gv *prom.GaugeVec }

func (g *promGauge) Set(v float64, labels ...string) { g.gv.WithLabelValues(labels...).Set(v) }
func (g *promGauge) Add(delta float64, labels ...string) {
	if delta == 0 {
		return
	}
	g.gv.WithLabelValues(labels...).Add(delta)
}

type promHistogram struct{ hv *prom.HistogramVec }

func (h *promHistogram) Observe(v float64, labels ...string) { h.hv.WithLabelValues(labels...).Observe(v) }
