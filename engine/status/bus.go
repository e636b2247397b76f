// Package status implements the publish/subscribe status bus (C6): a
// single-producer-per-topic, multi-consumer broadcast of live RPM,
// connection state and diagnostic events for the HTTP/SSE shim, adapted
// directly from the reference engine's internal event bus.
package status

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tachtalk/engine/telemetry/metrics"
	"tachtalk/engine/telemetry/tracing"
)

// Topic names, mirroring the event categories in §4.6.
const (
	TopicRPMSample       = "rpm_sample"
	TopicUpstreamState   = "upstream_state"
	TopicClientsChanged  = "clients_changed"
	TopicAtCommandLogged = "at_command_logged"
	TopicPidLogged       = "pid_logged"
	TopicHeapStats       = "heap_stats"
)

// Event is one status-bus message.
type Event struct {
	Time    time.Time              `json:"time"`
	Topic   string                 `json:"topic"`
	TraceID string                 `json:"trace_id,omitempty"`
	SpanID  string                 `json:"span_id,omitempty"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Subscription is a live feed of events for one consumer (e.g. one SSE
// client).
type Subscription interface {
	C() <-chan Event
	Close() error
	ID() int64
}

// Stats reports bus-wide and per-subscriber counters.
type Stats struct {
	Subscribers        int64
	Published          uint64
	Dropped            uint64
	PerSubscriberDrops map[int64]uint64
}

// Bus is the publish/subscribe contract. Publish never blocks: when a
// subscriber's buffer is full, the oldest queued event is dropped for that
// subscriber to make room for the new one. State topics can also be read
// from the last-value cell via Latest.
type Bus interface {
	Publish(ev Event) error
	PublishCtx(ctx context.Context, topic string, fields map[string]interface{}) error
	Subscribe(buffer int) (Subscription, error)
	Unsubscribe(sub Subscription) error
	Stats() Stats

	// Latest returns the last published event for a state topic (e.g.
	// TopicUpstreamState, TopicClientsChanged), so /api/status can answer
	// without a live subscriber. ok is false if the topic was never
	// published.
	Latest(topic string) (Event, bool)
}

// NewBus returns a Bus instrumented against provider (pass
// metrics.NewNoopProvider() to disable instrumentation).
func NewBus(provider metrics.Provider) Bus {
	b := &bus{subs: make(map[int64]*subscriber), latest: make(map[string]Event), provider: provider}
	b.initMetrics()
	return b
}

type bus struct {
	mu        sync.RWMutex
	subs      map[int64]*subscriber
	nextID    int64
	published atomic.Uint64
	dropped   atomic.Uint64

	latestMu sync.RWMutex
	latest   map[string]Event

	provider   metrics.Provider
	mPublished metrics.Counter
	mDropped   metrics.Counter
}

var stateTopics = map[string]bool{
	TopicUpstreamState:  true,
	TopicClientsChanged: true,
	TopicHeapStats:      true,
}

func (b *bus) initMetrics() {
	if b.provider == nil {
		return
	}
	b.mPublished = b.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "tachtalk", Subsystem: "status", Name: "published_total", Help: "Total status events published",
	}})
	b.mDropped = b.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "tachtalk", Subsystem: "status", Name: "dropped_total", Help: "Total status events dropped due to backpressure",
	}})
}

func (b *bus) Publish(ev Event) error {
	if ev.Topic == "" {
		return errors.New("status: event missing topic")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if stateTopics[ev.Topic] {
		b.latestMu.Lock()
		b.latest[ev.Topic] = ev
		b.latestMu.Unlock()
	}
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()
	b.published.Add(1)
	if b.mPublished != nil {
		b.mPublished.Inc(1)
	}
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			// Buffer full: evict the oldest queued event to make room.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
			s.dropped.Add(1)
			b.dropped.Add(1)
			if b.mDropped != nil {
				b.mDropped.Inc(1)
			}
		}
	}
	return nil
}

func (b *bus) PublishCtx(ctx context.Context, topic string, fields map[string]interface{}) error {
	ev := Event{Topic: topic, Fields: fields}
	ev.TraceID, ev.SpanID = tracing.ExtractIDs(ctx)
	return b.Publish(ev)
}

func (b *bus) Subscribe(buffer int) (Subscription, error) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := atomic.AddInt64(&b.nextID, 1)
	sub := &subscriber{id: id, ch: ch, bus: b}
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return sub, nil
}

func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	id := sub.ID()
	b.mu.Lock()
	s := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if s != nil {
		close(s.ch)
	}
	return nil
}

func (b *bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := Stats{Subscribers: int64(len(b.subs)), Published: b.published.Load(), Dropped: b.dropped.Load(), PerSubscriberDrops: make(map[int64]uint64)}
	for id, s := range b.subs {
		stats.PerSubscriberDrops[id] = s.dropped.Load()
	}
	return stats
}

func (b *bus) Latest(topic string) (Event, bool) {
	b.latestMu.RLock()
	defer b.latestMu.RUnlock()
	ev, ok := b.latest[topic]
	return ev, ok
}

type subscriber struct {
	id      int64
	ch      chan Event
	bus     *bus
	dropped atomic.Uint64
}

func (s *subscriber) C() <-chan Event { return s.ch }
func (s *subscriber) ID() int64       { return s.id }
func (s *subscriber) Close() error    { return s.bus.Unsubscribe(s) }
