package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachtalk/engine/telemetry/metrics"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := NewBus(metrics.NewNoopProvider())
	sub, err := b.Subscribe(4)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(Event{Topic: TopicRPMSample, Fields: map[string]interface{}{"rpm": 1726}}))

	select {
	case ev := <-sub.C():
		assert.Equal(t, TopicRPMSample, ev.Topic)
		assert.Equal(t, 1726, ev.Fields["rpm"])
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestBusDropsOnFullSubscriberBuffer(t *testing.T) {
	b := NewBus(metrics.NewNoopProvider())
	sub, err := b.Subscribe(1)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(Event{Topic: TopicPidLogged}))
	require.NoError(t, b.Publish(Event{Topic: TopicPidLogged}))

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestBusLatestServesStateTopicsWithoutSubscriber(t *testing.T) {
	b := NewBus(metrics.NewNoopProvider())
	require.NoError(t, b.Publish(Event{Topic: TopicUpstreamState, Fields: map[string]interface{}{"state": "ready"}}))

	ev, ok := b.Latest(TopicUpstreamState)
	require.True(t, ok)
	assert.Equal(t, "ready", ev.Fields["state"])

	_, ok = b.Latest(TopicRPMSample)
	assert.False(t, ok)
}

func TestBusPublishRejectsMissingTopic(t *testing.T) {
	b := NewBus(metrics.NewNoopProvider())
	err := b.Publish(Event{})
	assert.Error(t, err)
}
