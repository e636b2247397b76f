package config

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachtalk/internal/kvstore"
)

func TestStoreBootFallsBackToDefaultsOnEmptyNVS(t *testing.T) {
	s := NewStore(kvstore.NewMemory(), nil)
	cfg := s.Load()
	assert.Equal(t, Default(), cfg)
}

func TestStoreUpdateValidatesAndPersists(t *testing.T) {
	kv := kvstore.NewMemory()
	s := NewStore(kv, nil)

	bad := Default()
	bad.Thresholds[0].EndLED = bad.LED.TotalLEDs // out of range, scenario 6 in §8

	_, err := s.Update(context.Background(), bad)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	// Stored config and revision are unchanged.
	assert.Equal(t, int64(0), s.Snapshot().Seq)
	assert.Equal(t, Default(), s.Load())

	good := Default()
	good.LogLevel = LogDebug
	rev, err := s.Update(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev.Seq)
	assert.Equal(t, LogDebug, s.Load().LogLevel)

	// A fresh store over the same backing store picks up the persisted
	// revision at boot.
	s2 := NewStore(kv, nil)
	assert.Equal(t, int64(1), s2.Snapshot().Seq)
	assert.Equal(t, LogDebug, s2.Load().LogLevel)
}

func TestStoreUpdateIdempotentContentSameRevisionBody(t *testing.T) {
	s := NewStore(kvstore.NewMemory(), nil)
	cfg := Default()
	rev1, err := s.Update(context.Background(), cfg)
	require.NoError(t, err)
	rev2, err := s.Update(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, rev1.Config, rev2.Config)
	assert.Equal(t, rev1.Hash, rev2.Hash)
	assert.Greater(t, rev2.Seq, rev1.Seq)
}

func TestStoreSubscribeReceivesRevisionOnUpdate(t *testing.T) {
	s := NewStore(kvstore.NewMemory(), nil)
	ch, cancel := s.Subscribe(1)
	defer cancel()

	_, err := s.Update(context.Background(), Default())
	require.NoError(t, err)

	select {
	case seq := <-ch:
		assert.Equal(t, int64(1), seq)
	default:
		t.Fatal("expected a revision notification")
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	body, err := json.Marshal(cfg)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, cfg, decoded)
}
