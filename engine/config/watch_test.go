package config

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachtalk/internal/kvstore"
)

func TestStoreWatchFileReloadsOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	kv, err := kvstore.NewFileStore(dir)
	require.NoError(t, err)

	s := NewStore(kv, nil)
	path := kv.Path(Namespace, Key)

	ch, cancel := s.Subscribe(1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	closeWatch, err := s.WatchFile(ctx, path)
	require.NoError(t, err)
	defer closeWatch()

	next := Default()
	next.LogLevel = LogDebug
	writeBlob(t, path, 7, next)

	require.Eventually(t, func() bool {
		return s.Load().LogLevel == LogDebug
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(7), s.Snapshot().Seq)

	select {
	case seq := <-ch:
		assert.Equal(t, int64(7), seq)
	case <-time.After(time.Second):
		t.Fatal("expected a revision notification from the hot-reload")
	}
}

func TestStoreWatchFileIgnoresInvalidWrite(t *testing.T) {
	dir := t.TempDir()
	kv, err := kvstore.NewFileStore(dir)
	require.NoError(t, err)

	s := NewStore(kv, nil)
	path := kv.Path(Namespace, Key)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	closeWatch, err := s.WatchFile(ctx, path)
	require.NoError(t, err)
	defer closeWatch()

	bad := Default()
	bad.Thresholds[0].EndLED = bad.LED.TotalLEDs
	writeBlob(t, path, 1, bad)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Default(), s.Load())
	assert.Equal(t, int64(0), s.Snapshot().Seq)
}

func writeBlob(t *testing.T, path string, seq int64, cfg Config) {
	t.Helper()
	payload := struct {
		Seq    int64  `json:"seq"`
		Config Config `json:"config"`
	}{Seq: seq, Config: cfg}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	blob := append([]byte{SchemaByte}, body...)
	require.NoError(t, os.WriteFile(path, blob, 0o644))
}
