package config

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchFile enables optional hot-reload of the on-disk NVS blob, following
// the reference engine's HotReloadSystem: a write to path triggers a
// re-validate-and-publish cycle. Invalid writes are logged and ignored,
// never applied and never overwritten (same fallback rule as boot). This is
// additive to, not a replacement for, Update via the HTTP API, and exists
// only on hosts where the backing store is a real file (internal/kvstore's
// FileStore); it is a no-op choice for production NVS, which has no
// filesystem to watch.
func (s *Store) WatchFile(ctx context.Context, path string) (func() error, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := s.writeSnapshotFile(path); err != nil {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.reloadFromFile(ctx, path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.WarnCtx(ctx, "config: watcher error", "error", err)
			}
		}
	}()
	return watcher.Close, nil
}

// writeSnapshotFile seeds path with the store's current revision, so a
// watch can be established before any external writer has ever touched the
// file (e.g. right after boot from an empty NVS).
func (s *Store) writeSnapshotFile(path string) error {
	rev := s.Snapshot()
	body, err := json.Marshal(struct {
		Seq    int64  `json:"seq"`
		Config Config `json:"config"`
	}{Seq: rev.Seq, Config: rev.Config})
	if err != nil {
		return err
	}
	blob := append([]byte{SchemaByte}, body...)
	return os.WriteFile(path, blob, 0o644)
}

func (s *Store) reloadFromFile(ctx context.Context, path string) {
	blob, err := os.ReadFile(path)
	if err != nil || len(blob) < 1 || blob[0] != SchemaByte {
		s.log.WarnCtx(ctx, "config: hot-reload read failed, ignoring", "error", err)
		return
	}
	var stored struct {
		Seq    int64  `json:"seq"`
		Config Config `json:"config"`
	}
	if err := json.Unmarshal(blob[1:], &stored); err != nil {
		s.log.WarnCtx(ctx, "config: hot-reload decode failed, ignoring", "error", err)
		return
	}
	if err := stored.Config.Validate(); err != nil {
		s.log.WarnCtx(ctx, "config: hot-reload validation failed, ignoring", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored.Seq <= s.seq.Load() {
		return
	}
	rev := &Revision{Seq: stored.Seq, Hash: hashConfig(stored.Config), AppliedAt: time.Now(), Config: stored.Config}
	s.seq.Store(stored.Seq)
	s.ptr.Store(rev)
	s.log.InfoCtx(ctx, "config: hot-reloaded", "seq", stored.Seq)
	s.notify(stored.Seq)
}
