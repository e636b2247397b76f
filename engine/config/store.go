package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tachtalk/engine/telemetry/logging"
	"tachtalk/internal/kvstore"
)

// Namespace and key the configuration blob is persisted under, per §6.
const (
	Namespace  = "tachtalk"
	Key        = "config.v1"
	SchemaByte = byte(1)
)

// Revision wraps a committed configuration with the monotonic sequence
// number, content hash and timestamp the reference engine's VersionedConfig
// pattern uses for auditability.
type Revision struct {
	Seq       int64     `json:"seq"`
	Hash      string    `json:"hash"`
	AppliedAt time.Time `json:"applied_at"`
	Config    Config    `json:"config"`
}

// Store is the configuration store contract (C5).
type Store struct {
	kv     kvstore.Store
	log    logging.Logger
	mu     sync.Mutex // serializes writes/persistence, per §4.5 Atomicity
	seq    atomic.Int64
	ptr    atomic.Pointer[Revision]
	subsMu sync.Mutex
	subs   map[int64]chan int64
	nextID int64
}

// NewStore constructs a Store and loads the persisted configuration (or
// falls back to defaults), matching §4.5's boot contract.
func NewStore(kv kvstore.Store, log logging.Logger) *Store {
	if log == nil {
		log = logging.New(nil)
	}
	s := &Store{kv: kv, log: log, subs: make(map[int64]chan int64)}
	s.boot()
	return s
}

func (s *Store) boot() {
	ctx := context.Background()
	cfg, seq, ok := s.loadPersisted(ctx)
	if !ok {
		cfg = Default()
		seq = 0
	}
	rev := &Revision{Seq: seq, Hash: hashConfig(cfg), AppliedAt: time.Now(), Config: cfg}
	s.seq.Store(seq)
	s.ptr.Store(rev)
}

func (s *Store) loadPersisted(ctx context.Context) (Config, int64, bool) {
	blob, err := s.kv.Get(Namespace, Key)
	if err != nil {
		s.log.InfoCtx(ctx, "config: no persisted configuration, using defaults", "error", err)
		return Config{}, 0, false
	}
	if len(blob) < 1 {
		s.log.WarnCtx(ctx, "config: persisted blob empty, using defaults")
		return Config{}, 0, false
	}
	if blob[0] != SchemaByte {
		s.log.WarnCtx(ctx, "config: unexpected schema byte, using defaults", "schema", blob[0])
		return Config{}, 0, false
	}
	var stored struct {
		Seq    int64  `json:"seq"`
		Config Config `json:"config"`
	}
	if err := json.Unmarshal(blob[1:], &stored); err != nil {
		s.log.WarnCtx(ctx, "config: decode failure, falling back to defaults without overwriting NVS", "error", err)
		return Config{}, 0, false
	}
	if err := stored.Config.Validate(); err != nil {
		s.log.WarnCtx(ctx, "config: persisted configuration invalid, falling back to defaults without overwriting NVS", "error", err)
		return Config{}, 0, false
	}
	return stored.Config, stored.Seq, true
}

// Load returns the current configuration value, per the C5 contract.
func (s *Store) Load() Config {
	return s.ptr.Load().Config
}

// Snapshot returns the full current revision, immutable and safe to read
// concurrently from any subsystem.
func (s *Store) Snapshot() Revision {
	return *s.ptr.Load()
}

// ValidationError is returned by Update when the proposed configuration
// fails validation; the caller (HTTP API) maps this onto a 400 response
// with {"error": ...} per §6.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Update validates, persists and publishes a new configuration. On
// validation failure the persisted/live configuration is left untouched and
// a *ValidationError is returned.
func (s *Store) Update(ctx context.Context, next Config) (Revision, error) {
	if err := next.Validate(); err != nil {
		return Revision{}, &ValidationError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newSeq := s.seq.Load() + 1
	payload := struct {
		Seq    int64  `json:"seq"`
		Config Config `json:"config"`
	}{Seq: newSeq, Config: next}

	body, err := json.Marshal(payload)
	if err != nil {
		return Revision{}, fmt.Errorf("config: marshal: %w", err)
	}
	blob := make([]byte, 0, len(body)+1)
	blob = append(blob, SchemaByte)
	blob = append(blob, body...)

	if err := s.kv.Put(Namespace, Key, blob); err != nil {
		return Revision{}, fmt.Errorf("config: persist: %w", err)
	}

	rev := &Revision{Seq: newSeq, Hash: hashConfig(next), AppliedAt: time.Now(), Config: next}
	s.seq.Store(newSeq)
	s.ptr.Store(rev)
	s.log.InfoCtx(ctx, "config: updated", "seq", newSeq, "hash", rev.Hash)
	s.notify(newSeq)
	return *rev, nil
}

// Subscribe returns a buffered channel of revision sequence numbers,
// delivered whenever Update (or a hot-reload, see watch.go) commits
// successfully.
func (s *Store) Subscribe(buffer int) (<-chan int64, func()) {
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan int64, buffer)
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
		close(ch)
	}
}

func (s *Store) notify(seq int64) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- seq:
		default:
			// Subscriber is behind; it can always re-read via Snapshot().
		}
	}
}

func hashConfig(c Config) string {
	body, _ := json.Marshal(c)
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}
