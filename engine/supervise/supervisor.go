package supervise

import (
	"context"
	"sync"
	"time"

	"tachtalk/engine/telemetry/logging"
)

// RestartPolicy controls how the watchdog reacts to a missed heartbeat.
type RestartPolicy int

const (
	// Permanent tasks are restarted automatically after 3 missed beats.
	Permanent RestartPolicy = iota
	// Transient tasks (one-shot scans) are left to finish or fail on their
	// own; the watchdog does not restart them.
	Transient
)

const (
	heartbeatInterval = time.Second
	maxMissedBeats    = 3
)

// Task is one long-lived subsystem registered with the Supervisor, per
// §4.8: identity, restart policy, and a heartbeat it must answer.
type Task struct {
	Name      string
	Policy    RestartPolicy
	Heartbeat func(ctx context.Context) error
	Restart   func(ctx context.Context) error
}

type taskState struct {
	task   Task
	missed int
}

// Supervisor runs the watchdog loop from §4.8: every heartbeatInterval it
// calls each Task's Heartbeat, restarting permanent tasks that miss
// maxMissedBeats consecutive beats.
type Supervisor struct {
	log       logging.Logger
	evaluator *Evaluator

	mu    sync.Mutex
	tasks map[string]*taskState
}

// NewSupervisor constructs an empty Supervisor with its own health
// Evaluator (2s TTL).
func NewSupervisor(log logging.Logger) *Supervisor {
	return &Supervisor{log: log, tasks: make(map[string]*taskState), evaluator: NewEvaluator(2 * time.Second)}
}

// Evaluator returns the Supervisor's health evaluator, so callers can
// register subsystem probes and the HTTP health handler can evaluate it.
func (s *Supervisor) Evaluator() *Evaluator { return s.evaluator }

// Register adds a task to the watchdog.
func (s *Supervisor) Register(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.Name] = &taskState{task: t}
}

// Restart explicitly restarts one named task, used when a configuration
// change affects only that subsystem (listen port, LED pin, Wi-Fi), per
// §4.8.
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	s.mu.Lock()
	st, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok || st.task.Restart == nil {
		return nil
	}
	err := st.task.Restart(ctx)
	s.log.InfoCtx(ctx, "supervise: restarted task", "task", name, "error", err)
	return err
}

// Run drives the watchdog loop until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	s.mu.Lock()
	states := make([]*taskState, 0, len(s.tasks))
	for _, st := range s.tasks {
		states = append(states, st)
	}
	s.mu.Unlock()

	for _, st := range states {
		if st.task.Heartbeat == nil {
			continue
		}
		if err := st.task.Heartbeat(ctx); err != nil {
			st.missed++
			s.log.WarnCtx(ctx, "supervise: missed heartbeat", "task", st.task.Name, "missed", st.missed, "error", err)
			if st.task.Policy == Permanent && st.missed >= maxMissedBeats {
				st.missed = 0
				if st.task.Restart != nil {
					if err := st.task.Restart(ctx); err != nil {
						s.log.ErrorCtx(ctx, "supervise: restart failed", "task", st.task.Name, "error", err)
					} else {
						s.log.InfoCtx(ctx, "supervise: task restarted after missed heartbeats", "task", st.task.Name)
					}
				}
			}
			continue
		}
		st.missed = 0
	}
}
