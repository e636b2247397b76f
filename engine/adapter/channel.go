package adapter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"tachtalk/engine/telemetry/logging"
)

// Dialer opens the physical connection to the adapter. Production wiring
// uses net.Dial("tcp", addr); tests substitute a net.Pipe or similar.
type Dialer func(ctx context.Context) (net.Conn, error)

type request struct {
	command  string
	deadline time.Duration
	result   chan result
}

type result struct {
	records []Record
	err     error
}

// Channel owns the single TCP connection to the physical OBD-II adapter
// (C3): FIFO mailbox, connection state machine and reconnect loop.
type Channel struct {
	dial        Dialer
	headersWire bool // ATH setting used on this connection, independent of any client's session flags
	mailboxCap  int
	log         logging.Logger
	onRecords   func([]Record)  // called with every parsed record batch, e.g. to feed the RPM cell
	onState     func(ConnState) // called on every connection-state transition, for the status bus

	mailbox chan *request

	mu    sync.Mutex
	state ConnState
}

// Option configures a Channel at construction.
type Option func(*Channel)

// WithHeaders sets whether the channel asks the physical adapter for
// headers (ATH1) on its own connection, per the Design Note in §9: this is
// independent of any client session's headers flag.
func WithHeaders(on bool) Option { return func(c *Channel) { c.headersWire = on } }

// WithMailboxCapacity overrides the default bounded mailbox size (8).
func WithMailboxCapacity(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.mailboxCap = n
		}
	}
}

// WithRecordSink registers a callback invoked with every batch of Records
// parsed from an adapter reply, used by the idle poller / RPM cell wiring.
func WithRecordSink(fn func([]Record)) Option { return func(c *Channel) { c.onRecords = fn } }

// WithStateSink registers a callback invoked with every connection-state
// transition, for the status bus's UpstreamState topic (§4.6).
func WithStateSink(fn func(ConnState)) Option { return func(c *Channel) { c.onState = fn } }

// NewChannel constructs a Channel. Call Run to start its connection
// goroutine; Run blocks until ctx is cancelled.
func NewChannel(dial Dialer, log logging.Logger, opts ...Option) *Channel {
	c := &Channel{
		dial:        dial,
		headersWire: false,
		mailboxCap:  8,
		log:         log,
		state:       Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mailbox = make(chan *request, c.mailboxCap)
	return c
}

// State returns the channel's current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(s)
	}
}

// Request enqueues a command for the physical adapter and blocks until a
// response, deadline, context cancellation, or a full mailbox. A full
// mailbox returns ErrBusy immediately, per §5's backpressure rule.
func (c *Channel) Request(ctx context.Context, command string, deadline time.Duration) ([]Record, error) {
	req := &request{command: command, deadline: deadline, result: make(chan result, 1)}
	select {
	case c.mailbox <- req:
	default:
		return nil, ErrBusy
	}
	select {
	case res := <-req.result:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drives the connect/initialize/serve/reconnect loop until ctx is
// cancelled. It is meant to run in its own goroutine for the channel's
// lifetime.
func (c *Channel) Run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			c.drain(ctx.Err())
			return
		default:
		}

		c.setState(Connecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.log.WarnCtx(ctx, "adapter: dial failed", "error", err, "attempt", attempt)
			if !c.sleep(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		c.setState(Initializing)
		if err := c.initialize(ctx, conn); err != nil {
			c.log.WarnCtx(ctx, "adapter: init failed", "error", err)
			_ = conn.Close()
			if !c.sleep(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		attempt = 0
		c.setState(Ready)
		c.log.InfoCtx(ctx, "adapter: ready")
		fatal := c.serve(ctx, conn)
		_ = conn.Close()
		if fatal == nil {
			return // context cancelled cleanly
		}
		c.setState(Faulted)
		c.log.WarnCtx(ctx, "adapter: channel faulted, reconnecting", "error", fatal)
	}
}

func (c *Channel) sleep(ctx context.Context, attempt int) bool {
	d := time.Duration(backoffMillis(attempt)) * time.Millisecond
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// initialize issues the startup AT sequence from §4.3: ATZ, ATE0, ATS0,
// ATL0, then ATH0 or ATH1 per the channel's own wire policy.
func (c *Channel) initialize(ctx context.Context, conn net.Conn) error {
	seq := []string{"ATZ", "ATE0", "ATS0", "ATL0"}
	if c.headersWire {
		seq = append(seq, "ATH1")
	} else {
		seq = append(seq, "ATH0")
	}
	for _, cmd := range seq {
		if _, err := writeUntilPrompt(conn, cmd, 2*time.Second); err != nil {
			return fmt.Errorf("init %s: %w", cmd, err)
		}
	}
	return nil
}

// serve processes the mailbox in FIFO order until a channel-fatal error
// occurs or ctx is cancelled (returning nil in the latter case).
func (c *Channel) serve(ctx context.Context, conn net.Conn) error {
	for {
		select {
		case <-ctx.Done():
			c.drain(ctx.Err())
			return nil
		case req := <-c.mailbox:
			raw, err := writeUntilPrompt(conn, req.command, req.deadline)
			if err != nil {
				req.result <- result{err: err}
				c.drain(err)
				return err
			}
			records := Tokenize(raw, c.headersWire)
			if c.onRecords != nil {
				c.onRecords(records)
			}
			req.result <- result{records: records}
		}
	}
}

// drain empties the mailbox, delivering err to every waiting caller, per
// §4.3: "drain the mailbox with timeout to each waiter."
func (c *Channel) drain(err error) {
	for {
		select {
		case req := <-c.mailbox:
			req.result <- result{err: err}
		default:
			return
		}
	}
}

// writeUntilPrompt sends command + '\r' and reads raw bytes until the '>'
// prompt or deadline, returning the response minus the prompt, per §4.3's
// request semantics.
func writeUntilPrompt(conn net.Conn, command string, deadline time.Duration) (string, error) {
	if deadline <= 0 {
		deadline = 2 * time.Second
	}
	if err := conn.SetDeadline(time.Now().Add(deadline)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := conn.Write([]byte(command + "\r")); err != nil {
		return "", classifyIOErr(err)
	}

	r := bufio.NewReader(conn)
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", classifyIOErr(err)
		}
		if b == '>' {
			return string(out), nil
		}
		out = append(out, b)
	}
}

func classifyIOErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrNoPrompt, err)
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}
