// Package proxy implements the OBD proxy server and idle poller (C4): the
// TCP listener that spawns one ELM327 session per client over a shared
// adapter channel handle, with a bounded concurrent-client cap.
package proxy

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"tachtalk/engine/adapter"
	"tachtalk/engine/elm"
	"tachtalk/engine/telemetry/logging"
)

// defaultCap is the concurrent-client cap when none is configured; §4.4
// requires it never go below 4.
const defaultCap = 8

// Server is the proxy listener (C4).
type Server struct {
	addr      string
	requester elm.Requester
	timeout   time.Duration
	log       logging.Logger
	clientCap int

	inFlight         atomic.Int32
	clientCount      atomic.Int32
	onClientsChanged func(int)
	onAtCommand      func(string)
	onPid            func(string)
}

// Option configures a Server at construction.
type Option func(*Server)

// WithClientCap overrides the default concurrent-client cap (never below 4
// per §4.4).
func WithClientCap(n int) Option {
	return func(s *Server) {
		if n < 4 {
			n = 4
		}
		s.clientCap = n
	}
}

// WithClientsChangedHook registers a callback invoked with the current
// connected-client count whenever it changes, for the status bus (C6).
func WithClientsChangedHook(fn func(int)) Option {
	return func(s *Server) { s.onClientsChanged = fn }
}

// WithAtCommandHook registers a callback invoked with every AT command
// handled by any client session, for the status bus's AtCommandLogged
// topic (§4.6).
func WithAtCommandHook(fn func(string)) Option {
	return func(s *Server) { s.onAtCommand = fn }
}

// WithPidHook registers a callback invoked with every OBD command
// forwarded by any client session, for the status bus's PidLogged topic
// (§4.6).
func WithPidHook(fn func(string)) Option {
	return func(s *Server) { s.onPid = fn }
}

// NewServer constructs a proxy Server bound to addr, using requester (the
// shared adapter channel handle) to service OBD requests.
func NewServer(addr string, requester elm.Requester, timeout time.Duration, log logging.Logger, opts ...Option) *Server {
	s := &Server{addr: addr, requester: requester, timeout: timeout, log: log, clientCap: defaultCap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientsActive reports whether any client currently has an in-flight
// request, used by the idle poller to suspend itself per §4.4.
func (s *Server) ClientsActive() bool { return s.inFlight.Load() > 0 }

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int { return int(s.clientCount.Load()) }

// Serve listens on addr and handles connections until ctx is cancelled or
// the listener errors.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	sem := make(chan struct{}, s.clientCap)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		select {
		case sem <- struct{}{}:
			s.clientCount.Add(1)
			s.notifyClients()
			go func() {
				defer func() {
					<-sem
					s.clientCount.Add(-1)
					s.notifyClients()
				}()
				s.handle(ctx, conn)
			}()
		default:
			// Beyond cap: accept-and-immediately-close, per §4.4.
			_ = conn.Close()
		}
	}
}

func (s *Server) notifyClients() {
	if s.onClientsChanged != nil {
		s.onClientsChanged(s.ClientCount())
	}
}

// handle reads lines from conn until EOF or a write error, feeding each
// complete line through an elm.Session and writing the formatted reply,
// per §4.4's handler loop.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	session := elm.NewSession(s.requester, s.timeout,
		elm.WithAtCommandHook(s.onAtCommand),
		elm.WithPidHook(s.onPid),
	)
	framer := elm.NewFramer()
	buf := make([]byte, 512)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		lines := framer.Feed(buf[:n])
		for _, line := range lines {
			s.inFlight.Add(1)
			reqCtx, cancel := context.WithTimeout(ctx, 2*s.timeout)
			out := session.Handle(reqCtx, line)
			cancel()
			s.inFlight.Add(-1)
			if _, err := conn.Write(out); err != nil {
				return
			}
		}
	}
}

var _ elm.Requester = (*adapter.Channel)(nil)
