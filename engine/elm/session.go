package elm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tachtalk/engine/adapter"
)

// Flags holds one session's mutable protocol state (C2). It is a plain
// struct value owned exclusively by the connection's own goroutine — the
// Design Note in §9 calls for "a sum type (variant) for per-session flags
// owned by the handler task rather than a hash of handles" to avoid shared
// mutability across many concurrent clients.
type Flags struct {
	Echo     bool
	Linefeed bool
	Spaces   bool
	Headers  bool
}

// DefaultFlags matches a real ELM327's power-on defaults: echo and spaces
// on, linefeed and headers off (bare \r terminators until ATL1 is sent).
func DefaultFlags() Flags {
	return Flags{Echo: true, Linefeed: false, Spaces: true, Headers: false}
}

// Requester is the subset of the adapter channel a session needs: submit a
// command, get back the parsed records (or a channel-fatal/parse error).
type Requester interface {
	Request(ctx context.Context, command string, deadline time.Duration) ([]adapter.Record, error)
}

// Session is one client connection's ELM327 protocol state.
type Session struct {
	flags       Flags
	lastCommand string
	requester   Requester
	timeout     time.Duration
	onAtCommand func(cmd string)
	onPid       func(cmd string)
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithAtCommandHook registers a callback invoked with each AT command this
// session handles, for the status bus's AtCommandLogged topic (§4.6).
func WithAtCommandHook(fn func(cmd string)) SessionOption {
	return func(s *Session) { s.onAtCommand = fn }
}

// WithPidHook registers a callback invoked with each OBD (PID) command this
// session forwards to the adapter, for the status bus's PidLogged topic
// (§4.6).
func WithPidHook(fn func(cmd string)) SessionOption {
	return func(s *Session) { s.onPid = fn }
}

// NewSession constructs a Session with default flags, bound to the shared
// adapter channel handle and the configured OBD timeout.
func NewSession(requester Requester, timeout time.Duration, opts ...SessionOption) *Session {
	s := &Session{flags: DefaultFlags(), requester: requester, timeout: timeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one complete line (terminator already stripped by the
// Framer) and returns the full byte sequence to write back to the client:
// optional echo, the formatted reply, the line terminator, and the trailing
// prompt, per §4.2.
func (s *Session) Handle(ctx context.Context, line string) []byte {
	var out strings.Builder
	if s.flags.Echo {
		out.WriteString(line)
		out.WriteString(s.terminator())
	}

	reply := s.dispatch(ctx, line)
	out.WriteString(reply)
	out.WriteString(s.terminator())
	out.WriteByte('>')
	return []byte(out.String())
}

func (s *Session) terminator() string {
	if s.flags.Linefeed {
		return "\r\n"
	}
	return "\r"
}

func (s *Session) dispatch(ctx context.Context, line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		if s.lastCommand == "" {
			return "?"
		}
		trimmed = s.lastCommand
	} else {
		s.lastCommand = trimmed
	}

	normalized := strings.ToUpper(strings.ReplaceAll(trimmed, " ", ""))
	if strings.HasPrefix(normalized, "AT") {
		if s.onAtCommand != nil {
			s.onAtCommand(normalized)
		}
		return s.handleAT(normalized)
	}
	if s.onPid != nil {
		s.onPid(normalized)
	}
	return s.handleOBD(ctx, normalized)
}

// handleAT emulates the minimum AT command set from §4.2's table,
// case-insensitive and space-tolerant (normalized by the caller). Unknown
// AT commands reply OK, matching ELM327's permissive behavior.
func (s *Session) handleAT(cmd string) string {
	switch cmd {
	case "ATZ", "ATWS":
		s.flags = DefaultFlags()
		return "ELM327 v1.5"
	case "ATE0":
		s.flags.Echo = false
		return "OK"
	case "ATE1":
		s.flags.Echo = true
		return "OK"
	case "ATL0":
		s.flags.Linefeed = false
		return "OK"
	case "ATL1":
		s.flags.Linefeed = true
		return "OK"
	case "ATS0":
		s.flags.Spaces = false
		return "OK"
	case "ATS1":
		s.flags.Spaces = true
		return "OK"
	case "ATH0":
		s.flags.Headers = false
		return "OK"
	case "ATH1":
		s.flags.Headers = true
		return "OK"
	case "ATAT0", "ATAT1", "ATAT2":
		return "OK"
	case "ATDP":
		return "AUTO"
	case "ATDPN":
		return "A0"
	case "ATI", "AT@1":
		return "ELM327 v1.5"
	case "ATRV":
		return "12.3V"
	default:
		if strings.HasPrefix(cmd, "ATSP") {
			return "OK"
		}
		return "OK"
	}
}

// handleOBD forwards a non-AT line to the adapter channel and formats the
// parsed records back into ELM-style hex text honoring this session's own
// spaces/headers flags — independent of the wire flags the adapter channel
// used on its own connection, per the Design Note in §9.
func (s *Session) handleOBD(ctx context.Context, cmd string) string {
	records, err := s.requester.Request(ctx, cmd, s.timeout)
	if err != nil {
		return errorReply(err)
	}
	if len(records) == 0 {
		return "NO DATA"
	}
	return s.formatRecords(records)
}

func errorReply(err error) string {
	switch {
	case errorIsTimeout(err):
		return "NO DATA"
	case errorIsFault(err):
		return "UNABLE TO CONNECT"
	default:
		return "ERROR"
	}
}

func (s *Session) formatRecords(records []adapter.Record) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, s.formatRecord(r))
	}
	return strings.Join(lines, s.terminator())
}

func (s *Session) formatRecord(r adapter.Record) string {
	payload := append([]byte{r.Service, r.PID}, r.Data...)
	var header []byte
	if s.flags.Headers && r.ECU != "" {
		header = append(header, byte(len(payload)))
	}

	hex := formatHex(payload, s.flags.Spaces)
	if s.flags.Headers && r.ECU != "" {
		pci := formatHex(header, s.flags.Spaces)
		if s.flags.Spaces {
			return fmt.Sprintf("%s %s %s", r.ECU, pci, hex)
		}
		return r.ECU + pci + hex
	}
	return hex
}

func formatHex(b []byte, spaces bool) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	if spaces {
		return strings.Join(parts, " ")
	}
	return strings.Join(parts, "")
}
