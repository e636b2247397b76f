package adapter

import "errors"

// Sentinel errors, checked with errors.Is per the reference engine's
// ErrCircuitOpen convention. Timeout, IO and NoPrompt are channel-fatal
// (§4.3: "First three are channel-fatal... triggers reconnect"); Parse and
// Busy are per-request.
var (
	ErrTimeout  = errors.New("adapter: timeout waiting for response")
	ErrIO       = errors.New("adapter: io error on adapter connection")
	ErrNoPrompt = errors.New("adapter: no prompt received (protocol)")
	ErrParse    = errors.New("adapter: unparseable response payload")
	ErrBusy     = errors.New("adapter: mailbox full")

	errOddHex = errors.New("adapter: odd-length hex string")
	errBadHex = errors.New("adapter: invalid hex digit")
)
