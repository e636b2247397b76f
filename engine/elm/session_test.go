package elm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachtalk/engine/adapter"
)

type fakeRequester struct {
	records []adapter.Record
	err     error
}

func (f *fakeRequester) Request(ctx context.Context, command string, deadline time.Duration) ([]adapter.Record, error) {
	return f.records, f.err
}

func TestSessionResetRestoresDefaultFlags(t *testing.T) {
	s := NewSession(&fakeRequester{}, time.Second)
	s.flags.Echo = false
	out := s.Handle(context.Background(), "ATZ")
	assert.Equal(t, Flags{Echo: true, Linefeed: false, Spaces: true, Headers: false}, s.flags)
	assert.Contains(t, string(out), "ELM327")
}

func TestSessionEmptyLineRepeatsLastCommand(t *testing.T) {
	s := NewSession(&fakeRequester{}, time.Second)
	s.Handle(context.Background(), "ATE0") // turns echo off
	out := s.Handle(context.Background(), "")
	assert.Equal(t, "OK\r>", string(out))
}

func TestSessionEmptyLineWithNoHistoryRepliesQuestionMark(t *testing.T) {
	s := NewSession(&fakeRequester{}, time.Second)
	out := s.Handle(context.Background(), "")
	assert.Equal(t, "\r?\r>", string(out))
}

func TestSessionEchoScenario(t *testing.T) {
	// Scenario 4, §8: default flags, client sends ATE1 then 010C.
	records := []adapter.Record{{Service: 0x41, PID: 0x0C, Data: []byte{0x1A, 0xF8}}}
	s := NewSession(&fakeRequester{records: records}, time.Second)

	out1 := s.Handle(context.Background(), "ATE1")
	require.Equal(t, "ATE1\rOK\r>", string(out1))

	out2 := s.Handle(context.Background(), "010C")
	assert.Equal(t, "010C\r41 0C 1A F8\r>", string(out2))
}

func TestSessionNoDataWhenZeroRecords(t *testing.T) {
	s := NewSession(&fakeRequester{records: nil}, time.Second)
	out := s.Handle(context.Background(), "010C")
	assert.Contains(t, string(out), "NO DATA")
}

func TestSessionUpstreamTimeoutMapsToNoData(t *testing.T) {
	s := NewSession(&fakeRequester{err: adapter.ErrTimeout}, time.Second)
	out := s.Handle(context.Background(), "010C")
	assert.Contains(t, string(out), "NO DATA")
}

func TestSessionAdapterFaultMapsToUnableToConnect(t *testing.T) {
	s := NewSession(&fakeRequester{err: adapter.ErrIO}, time.Second)
	out := s.Handle(context.Background(), "010C")
	assert.Contains(t, string(out), "UNABLE TO CONNECT")
}

func TestSessionGenericErrorMapsToError(t *testing.T) {
	s := NewSession(&fakeRequester{err: errors.New("boom")}, time.Second)
	out := s.Handle(context.Background(), "010C")
	assert.Contains(t, string(out), "ERROR")
}

func TestSessionHooksReportAtCommandsAndPids(t *testing.T) {
	records := []adapter.Record{{Service: 0x41, PID: 0x0C, Data: []byte{0x1A, 0xF8}}}
	var atCmds, pids []string
	s := NewSession(&fakeRequester{records: records}, time.Second,
		WithAtCommandHook(func(cmd string) { atCmds = append(atCmds, cmd) }),
		WithPidHook(func(cmd string) { pids = append(pids, cmd) }),
	)

	s.Handle(context.Background(), "ATE0")
	s.Handle(context.Background(), "010C")

	assert.Equal(t, []string{"ATE0"}, atCmds)
	assert.Equal(t, []string{"010C"}, pids)
}

func TestSessionHeadersOnIncludesECUAndPCI(t *testing.T) {
	records := []adapter.Record{{ECU: "7E8", Service: 0x41, PID: 0x0C, Data: []byte{0x0B, 0xB8}}}
	s := NewSession(&fakeRequester{records: records}, time.Second)
	s.Handle(context.Background(), "ATH1")
	out := s.Handle(context.Background(), "010C")
	assert.Contains(t, string(out), "7E8")
	assert.Contains(t, string(out), "04")
}
