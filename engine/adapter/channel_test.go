package adapter

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tachtalk/engine/telemetry/logging"
)

// fakeAdapter serves one end of a net.Pipe, replying OK to every AT command
// and a canned RPM frame to "010C", terminating every reply with '>'.
func fakeAdapter(t *testing.T, conn net.Conn) {
	t.Helper()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\r')
		if err != nil {
			return
		}
		cmd := line[:len(line)-1]
		var reply string
		switch cmd {
		case "010C":
			reply = "41 0C 1A F8\r"
		default:
			reply = "OK\r"
		}
		if _, err := conn.Write([]byte(reply + ">")); err != nil {
			return
		}
	}
}

func newTestChannel(t *testing.T) (*Channel, context.CancelFunc) {
	t.Helper()
	client, server := net.Pipe()
	go fakeAdapter(t, server)

	dial := func(ctx context.Context) (net.Conn, error) { return client, nil }
	ch := NewChannel(dial, logging.New(nil))

	ctx, cancel := context.WithCancel(context.Background())
	go ch.Run(ctx)
	return ch, cancel
}

func TestChannelRequestReturnsParsedRPM(t *testing.T) {
	ch, cancel := newTestChannel(t)
	defer cancel()

	require.Eventually(t, func() bool { return ch.State() == Ready }, time.Second, time.Millisecond)

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	records, err := ch.Request(ctx, "010C", 500*time.Millisecond)
	require.NoError(t, err)
	rpm, ok := ExtractRPM(records)
	require.True(t, ok)
	require.Equal(t, uint16(1726), rpm)
}

func TestChannelMailboxFullReturnsErrBusy(t *testing.T) {
	ch := NewChannel(func(ctx context.Context) (net.Conn, error) {
		return nil, context.DeadlineExceeded // never connects, so nothing ever drains
	}, logging.New(nil), WithMailboxCapacity(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	// Fill the single mailbox slot directly so the next enqueue overflows.
	ch.mailbox <- &request{command: "010C", result: make(chan result, 1)}

	_, err := ch.Request(context.Background(), "010C", 100*time.Millisecond)
	require.ErrorIs(t, err, ErrBusy)
}

func TestChannelStateSinkReportsTransitions(t *testing.T) {
	client, server := net.Pipe()
	go fakeAdapter(t, server)

	var mu sync.Mutex
	var seen []ConnState
	dial := func(ctx context.Context) (net.Conn, error) { return client, nil }
	ch := NewChannel(dial, logging.New(nil), WithStateSink(func(s ConnState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, seen, Connecting)
	require.Contains(t, seen, Initializing)
	require.Contains(t, seen, Ready)
}
