package proxy

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tachtalk/engine/adapter"
	"tachtalk/engine/telemetry/logging"
)

type stubRequester struct {
	records []adapter.Record
}

func (s *stubRequester) Request(ctx context.Context, command string, deadline time.Duration) ([]adapter.Record, error) {
	return s.records, nil
}

func TestServerRoundTripsELMSession(t *testing.T) {
	req := &stubRequester{records: []adapter.Record{{Service: 0x41, PID: 0x0C, Data: []byte{0x1A, 0xF8}}}}
	srv := NewServer("127.0.0.1:0", req, time.Second, logging.New(nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	srv.addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	defer conn.Close()

	_, err = conn.Write([]byte("010C\r"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	out, err := reader.ReadString('>')
	require.NoError(t, err)
	require.Contains(t, out, "41 0C 1A F8")
}

func TestServerWithClientCapSetsCap(t *testing.T) {
	req := &stubRequester{}
	srv := NewServer("127.0.0.1:0", req, time.Second, logging.New(nil), WithClientCap(4))
	require.Equal(t, 4, srv.clientCap)
}
