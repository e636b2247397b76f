// Package dns implements the captive-portal DNS responder (C7): on the AP
// interface, answer every A query with the device's own address so station
// clients are redirected to the configuration UI. A full DNS library is not
// warranted for this one always-the-same-answer behavior (see DESIGN.md);
// this hand-rolled responder only ever needs to parse a query ID, question
// name, and type, and rebuild a matching A answer.
package dns

import (
	"context"
	"encoding/binary"
	"net"

	"tachtalk/engine/telemetry/logging"
)

const defaultTTL = 30

// CaptiveResolver answers every A query received on UDP 53 with apAddr.
type CaptiveResolver struct {
	apAddr net.IP
	log    logging.Logger
}

// NewCaptiveResolver constructs a CaptiveResolver that answers with apAddr.
func NewCaptiveResolver(apAddr net.IP, log logging.Logger) *CaptiveResolver {
	return &CaptiveResolver{apAddr: apAddr, log: log}
}

// Serve listens on UDP 53 until ctx is cancelled.
func (r *CaptiveResolver) Serve(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 512)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		reply, ok := buildAResponse(buf[:n], r.apAddr)
		if !ok {
			continue
		}
		if _, err := conn.WriteTo(reply, peer); err != nil {
			r.log.WarnCtx(ctx, "dns: write failed", "error", err)
		}
	}
}

// buildAResponse parses the minimal fields of a DNS query needed to answer
// an A question and constructs a matching response, every A query
// answered identically with ttl=30, per §6.
func buildAResponse(query []byte, apAddr net.IP) ([]byte, bool) {
	if len(query) < 12 {
		return nil, false
	}
	id := query[0:2]
	qdcount := binary.BigEndian.Uint16(query[4:6])
	if qdcount == 0 {
		return nil, false
	}

	// Locate the end of the question section (name + qtype + qclass).
	i := 12
	for i < len(query) {
		l := int(query[i])
		if l == 0 {
			i++
			break
		}
		i += l + 1
	}
	i += 4 // qtype + qclass
	if i > len(query) {
		return nil, false
	}
	question := query[12:i]

	resp := make([]byte, 0, i+16)
	resp = append(resp, id...)
	resp = append(resp, 0x81, 0x80) // standard query response, no error
	resp = append(resp, 0x00, 0x01) // qdcount=1
	resp = append(resp, 0x00, 0x01) // ancount=1
	resp = append(resp, 0x00, 0x00) // nscount=0
	resp = append(resp, 0x00, 0x00) // arcount=0
	resp = append(resp, question...)

	resp = append(resp, 0xC0, 0x0C) // name: pointer to offset 12
	resp = append(resp, 0x00, 0x01) // type A
	resp = append(resp, 0x00, 0x01) // class IN
	ttl := make([]byte, 4)
	binary.BigEndian.PutUint32(ttl, defaultTTL)
	resp = append(resp, ttl...)
	resp = append(resp, 0x00, 0x04) // rdlength=4
	resp = append(resp, apAddr.To4()...)

	return resp, true
}
