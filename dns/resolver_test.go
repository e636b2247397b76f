package dns

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildQuery(id uint16, name string) []byte {
	q := make([]byte, 12)
	binary.BigEndian.PutUint16(q[0:2], id)
	binary.BigEndian.PutUint16(q[4:6], 1)
	for _, label := range splitLabels(name) {
		q = append(q, byte(len(label)))
		q = append(q, label...)
	}
	q = append(q, 0x00)
	q = append(q, 0x00, 0x01) // type A
	q = append(q, 0x00, 0x01) // class IN
	return q
}

func splitLabels(name string) []string {
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	labels = append(labels, name[start:])
	return labels
}

func TestBuildAResponseAnswersWithAPAddress(t *testing.T) {
	query := buildQuery(0x1234, "tachtalk.local")
	apAddr := net.ParseIP("192.168.4.1")

	reply, ok := buildAResponse(query, apAddr)
	require.True(t, ok)
	assert.Equal(t, byte(0x12), reply[0])
	assert.Equal(t, byte(0x34), reply[1])
	assert.Equal(t, apAddr.To4(), net.IP(reply[len(reply)-4:]).To4())
}

func TestBuildAResponseRejectsEmptyQuery(t *testing.T) {
	_, ok := buildAResponse(nil, net.ParseIP("192.168.4.1"))
	assert.False(t, ok)
}
