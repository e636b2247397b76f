package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeHeadersOff(t *testing.T) {
	records := Tokenize("41 0C 1A F8\r>", false)
	rpm, ok := ExtractRPM(records)
	assert.True(t, ok)
	assert.Equal(t, uint16(1726), rpm) // scenario 2, §8
}

func TestTokenizeHeadersOn(t *testing.T) {
	records := Tokenize("7E8 04 41 0C 0B B8\r>", true)
	rpm, ok := ExtractRPM(records)
	assert.True(t, ok)
	assert.Equal(t, uint16(750), rpm) // scenario 3, §8
	assert.Equal(t, "7E8", records[0].ECU)
}

func TestTokenizeSkipsStatusLines(t *testing.T) {
	records := Tokenize("SEARCHING...\r41 0C 00 00\r>", false)
	assert.Len(t, records, 1)
}

func TestTokenizeMultiPID(t *testing.T) {
	records := Tokenize("41 05 7B 41 0C 0B B8\r>", false)
	assert.Len(t, records, 2)
	assert.Equal(t, byte(0x05), records[0].PID)
	assert.Equal(t, byte(0x0C), records[1].PID)
}

func TestTokenizeMultiECUFirstWins(t *testing.T) {
	records := Tokenize("7E8 04 41 0C 0B B8\r7E9 04 41 0C 27 10\r>", true)
	rpm, ok := ExtractRPM(records)
	assert.True(t, ok)
	assert.Equal(t, uint16(750), rpm) // first parsed value wins, §9 Open Question
}

func TestTokenizeHeaderLengthMismatchSkipped(t *testing.T) {
	records := Tokenize("7E8 99 41 0C 0B B8\r>", true)
	assert.Empty(t, records)
}

func TestTokenizeUnknownPIDStopsParsing(t *testing.T) {
	records := Tokenize("41 FF 00 41 0C 0B B8\r>", false)
	// FF is unknown; nothing after the marker is trusted, including the
	// otherwise-valid 0x0C tuple that follows it.
	assert.Empty(t, records)
}
