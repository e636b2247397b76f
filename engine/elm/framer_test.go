package elm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramerSplitsOnCR(t *testing.T) {
	f := NewFramer()
	lines := f.Feed([]byte("ATZ\r010C\r"))
	assert.Equal(t, []string{"ATZ", "010C"}, lines)
}

func TestFramerToleratesTrailingLF(t *testing.T) {
	f := NewFramer()
	lines := f.Feed([]byte("ATZ\r\n010C\r\n"))
	assert.Equal(t, []string{"ATZ", "010C"}, lines)
}

func TestFramerRetainsPartialLine(t *testing.T) {
	f := NewFramer()
	assert.Empty(t, f.Feed([]byte("AT")))
	lines := f.Feed([]byte("Z\r"))
	assert.Equal(t, []string{"ATZ"}, lines)
}
