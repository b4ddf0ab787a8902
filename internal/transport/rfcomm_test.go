package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMAC(t *testing.T) {
	got, err := ParseMAC("00:11:22:AA:bb:FF")
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0xff, 0xbb, 0xaa, 0x22, 0x11, 0x00}, got)
}

func TestParseMAC_Errors(t *testing.T) {
	for _, addr := range []string{"", "00:11:22", "GG:11:22:33:44:55", "00:11:22:33:44:55:66"} {
		_, err := ParseMAC(addr)
		assert.Error(t, err, addr)
	}
}
