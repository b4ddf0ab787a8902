// Package transport opens byte streams to the headphones.
//
// Sony headphones expose their control protocol on an RFCOMM channel advertised
// under service UUID 96cc203e-5068-46ad-b32d-e316f5e069ba. Three ways to reach
// it are supported:
//   - DialRFCOMM: connect a raw RFCOMM socket to a known channel
//   - OpenSerial: use a tty bound with `rfcomm bind` (e.g. /dev/rfcomm0)
//   - FromFD: wrap the socket BlueZ hands to a registered profile
//
// All of them return an io.ReadWriteCloser whose Close unblocks pending reads.
package transport

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DialRFCOMM opens an RFCOMM connection to addr on the given channel.
func DialRFCOMM(addr string, channel uint8) (*os.File, error) {
	bdAddr, err := ParseMAC(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address: %w", err)
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("failed to create RFCOMM socket: %w", err)
	}

	sa := &unix.SockaddrRFCOMM{Addr: bdAddr, Channel: channel}
	if err := unix.Connect(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to connect to %s channel %d: %w", addr, channel, err)
	}

	return FromFD(fd, fmt.Sprintf("rfcomm:%s/%d", addr, channel))
}

// FromFD wraps a connected socket descriptor. The descriptor is switched to
// non-blocking mode so reads go through the runtime poller.
func FromFD(fd int, name string) (*os.File, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set non-blocking: %w", err)
	}
	f := os.NewFile(uintptr(fd), name)
	if f == nil {
		return nil, fmt.Errorf("invalid file descriptor %d", fd)
	}
	return f, nil
}

// ParseMAC converts "XX:XX:XX:XX:XX:XX" to the byte order the kernel expects.
func ParseMAC(addr string) ([6]byte, error) {
	var bdaddr [6]byte

	cleaned := strings.ReplaceAll(addr, ":", "")
	if len(cleaned) != 12 {
		return bdaddr, fmt.Errorf("invalid MAC address length")
	}

	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return bdaddr, fmt.Errorf("invalid hex in MAC address: %w", err)
	}

	// Bluetooth addresses are stored in reverse order
	for i := 0; i < 6; i++ {
		bdaddr[i] = raw[5-i]
	}

	return bdaddr, nil
}
