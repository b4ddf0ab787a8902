package transport

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
)

// OpenSerial opens a tty bound to the headphones' RFCOMM channel.
func OpenSerial(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return sp, nil
}
