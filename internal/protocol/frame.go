package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Frame markers
const (
	frameStart  = 0x3E
	frameEnd    = 0x3C
	frameEscape = 0x3D

	escapeMask = 0xEF
)

// Frame data types
const (
	DataTypeAck      byte = 0x01
	DataTypeCommand1 byte = 0x0C
	DataTypeCommand2 byte = 0x0E
)

// MaxFrameSize bounds a single escaped frame in the receive buffer.
const MaxFrameSize = 2048

// frameHeaderSize is data type + sequence number + 4 length bytes
const frameHeaderSize = 6

var (
	ErrFrameStart    = errors.New("frame does not begin with start marker")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrFrameLength   = errors.New("frame length field does not match payload")
	ErrChecksum      = errors.New("frame checksum mismatch")
	ErrEscape        = errors.New("invalid escape sequence")
)

// Frame is one unescaped protocol frame.
type Frame struct {
	DataType byte
	Seq      byte
	Payload  []byte
}

// checksum sums every unescaped byte between the markers except the checksum itself.
func checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return sum
}

// MarshalFrame builds the wire representation of f.
//
// Format:
//
//	3E [type] [seq] [len 4 bytes BE] [payload...] [checksum] 3C
//
// Everything between the markers is escaped.
func MarshalFrame(f Frame) []byte {
	body := make([]byte, frameHeaderSize, frameHeaderSize+len(f.Payload)+1)
	body[0] = f.DataType
	body[1] = f.Seq
	binary.BigEndian.PutUint32(body[2:6], uint32(len(f.Payload)))
	body = append(body, f.Payload...)
	body = append(body, checksum(body))

	out := make([]byte, 0, len(body)+8)
	out = append(out, frameStart)
	for _, b := range body {
		switch b {
		case frameStart, frameEnd, frameEscape:
			out = append(out, frameEscape, b&escapeMask)
		default:
			out = append(out, b)
		}
	}
	return append(out, frameEnd)
}

// UnmarshalFrame decodes one complete frame including both markers.
func UnmarshalFrame(raw []byte) (Frame, error) {
	if len(raw) < 2 || raw[0] != frameStart || raw[len(raw)-1] != frameEnd {
		return Frame{}, ErrFrameStart
	}

	body := make([]byte, 0, len(raw)-2)
	inner := raw[1 : len(raw)-1]
	for i := 0; i < len(inner); i++ {
		b := inner[i]
		if b != frameEscape {
			body = append(body, b)
			continue
		}
		i++
		if i == len(inner) {
			return Frame{}, ErrEscape
		}
		unescaped := inner[i] | ^byte(escapeMask)
		switch unescaped {
		case frameStart, frameEnd, frameEscape:
			body = append(body, unescaped)
		default:
			return Frame{}, errors.Wrapf(ErrEscape, "escaped byte 0x%02x", inner[i])
		}
	}

	if len(body) < frameHeaderSize+1 {
		return Frame{}, errors.Wrapf(ErrFrameLength, "frame body of %d bytes", len(body))
	}

	length := binary.BigEndian.Uint32(body[2:6])
	if int(length) != len(body)-frameHeaderSize-1 {
		return Frame{}, errors.Wrapf(ErrFrameLength, "length %d, got %d", length, len(body)-frameHeaderSize-1)
	}

	want := body[len(body)-1]
	if got := checksum(body[:len(body)-1]); got != want {
		return Frame{}, errors.Wrapf(ErrChecksum, "want 0x%02x, got 0x%02x", want, got)
	}

	return Frame{
		DataType: body[0],
		Seq:      body[1],
		Payload:  append([]byte(nil), body[frameHeaderSize:len(body)-1]...),
	}, nil
}

// SplitFrame returns the first complete raw frame in buf and the remaining bytes.
// raw is nil when buf holds only a partial frame.
func SplitFrame(buf []byte) (raw, rest []byte, err error) {
	if len(buf) == 0 {
		return nil, buf, nil
	}
	if buf[0] != frameStart {
		return nil, buf, errors.Wrapf(ErrFrameStart, "got 0x%02x", buf[0])
	}
	for i := 1; i < len(buf); i++ {
		if buf[i] == frameEnd {
			return buf[:i+1], buf[i+1:], nil
		}
		if buf[i] == frameStart {
			return nil, buf, errors.Wrap(ErrFrameStart, "start marker inside frame")
		}
	}
	if len(buf) > MaxFrameSize {
		return nil, buf, ErrFrameTooLarge
	}
	return nil, buf, nil
}

// ackFrame acknowledges a data frame carrying seq.
func ackFrame(seq byte) []byte {
	return MarshalFrame(Frame{DataType: DataTypeAck, Seq: 1 - seq})
}
