// Package wire frames vendor scanner commands for the control and HID
// channels. Frames carry a single command byte plus an optional data payload,
// delimited by start/stop flags, byte-stuffed, and protected by an XOR
// checksum. The command codes themselves are configuration, not protocol;
// only the framing is fixed here.
package wire

import (
	"fmt"
)

const (
	FrameStartFlag = 0xE0
	FrameStopFlag  = 0xE1
	StuffingFlag   = 0xE2
)

// Frame is one decoded command or response packet.
type Frame struct {
	Command byte
	Data    []byte
}

// Checksum XORs all payload bytes into a single check byte.
func Checksum(b []byte) byte {
	var checksum byte
	for _, v := range b {
		checksum ^= v
	}
	return checksum
}

// Build produces a framed packet: start flag, stuffed contents
// (command, data length, data, checksum), stop flag. The checksum is
// computed over the unstuffed contents.
func Build(command byte, data []byte) []byte {
	contents := make([]byte, 0, len(data)+2)
	contents = append(contents, command, byte(len(data)))
	contents = append(contents, data...)
	contents = append(contents, Checksum(contents))

	frame := make([]byte, 0, len(contents)+2)
	frame = append(frame, FrameStartFlag)
	frame = append(frame, stuff(contents)...)
	frame = append(frame, FrameStopFlag)
	return frame
}

// Parse locates and decodes the first complete frame in b. Bytes outside the
// start/stop flags are ignored so callers can hand in padded HID reports.
func Parse(b []byte) (Frame, error) {
	start := -1
	for i, v := range b {
		if v == FrameStartFlag {
			start = i
			continue
		}
		if v == FrameStopFlag && start != -1 {
			contents, err := unstuff(b[start+1 : i])
			if err != nil {
				return Frame{}, err
			}
			if len(contents) < 3 {
				return Frame{}, fmt.Errorf("wire: frame too short (%d bytes)", len(contents))
			}
			declared := contents[len(contents)-1]
			computed := Checksum(contents[:len(contents)-1])
			if declared != computed {
				return Frame{}, fmt.Errorf("wire: checksum mismatch: declared 0x%02X computed 0x%02X", declared, computed)
			}
			dataLen := int(contents[1])
			if dataLen != len(contents)-3 {
				return Frame{}, fmt.Errorf("wire: declared data length %d, frame carries %d", dataLen, len(contents)-3)
			}
			return Frame{
				Command: contents[0],
				Data:    contents[2 : len(contents)-1],
			}, nil
		}
	}
	return Frame{}, fmt.Errorf("wire: no complete frame in %d bytes", len(b))
}

// The three flag values share their top six bits, so stuffing encodes the
// low two bits after the stuffing flag, mirroring common serial framings.
func stuff(input []byte) []byte {
	out := make([]byte, 0, len(input))
	for _, b := range input {
		switch b {
		case FrameStartFlag, FrameStopFlag, StuffingFlag:
			out = append(out, StuffingFlag, b&0x03)
		default:
			out = append(out, b)
		}
	}
	return out
}

func unstuff(input []byte) ([]byte, error) {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); i++ {
		b := input[i]
		if b != StuffingFlag {
			out = append(out, b)
			continue
		}
		if i+1 >= len(input) {
			return nil, fmt.Errorf("wire: truncated escape sequence")
		}
		i++
		if input[i] > 0x03 {
			return nil, fmt.Errorf("wire: invalid escape value 0x%02X", input[i])
		}
		out = append(out, 0xE0|input[i])
	}
	return out, nil
}
