package tuya

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrChecksum is returned when an MCU frame fails its checksum.
var ErrChecksum = errors.New("tuya: mcu frame checksum mismatch")

// MCU command words.
const (
	CmdHeartbeat    uint8 = 0x00
	CmdProductInfo  uint8 = 0x01
	CmdStatusReport uint8 = 0x07
	CmdQueryStatus  uint8 = 0x08
)

const (
	mcuHeader0 = 0x55
	mcuHeader1 = 0xAA

	// Longest frame we accept; real devices stay well below this.
	maxMCUData = 1024
)

// MCUFrame is a frame of the Tuya MCU serial protocol:
// 55 AA ver cmd len(2 BE) data cksum.
type MCUFrame struct {
	Version uint8
	Command uint8
	Data    []byte
}

// Checksum returns the byte sum mod 256 of header, version, command, length and data.
func (f MCUFrame) Checksum() uint8 {
	sum := uint8(mcuHeader0) + uint8(mcuHeader1) + f.Version + f.Command
	sum += uint8(len(f.Data)>>8) + uint8(len(f.Data))
	for _, b := range f.Data {
		sum += b
	}
	return sum
}

// Encode serializes the frame including header and checksum.
func (f MCUFrame) Encode() []byte {
	buf := make([]byte, 0, 7+len(f.Data))
	buf = append(buf, mcuHeader0, mcuHeader1, f.Version, f.Command)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Data)))
	buf = append(buf, f.Data...)
	return append(buf, f.Checksum())
}

// ReadMCUFrame reads the next frame, skipping bytes until a 55 AA header.
// A frame with a bad checksum is consumed and reported as ErrChecksum so
// the caller can keep reading.
func ReadMCUFrame(r *bufio.Reader) (MCUFrame, error) {
	if err := syncHeader(r); err != nil {
		return MCUFrame{}, err
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return MCUFrame{}, fmt.Errorf("read mcu header: %w", err)
	}
	n := int(binary.BigEndian.Uint16(hdr[2:4]))
	if n > maxMCUData {
		return MCUFrame{}, fmt.Errorf("mcu frame length %d exceeds %d", n, maxMCUData)
	}
	body := make([]byte, n+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return MCUFrame{}, fmt.Errorf("read mcu body: %w", err)
	}
	f := MCUFrame{Version: hdr[0], Command: hdr[1], Data: body[:n]}
	if got, want := body[n], f.Checksum(); got != want {
		return f, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksum, got, want)
	}
	return f, nil
}

func syncHeader(r *bufio.Reader) error {
	prev := byte(0)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if prev == mcuHeader0 && b == mcuHeader1 {
			return nil
		}
		prev = b
	}
}
