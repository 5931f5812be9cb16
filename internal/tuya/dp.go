// Package tuya implements the Tuya data-point wire formats: the 0xEF00
// cluster payload and the 55 AA framing spoken by a Tuya MCU over UART.
package tuya

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a payload ends in the middle of a data point.
var ErrTruncated = errors.New("tuya: truncated data point")

// DPType is the Tuya data-point value type.
type DPType uint8

const (
	TypeRaw    DPType = 0x00
	TypeBool   DPType = 0x01
	TypeValue  DPType = 0x02 // 4 bytes, big-endian signed
	TypeString DPType = 0x03
	TypeEnum   DPType = 0x04
	TypeBitmap DPType = 0x05 // 1, 2 or 4 bytes, big-endian
)

func (t DPType) String() string {
	switch t {
	case TypeRaw:
		return "raw"
	case TypeBool:
		return "bool"
	case TypeValue:
		return "value"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	case TypeBitmap:
		return "bitmap"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}

// DataPoint is a single vendor data point as carried on the wire.
type DataPoint struct {
	ID   uint8
	Type DPType
	Data []byte
}

// Number returns the numeric reading carried by the data point.
// Raw and string data points have no numeric reading.
func (d DataPoint) Number() (float64, bool) {
	switch d.Type {
	case TypeBool:
		if len(d.Data) < 1 {
			return 0, false
		}
		if d.Data[0] != 0 {
			return 1, true
		}
		return 0, true
	case TypeValue:
		if len(d.Data) < 4 {
			return 0, false
		}
		return float64(int32(binary.BigEndian.Uint32(d.Data[:4]))), true
	case TypeEnum:
		if len(d.Data) < 1 {
			return 0, false
		}
		return float64(d.Data[0]), true
	case TypeBitmap:
		if len(d.Data) == 0 || len(d.Data) > 4 {
			return 0, false
		}
		var v uint32
		for _, b := range d.Data {
			v = v<<8 | uint32(b)
		}
		return float64(v), true
	}
	return 0, false
}

// Value returns the data point as a Go value suitable for JSON:
// numbers as float64, bools as bool, strings as string, raw as []byte.
func (d DataPoint) Value() any {
	switch d.Type {
	case TypeBool:
		return len(d.Data) > 0 && d.Data[0] != 0
	case TypeString:
		return string(d.Data)
	case TypeRaw:
		cp := make([]byte, len(d.Data))
		copy(cp, d.Data)
		return cp
	}
	if v, ok := d.Number(); ok {
		return v
	}
	cp := make([]byte, len(d.Data))
	copy(cp, d.Data)
	return cp
}

// NewValue builds a TypeValue data point.
func NewValue(id uint8, v int32) DataPoint {
	return DataPoint{ID: id, Type: TypeValue, Data: binary.BigEndian.AppendUint32(nil, uint32(v))}
}

// Frame is a decoded 0xEF00 payload.
type Frame struct {
	Seq        uint16
	DataPoints []DataPoint
}

// DecodeFrame parses an 0xEF00 payload: seq(2 BE) followed by repeated
// dp(1) type(1) len(2 BE) data(len). On a truncated data point it returns
// the data points decoded so far together with ErrTruncated.
func DecodeFrame(payload []byte) (Frame, error) {
	if len(payload) < 2 {
		return Frame{}, fmt.Errorf("%w: payload of %d bytes has no sequence number", ErrTruncated, len(payload))
	}
	f := Frame{Seq: binary.BigEndian.Uint16(payload[:2])}
	dps, err := DecodeDataPoints(payload[2:])
	f.DataPoints = dps
	return f, err
}

// DecodeDataPoints parses a sequence of data points with no leading seq.
func DecodeDataPoints(data []byte) ([]DataPoint, error) {
	var result []DataPoint
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return result, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrTruncated, len(data)-pos, pos)
		}
		id := data[pos]
		typ := DPType(data[pos+1])
		n := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return result, fmt.Errorf("%w: dp %d needs %d bytes at offset %d, have %d", ErrTruncated, id, n, pos, len(data)-pos)
		}
		buf := make([]byte, n)
		copy(buf, data[pos:pos+n])
		pos += n
		result = append(result, DataPoint{ID: id, Type: typ, Data: buf})
	}
	return result, nil
}

// EncodeFrame serializes a frame into an 0xEF00 payload.
func EncodeFrame(f Frame) []byte {
	buf := binary.BigEndian.AppendUint16(nil, f.Seq)
	return AppendDataPoints(buf, f.DataPoints)
}

// AppendDataPoints appends the wire form of each data point to buf.
func AppendDataPoints(buf []byte, dps []DataPoint) []byte {
	for _, dp := range dps {
		buf = append(buf, dp.ID, byte(dp.Type))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(dp.Data)))
		buf = append(buf, dp.Data...)
	}
	return buf
}
