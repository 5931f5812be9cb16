package zcl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ZCL data type IDs used by the measurement and Basic clusters.
const (
	TypeNoData  uint8 = 0x00
	TypeBool    uint8 = 0x10
	TypeBitmap8 uint8 = 0x18
	TypeUint8   uint8 = 0x20
	TypeUint16  uint8 = 0x21
	TypeUint32  uint8 = 0x23
	TypeInt16   uint8 = 0x29
	TypeInt32   uint8 = 0x2B
	TypeEnum8   uint8 = 0x30
	TypeFloat32 uint8 = 0x39 // ZCL "Single"
	TypeCharStr uint8 = 0x42
)

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 for variable-length types.
func TypeSize(typeID uint8) int {
	switch typeID {
	case TypeNoData:
		return 0
	case TypeBool, TypeUint8, TypeEnum8, TypeBitmap8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4
	default:
		return -1
	}
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	switch typeID {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeEnum8:
		return "enum8"
	case TypeFloat32:
		return "single"
	case TypeCharStr:
		return "string"
	default:
		return fmt.Sprintf("0x%02X", typeID)
	}
}

// DecodeValue decodes a ZCL typed value from raw bytes, returning the Go value and bytes consumed.
func DecodeValue(typeID uint8, data []byte) (any, int, error) {
	if typeID == TypeCharStr {
		return decodeCharStr(data)
	}
	size := TypeSize(typeID)
	if size < 0 {
		return nil, 0, fmt.Errorf("zcl: unsupported type 0x%02X", typeID)
	}
	if size == 0 {
		return nil, 0, nil
	}
	if len(data) < size {
		return nil, 0, fmt.Errorf("zcl: not enough data for type 0x%02X: need %d, have %d", typeID, size, len(data))
	}

	switch typeID {
	case TypeBool:
		return data[0] != 0, 1, nil
	case TypeUint8, TypeEnum8, TypeBitmap8:
		return data[0], 1, nil
	case TypeUint16:
		return binary.LittleEndian.Uint16(data[:2]), 2, nil
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(data[:2])), 2, nil
	case TypeUint32:
		return binary.LittleEndian.Uint32(data[:4]), 4, nil
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(data[:4])), 4, nil
	case TypeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(data[:4])), 4, nil
	}
	return data[:size], size, nil
}

func decodeCharStr(data []byte) (any, int, error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("zcl: no length byte for string type")
	}
	length := int(data[0])
	if length == 0xFF {
		return nil, 1, nil // invalid string
	}
	if len(data) < 1+length {
		return nil, 0, fmt.Errorf("zcl: string truncated: need %d, have %d", length, len(data)-1)
	}
	return string(data[1 : 1+length]), 1 + length, nil
}

// EncodeValue encodes a Go value into ZCL wire format.
// Integer types reject values that do not fit instead of truncating them.
func EncodeValue(typeID uint8, val any) ([]byte, error) {
	switch typeID {
	case TypeBool:
		v, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to bool", val)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case TypeUint8, TypeEnum8, TypeBitmap8:
		v, err := unsignedIn(val, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		return []byte{uint8(v)}, nil

	case TypeUint16:
		v, err := unsignedIn(val, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(v)), nil

	case TypeUint32:
		v, err := unsignedIn(val, math.MaxUint32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil

	case TypeInt16:
		v, err := signedIn(val, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(int16(v))), nil

	case TypeInt32:
		v, err := signedIn(val, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(int32(v))), nil

	case TypeFloat32:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to single", val)
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v))), nil

	case TypeCharStr:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to string", val)
		}
		if len(s) > 254 {
			return nil, fmt.Errorf("zcl: string too long for CharStr: %d (max 254)", len(s))
		}
		return append([]byte{uint8(len(s))}, s...), nil
	}

	return nil, fmt.Errorf("zcl: encode not implemented for type 0x%02X", typeID)
}

func unsignedIn(val any, max uint64) (uint64, error) {
	f, ok := toFloat64(val)
	if !ok {
		return 0, fmt.Errorf("zcl: cannot convert %T to unsigned integer", val)
	}
	if f < 0 || f != math.Trunc(f) || f > float64(max) {
		return 0, fmt.Errorf("zcl: value %v out of range 0..%d", val, max)
	}
	return uint64(f), nil
}

func signedIn(val any, min, max int64) (int64, error) {
	f, ok := toFloat64(val)
	if !ok {
		return 0, fmt.Errorf("zcl: cannot convert %T to signed integer", val)
	}
	if f != math.Trunc(f) || f < float64(min) || f > float64(max) {
		return 0, fmt.Errorf("zcl: value %v out of range %d..%d", val, min, max)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
