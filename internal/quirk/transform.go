package quirk

import (
	"fmt"
	"strconv"
)

// TransformKind selects how a raw data-point value is converted.
type TransformKind uint8

const (
	Scale TransformKind = iota + 1
	PassThrough
	SentinelFilter
)

// DefaultSentinel is the first raw value Tuya PM2.5 sensors use to flag an invalid reading.
const DefaultSentinel = 0xAA00

var transformNames = map[TransformKind]string{
	Scale:          "scale",
	PassThrough:    "pass_through",
	SentinelFilter: "sentinel_filter",
}

func (k TransformKind) String() string {
	if n, ok := transformNames[k]; ok {
		return n
	}
	return "transform(" + strconv.Itoa(int(k)) + ")"
}

func (k TransformKind) MarshalText() ([]byte, error) {
	n, ok := transformNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown transform kind %d", k)
	}
	return []byte(n), nil
}

func (k *TransformKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTransformKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseTransformKind resolves a transform name as used in profile files.
func ParseTransformKind(name string) (TransformKind, error) {
	for k, n := range transformNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown transform %q", name)
}

// Transform is a scalar conversion applied to a raw data-point value.
type Transform struct {
	Kind      TransformKind `json:"kind"`
	Factor    float64       `json:"factor,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
}

// ScaleBy returns a transform multiplying the raw value by factor.
func ScaleBy(factor float64) Transform {
	return Transform{Kind: Scale, Factor: factor}
}

// Identity returns a transform that keeps the raw value.
func Identity() Transform {
	return Transform{Kind: PassThrough}
}

// DiscardAtOrAbove returns a transform that drops values >= threshold.
func DiscardAtOrAbove(threshold float64) Transform {
	return Transform{Kind: SentinelFilter, Threshold: threshold}
}

// Apply converts raw. The boolean is false when the value must be discarded.
func (t Transform) Apply(raw float64) (float64, bool) {
	switch t.Kind {
	case Scale:
		return raw * t.Factor, true
	case PassThrough:
		return raw, true
	case SentinelFilter:
		if raw >= t.Threshold {
			return 0, false
		}
		return raw, true
	}
	return 0, false
}

func (t Transform) String() string {
	switch t.Kind {
	case Scale:
		return "scale(" + strconv.FormatFloat(t.Factor, 'g', -1, 64) + ")"
	case SentinelFilter:
		return "sentinel_filter(" + strconv.FormatFloat(t.Threshold, 'g', -1, 64) + ")"
	}
	return t.Kind.String()
}
