package quirk

import (
	"tuya-air/internal/measurement"
)

// Outcome is what happened to a data point during translation.
type Outcome uint8

const (
	Applied Outcome = iota + 1
	Discarded
	Unmapped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Discarded:
		return "discarded"
	case Unmapped:
		return "unmapped"
	}
	return "unknown"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the translation of one data-point report.
// Group, Attribute and Value are only meaningful when Outcome is Applied;
// Group and Attribute are also set for Discarded.
type Result struct {
	DataPoint uint8            `json:"dp"`
	Group     measurement.Kind `json:"group,omitempty"`
	Attribute string           `json:"attribute,omitempty"`
	Value     float64          `json:"value"`
	Outcome   Outcome          `json:"outcome"`
}

// GroupName returns the group name, or "" for unmapped data points.
func (r Result) GroupName() string {
	if !r.Group.Valid() {
		return ""
	}
	return r.Group.String()
}

// Translate converts a raw data-point value. It never fails: data points
// absent from the table yield Unmapped, filtered values yield Discarded.
func (p *Profile) Translate(dp uint8, raw float64) Result {
	m, ok := p.mappings[dp]
	if !ok {
		return Result{DataPoint: dp, Value: raw, Outcome: Unmapped}
	}
	v, ok := m.Transform.Apply(raw)
	if !ok {
		return Result{DataPoint: dp, Group: m.Group, Attribute: m.Attribute, Outcome: Discarded}
	}
	return Result{DataPoint: dp, Group: m.Group, Attribute: m.Attribute, Value: v, Outcome: Applied}
}
