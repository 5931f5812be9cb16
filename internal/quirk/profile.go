// Package quirk maps Tuya vendor data points onto standard measurement
// attributes, one declarative table per device variant.
package quirk

import (
	"sort"

	"tuya-air/internal/measurement"
)

// DataPointMapping routes one data point to a measurement attribute.
type DataPointMapping struct {
	DataPoint uint8            `json:"dp"`
	Group     measurement.Kind `json:"group"`
	Attribute string           `json:"attribute"`
	Transform Transform        `json:"transform"`
}

// Signature identifies a device variant as reported in its Basic cluster.
type Signature struct {
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
}

// Profile is the immutable data-point table for one device variant.
type Profile struct {
	name        string
	description string
	signatures  []Signature
	mappings    map[uint8]DataPointMapping
}

// NewProfile builds a profile. Later mappings for the same data point replace earlier ones.
func NewProfile(name, description string, signatures []Signature, mappings ...DataPointMapping) *Profile {
	p := &Profile{
		name:        name,
		description: description,
		signatures:  append([]Signature(nil), signatures...),
		mappings:    make(map[uint8]DataPointMapping, len(mappings)),
	}
	for _, m := range mappings {
		if m.Attribute == "" {
			m.Attribute = measurement.MeasuredValue
		}
		p.mappings[m.DataPoint] = m
	}
	return p
}

func (p *Profile) Name() string        { return p.name }
func (p *Profile) Description() string { return p.description }

// Signatures returns a copy of the device signatures the profile applies to.
func (p *Profile) Signatures() []Signature {
	return append([]Signature(nil), p.signatures...)
}

// Mapping returns the mapping for one data point.
func (p *Profile) Mapping(dp uint8) (DataPointMapping, bool) {
	m, ok := p.mappings[dp]
	return m, ok
}

// Mappings returns every mapping ordered by data-point ID.
func (p *Profile) Mappings() []DataPointMapping {
	out := make([]DataPointMapping, 0, len(p.mappings))
	for _, m := range p.mappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DataPoint < out[j].DataPoint })
	return out
}

// Groups returns the distinct measurement groups the profile writes to.
func (p *Profile) Groups() []measurement.Kind {
	seen := make(map[measurement.Kind]bool)
	var out []measurement.Kind
	for _, m := range p.Mappings() {
		if !seen[m.Group] {
			seen[m.Group] = true
			out = append(out, m.Group)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Matches reports whether the profile applies to the given device.
func (p *Profile) Matches(manufacturer, model string) bool {
	for _, s := range p.signatures {
		if s.Manufacturer == manufacturer && (s.Model == "" || s.Model == model) {
			return true
		}
	}
	return false
}
