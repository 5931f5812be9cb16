package quirk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"tuya-air/internal/measurement"
)

type profileFile struct {
	Profiles []profileDecl `yaml:"profiles"`
}

type profileDecl struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Base        string          `yaml:"base"`
	Signatures  []Signature     `yaml:"signatures"`
	DataPoints  []dataPointDecl `yaml:"datapoints"`
}

type dataPointDecl struct {
	DP        int      `yaml:"dp"`
	Group     string   `yaml:"group"`
	Attribute string   `yaml:"attribute"`
	Transform string   `yaml:"transform"`
	Factor    *float64 `yaml:"factor"`
	Threshold *float64 `yaml:"threshold"`
}

// LoadProfileDir reads every *.yaml file in dir, in name order, and builds
// the profiles they declare. A profile may extend a built-in one or a profile
// declared earlier through base. A missing directory yields no profiles.
func LoadProfileDir(dir string, builtin []*Profile) ([]*Profile, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob profiles: %w", err)
	}
	sort.Strings(files)

	known := make(map[string]*Profile, len(builtin))
	for _, p := range builtin {
		known[p.name] = p
	}

	var loaded []*Profile
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		profiles, err := parseProfiles(data, known)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		loaded = append(loaded, profiles...)
	}
	return loaded, nil
}

// ParseProfiles parses a single profile document against the given known profiles.
func ParseProfiles(data []byte, known []*Profile) ([]*Profile, error) {
	idx := make(map[string]*Profile, len(known))
	for _, p := range known {
		idx[p.name] = p
	}
	return parseProfiles(data, idx)
}

func parseProfiles(data []byte, known map[string]*Profile) ([]*Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	var out []*Profile
	for i, ps := range f.Profiles {
		if ps.Name == "" {
			return nil, fmt.Errorf("profile %d: name is required", i)
		}
		if _, dup := known[ps.Name]; dup {
			return nil, fmt.Errorf("profile %q: duplicate name", ps.Name)
		}

		var mappings []DataPointMapping
		description := ps.Description
		if ps.Base != "" {
			base, ok := known[ps.Base]
			if !ok {
				return nil, fmt.Errorf("profile %q: unknown base %q", ps.Name, ps.Base)
			}
			mappings = base.Mappings()
			if description == "" {
				description = base.description
			}
		}

		for _, dps := range ps.DataPoints {
			m, err := dps.mapping()
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", ps.Name, err)
			}
			mappings = append(mappings, m)
		}
		if len(mappings) == 0 {
			return nil, fmt.Errorf("profile %q: no data points", ps.Name)
		}

		p := NewProfile(ps.Name, description, ps.Signatures, mappings...)
		known[p.name] = p
		out = append(out, p)
	}
	return out, nil
}

func (s dataPointDecl) mapping() (DataPointMapping, error) {
	if s.DP < 0 || s.DP > 255 {
		return DataPointMapping{}, fmt.Errorf("dp %d out of range 0..255", s.DP)
	}
	group, err := measurement.ParseKind(s.Group)
	if err != nil {
		return DataPointMapping{}, fmt.Errorf("dp %d: %w", s.DP, err)
	}
	attr := s.Attribute
	if attr == "" {
		attr = measurement.MeasuredValue
	}
	if _, err := measurement.AttributeID(attr); err != nil {
		return DataPointMapping{}, fmt.Errorf("dp %d: %w", s.DP, err)
	}
	kind, err := ParseTransformKind(s.Transform)
	if err != nil {
		return DataPointMapping{}, fmt.Errorf("dp %d: %w", s.DP, err)
	}

	var t Transform
	switch kind {
	case Scale:
		if s.Factor == nil {
			return DataPointMapping{}, fmt.Errorf("dp %d: scale requires factor", s.DP)
		}
		t = ScaleBy(*s.Factor)
	case PassThrough:
		t = Identity()
	case SentinelFilter:
		threshold := float64(DefaultSentinel)
		if s.Threshold != nil {
			threshold = *s.Threshold
		}
		t = DiscardAtOrAbove(threshold)
	}
	return DataPointMapping{DataPoint: uint8(s.DP), Group: group, Attribute: attr, Transform: t}, nil
}
