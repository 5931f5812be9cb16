package quirk

import (
	"fmt"
	"sort"
)

// Catalog is the read-only set of known profiles.
type Catalog struct {
	byName      map[string]*Profile
	bySignature map[Signature]*Profile
	byMaker     map[string]*Profile // signatures without a model
}

// NewCatalog indexes the given profiles. Names must be unique; when two
// profiles claim the same signature the later one wins.
func NewCatalog(profiles ...*Profile) (*Catalog, error) {
	c := &Catalog{
		byName:      make(map[string]*Profile, len(profiles)),
		bySignature: make(map[Signature]*Profile),
		byMaker:     make(map[string]*Profile),
	}
	for _, p := range profiles {
		if p.name == "" {
			return nil, fmt.Errorf("profile without a name")
		}
		if _, dup := c.byName[p.name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.name)
		}
		c.byName[p.name] = p
		for _, s := range p.signatures {
			if s.Model == "" {
				c.byMaker[s.Manufacturer] = p
				continue
			}
			c.bySignature[s] = p
		}
	}
	return c, nil
}

// Get returns a profile by name.
func (c *Catalog) Get(name string) (*Profile, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Match returns the profile for a device signature.
func (c *Catalog) Match(manufacturer, model string) (*Profile, bool) {
	if p, ok := c.bySignature[Signature{Manufacturer: manufacturer, Model: model}]; ok {
		return p, true
	}
	p, ok := c.byMaker[manufacturer]
	return p, ok
}

// Profiles returns every profile ordered by name.
func (c *Catalog) Profiles() []*Profile {
	out := make([]*Profile, 0, len(c.byName))
	for _, p := range c.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
