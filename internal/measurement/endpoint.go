package measurement

import (
	"fmt"
	"sort"
)

// Listener is called after a value has been stored.
type Listener func(group Kind, attr string, value float64)

// Endpoint is the per-device bundle of measurement clusters.
type Endpoint struct {
	clusters map[Kind]*Cluster
	listener Listener
}

// NewEndpoint creates an endpoint carrying one cluster per given group.
// listener may be nil.
func NewEndpoint(listener Listener, kinds ...Kind) *Endpoint {
	ep := &Endpoint{clusters: make(map[Kind]*Cluster, len(kinds)), listener: listener}
	for _, k := range kinds {
		if k.Valid() {
			ep.clusters[k] = NewCluster(k)
		}
	}
	return ep
}

// Set overwrites the value and notifies the listener.
func (e *Endpoint) Set(group Kind, attr string, value float64) error {
	c, ok := e.clusters[group]
	if !ok {
		return fmt.Errorf("%w: %s not on endpoint", ErrUnknownGroup, group)
	}
	if err := c.Set(attr, value); err != nil {
		return err
	}
	if e.listener != nil {
		e.listener(group, attr, value)
	}
	return nil
}

// Restore loads stored values without notifying the listener.
// Groups or attributes the endpoint does not carry are skipped.
func (e *Endpoint) Restore(values map[string]map[string]float64) {
	for group, attrs := range values {
		k, err := ParseKind(group)
		if err != nil {
			continue
		}
		c, ok := e.clusters[k]
		if !ok {
			continue
		}
		for attr, v := range attrs {
			_ = c.Set(attr, v)
		}
	}
}

// Get returns the latest value of one attribute.
func (e *Endpoint) Get(group Kind, attr string) (float64, bool) {
	c, ok := e.clusters[group]
	if !ok {
		return 0, false
	}
	return c.Get(attr)
}

// Cluster returns the cluster for a group, or nil.
func (e *Endpoint) Cluster(group Kind) Attributes {
	c, ok := e.clusters[group]
	if !ok {
		return nil
	}
	return c
}

// Kinds returns the groups carried by the endpoint, in declaration order.
func (e *Endpoint) Kinds() []Kind {
	out := make([]Kind, 0, len(e.clusters))
	for k := range e.clusters {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns every stored value keyed by group name then attribute.
func (e *Endpoint) Snapshot() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(e.clusters))
	for k, c := range e.clusters {
		if vals := c.Snapshot(); len(vals) > 0 {
			out[k.String()] = vals
		}
	}
	return out
}
