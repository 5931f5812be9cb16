package measurement

import (
	"fmt"
	"sync"
)

// Attributes is the shared view of one measurement cluster's local storage.
type Attributes interface {
	Kind() Kind
	ClusterID() uint16
	Get(attr string) (float64, bool)
	Set(attr string, value float64) error
	Snapshot() map[string]float64
}

// Cluster stores the most recent value of each attribute of one group.
type Cluster struct {
	kind   Kind
	mu     sync.RWMutex
	values map[string]float64
}

// NewCluster creates an empty cluster for the given group.
func NewCluster(kind Kind) *Cluster {
	return &Cluster{kind: kind, values: make(map[string]float64)}
}

func (c *Cluster) Kind() Kind        { return c.kind }
func (c *Cluster) ClusterID() uint16 { return c.kind.ClusterID() }

// Get returns the stored value, if the attribute has been set.
func (c *Cluster) Get(attr string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[attr]
	return v, ok
}

// Set overwrites an attribute value.
func (c *Cluster) Set(attr string, value float64) error {
	if _, err := AttributeID(attr); err != nil {
		return fmt.Errorf("%s: %w", c.kind, err)
	}
	c.mu.Lock()
	c.values[attr] = value
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of every stored value.
func (c *Cluster) Snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

var _ Attributes = (*Cluster)(nil)
