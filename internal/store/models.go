package store

import "time"

// Device is a registered air-quality sensor and its latest readings.
type Device struct {
	IEEEAddress  string    `json:"ieee_address"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Model        string    `json:"model,omitempty"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	Profile      string    `json:"profile"`
	AddedAt      time.Time `json:"added_at"`
	LastSeen     time.Time `json:"last_seen"`
	LQI          uint8     `json:"lqi,omitempty"`

	// Measurements holds the latest value per group and attribute,
	// e.g. Measurements["temperature"]["measured_value"].
	Measurements map[string]map[string]float64 `json:"measurements,omitempty"`

	// Properties holds data points the profile does not map, keyed "dp_<id>".
	Properties map[string]any `json:"properties,omitempty"`
}

// DisplayName returns the friendly name, falling back to the IEEE address.
func (d *Device) DisplayName() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.IEEEAddress
}

// SetMeasurement stores one value, allocating maps as needed.
func (d *Device) SetMeasurement(group, attr string, value float64) {
	if d.Measurements == nil {
		d.Measurements = make(map[string]map[string]float64)
	}
	if d.Measurements[group] == nil {
		d.Measurements[group] = make(map[string]float64)
	}
	d.Measurements[group][attr] = value
}
