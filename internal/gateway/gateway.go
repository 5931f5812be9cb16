// Package gateway ties the pieces together: it keeps one measurement
// endpoint per registered device, routes vendor reports through the device's
// quirk profile and publishes the results on the event bus.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tuya-air/internal/measurement"
	"tuya-air/internal/metrics"
	"tuya-air/internal/quirk"
	"tuya-air/internal/store"
	"tuya-air/internal/zcl"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrNoProfile     = errors.New("no matching profile")
)

// deviceState is the in-memory side of a registered device.
// mu serializes reports for the device.
type deviceState struct {
	mu       sync.Mutex
	profile  *quirk.Profile
	endpoint *measurement.Endpoint
}

// Gateway routes data-point reports of registered devices.
type Gateway struct {
	catalog  *quirk.Catalog
	store    store.Store
	registry *zcl.Registry
	events   *EventBus
	logger   *slog.Logger

	mu      sync.RWMutex
	devices map[string]*deviceState
}

// New creates a gateway and restores the devices held in the store.
func New(catalog *quirk.Catalog, st store.Store, registry *zcl.Registry, events *EventBus, logger *slog.Logger) (*Gateway, error) {
	g := &Gateway{
		catalog:  catalog,
		store:    st,
		registry: registry,
		events:   events,
		logger:   logger.With("component", "gateway"),
		devices:  make(map[string]*deviceState),
	}

	devs, err := st.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("restore devices: %w", err)
	}
	for _, dev := range devs {
		p, err := g.resolveProfile(dev)
		if err != nil {
			g.logger.Warn("device has no usable profile, skipping", "ieee", dev.IEEEAddress, "profile", dev.Profile, "err", err)
			continue
		}
		ds := g.newDeviceState(dev.IEEEAddress, p)
		ds.endpoint.Restore(dev.Measurements)
		g.devices[dev.IEEEAddress] = ds
	}
	metrics.Devices.Set(float64(len(g.devices)))
	g.logger.Info("devices restored", "count", len(g.devices))
	return g, nil
}

func (g *Gateway) Catalog() *quirk.Catalog { return g.catalog }
func (g *Gateway) Store() store.Store      { return g.store }
func (g *Gateway) Registry() *zcl.Registry { return g.registry }
func (g *Gateway) Events() *EventBus       { return g.events }

// resolveProfile picks the explicitly named profile, or the one matching the device signature.
func (g *Gateway) resolveProfile(dev *store.Device) (*quirk.Profile, error) {
	if dev.Profile != "" {
		if p, ok := g.catalog.Get(dev.Profile); ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: profile %q not in catalog", ErrNoProfile, dev.Profile)
	}
	if p, ok := g.catalog.Match(dev.Manufacturer, dev.Model); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNoProfile, dev.Manufacturer, dev.Model)
}

func (g *Gateway) newDeviceState(ieee string, p *quirk.Profile) *deviceState {
	return &deviceState{
		profile:  p,
		endpoint: measurement.NewEndpoint(g.attributeListener(ieee, p), p.Groups()...),
	}
}

func (g *Gateway) state(ieee string) (*deviceState, error) {
	g.mu.RLock()
	ds, ok := g.devices[ieee]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, ieee)
	}
	return ds, nil
}

// AddDevice registers a device, or updates an existing registration.
// The profile is taken from dev.Profile when set, else matched on the
// manufacturer and model signature.
func (g *Gateway) AddDevice(dev store.Device) (*store.Device, error) {
	ieee, err := NormalizeIEEE(dev.IEEEAddress)
	if err != nil {
		return nil, err
	}
	dev.IEEEAddress = ieee

	p, err := g.resolveProfile(&dev)
	if err != nil {
		return nil, err
	}
	dev.Profile = p.Name()

	existing, err := g.store.GetDevice(ieee)
	switch {
	case err == nil:
		existing.Manufacturer = dev.Manufacturer
		existing.Model = dev.Model
		existing.Profile = dev.Profile
		if dev.FriendlyName != "" {
			existing.FriendlyName = dev.FriendlyName
		}
		dev = *existing
	case errors.Is(err, store.ErrNotFound):
		dev.AddedAt = time.Now()
		dev.Measurements = nil
		dev.Properties = nil
	default:
		return nil, fmt.Errorf("add device %s: %w", ieee, err)
	}

	if err := g.store.SaveDevice(&dev); err != nil {
		return nil, fmt.Errorf("add device %s: %w", ieee, err)
	}

	ds := g.newDeviceState(ieee, p)
	ds.endpoint.Restore(dev.Measurements)
	g.mu.Lock()
	g.devices[ieee] = ds
	count := len(g.devices)
	g.mu.Unlock()
	metrics.Devices.Set(float64(count))

	g.logger.Info("device added", "ieee", ieee, "name", dev.DisplayName(), "profile", p.Name())
	g.events.Emit(Event{
		Type: EventDeviceAdded,
		Data: map[string]interface{}{
			"ieee":          ieee,
			"friendly_name": dev.FriendlyName,
			"manufacturer":  dev.Manufacturer,
			"model":         dev.Model,
			"profile":       p.Name(),
		},
	})
	return &dev, nil
}

// RemoveDevice forgets a device and its readings.
func (g *Gateway) RemoveDevice(ieee string) error {
	if err := g.store.DeleteDevice(ieee); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, ieee)
		}
		return fmt.Errorf("remove device %s: %w", ieee, err)
	}

	g.mu.Lock()
	delete(g.devices, ieee)
	count := len(g.devices)
	g.mu.Unlock()
	metrics.Devices.Set(float64(count))

	g.logger.Info("device removed", "ieee", ieee)
	g.events.Emit(Event{
		Type: EventDeviceRemoved,
		Data: map[string]interface{}{"ieee": ieee},
	})
	return nil
}

// Device returns the stored record of a device.
func (g *Gateway) Device(ieee string) (*store.Device, error) {
	dev, err := g.store.GetDevice(ieee)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, ieee)
	}
	return dev, err
}

// Devices returns every stored device ordered by IEEE address.
func (g *Gateway) Devices() ([]*store.Device, error) {
	devs, err := g.store.ListDevices()
	if err != nil {
		return nil, err
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].IEEEAddress < devs[j].IEEEAddress })
	return devs, nil
}

// Rename sets a device's friendly name.
func (g *Gateway) Rename(ieee, name string) error {
	err := g.store.UpdateDevice(ieee, func(d *store.Device) error {
		d.FriendlyName = name
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, ieee)
	}
	return err
}

// Profile returns the profile a device is routed through.
func (g *Gateway) Profile(ieee string) (*quirk.Profile, error) {
	ds, err := g.state(ieee)
	if err != nil {
		return nil, err
	}
	return ds.profile, nil
}

// Measurements returns the latest values of a device keyed by group then attribute.
func (g *Gateway) Measurements(ieee string) (map[string]map[string]float64, error) {
	ds, err := g.state(ieee)
	if err != nil {
		return nil, err
	}
	return ds.endpoint.Snapshot(), nil
}

// Measurement returns one latest value.
func (g *Gateway) Measurement(ieee string, group measurement.Kind, attr string) (float64, bool) {
	ds, err := g.state(ieee)
	if err != nil {
		return 0, false
	}
	return ds.endpoint.Get(group, attr)
}
