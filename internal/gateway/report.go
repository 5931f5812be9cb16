package gateway

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"tuya-air/internal/measurement"
	"tuya-air/internal/metrics"
	"tuya-air/internal/quirk"
	"tuya-air/internal/source"
	"tuya-air/internal/store"
	"tuya-air/internal/tuya"
	"tuya-air/internal/zcl"
	"tuya-air/internal/zcl/clusters"
)

// OnDataPointReport translates one raw data-point value of a device.
// Applied values are stored and announced, discarded values are dropped
// silently, and unmapped data points are kept as a raw "dp_<id>" property.
func (g *Gateway) OnDataPointReport(ieee string, dp uint8, raw float64) (quirk.Result, error) {
	ds, err := g.state(ieee)
	if err != nil {
		return quirk.Result{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return g.translateLocked(ieee, ds, dp, raw), nil
}

func (g *Gateway) translateLocked(ieee string, ds *deviceState, dp uint8, raw float64) quirk.Result {
	res := ds.profile.Translate(dp, raw)
	metrics.ObserveDataPoint(ds.profile.Name(), res.Outcome.String())

	switch res.Outcome {
	case quirk.Applied:
		if err := ds.endpoint.Set(res.Group, res.Attribute, res.Value); err != nil {
			g.logger.Error("store translated value", "ieee", ieee, "dp", dp, "err", err)
		}
	case quirk.Discarded:
		g.logger.Debug("data point discarded", "ieee", ieee, "dp", dp, "raw", raw, "group", res.GroupName())
	case quirk.Unmapped:
		g.logger.Debug("data point not mapped", "ieee", ieee, "dp", dp, "raw", raw, "profile", ds.profile.Name())
		g.setProperty(ieee, dp, raw)
	}
	return res
}

// SetAttribute overwrites a measurement attribute of a device, persists it
// and emits attribute_update.
func (g *Gateway) SetAttribute(ieee string, group measurement.Kind, attr string, value float64) error {
	ds, err := g.state(ieee)
	if err != nil {
		return err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.endpoint.Set(group, attr, value)
}

// attributeListener persists a stored value and announces it.
func (g *Gateway) attributeListener(ieee string, p *quirk.Profile) measurement.Listener {
	return func(group measurement.Kind, attr string, value float64) {
		now := time.Now()
		if err := g.store.UpdateDevice(ieee, func(d *store.Device) error {
			d.SetMeasurement(group.String(), attr, value)
			d.LastSeen = now
			return nil
		}); err != nil {
			g.logger.Error("save measurement", "ieee", ieee, "group", group.String(), "err", err)
		}

		g.logger.Info("attribute update", "ieee", ieee, "group", group.String(), "attr", attr, "value", value)
		g.events.Emit(Event{
			Type: EventAttributeUpdate,
			Data: map[string]interface{}{
				"ieee":         ieee,
				"profile":      p.Name(),
				"group":        group.String(),
				"cluster_id":   group.ClusterID(),
				"cluster_name": g.registry.Name(group.ClusterID()),
				"attribute":    attr,
				"value":        value,
			},
		})
	}
}

func (g *Gateway) setProperty(ieee string, dp uint8, value any) {
	name := fmt.Sprintf("dp_%d", dp)
	if err := g.store.UpdateDevice(ieee, func(d *store.Device) error {
		if d.Properties == nil {
			d.Properties = make(map[string]any)
		}
		d.Properties[name] = value
		return nil
	}); err != nil {
		g.logger.Error("save device property", "ieee", ieee, "property", name, "err", err)
	}

	g.events.Emit(Event{
		Type: EventPropertyUpdate,
		Data: map[string]interface{}{
			"ieee":     ieee,
			"property": name,
			"value":    value,
			"source": map[string]interface{}{
				"cluster": clusters.TuyaClusterID,
				"dp":      dp,
			},
		},
	})
}

// AttachSource routes a source's cluster commands into the gateway.
func (g *Gateway) AttachSource(src source.Source) {
	src.OnClusterCommand(func(evt source.ClusterCommandEvent) {
		if _, err := g.HandleClusterCommand(evt); err != nil {
			g.logger.Warn("cluster command", "source", src.Name(), "ieee", evt.IEEE, "err", err)
		}
	})
}

// HandleClusterCommand processes an incoming cluster command for a device.
// Tuya 0xEF00 data reports are decoded and each numeric data point is
// translated; standard Report Attributes on a measurement cluster are stored
// as is. A truncated Tuya frame still yields the data points before the cut.
func (g *Gateway) HandleClusterCommand(evt source.ClusterCommandEvent) ([]quirk.Result, error) {
	ds, err := g.state(evt.IEEE)
	if err != nil {
		return nil, err
	}

	if evt.ClusterID == clusters.TuyaClusterID {
		return g.handleTuyaCommand(ds, evt)
	}
	if group, ok := measurement.KindForCluster(evt.ClusterID); ok && evt.CommandID == zcl.CmdReportAttributes {
		return nil, g.handleAttributeReport(ds, evt, group)
	}

	g.logger.Debug("cluster command ignored", "ieee", evt.IEEE,
		"cluster", g.registry.Name(evt.ClusterID), "cmd", fmt.Sprintf("0x%02X", evt.CommandID))
	return nil, nil
}

func (g *Gateway) handleTuyaCommand(ds *deviceState, evt source.ClusterCommandEvent) ([]quirk.Result, error) {
	switch evt.CommandID {
	case clusters.TuyaCmdDataResponse, clusters.TuyaCmdDataReport, clusters.TuyaCmdStatusReport:
	default:
		g.logger.Debug("tuya command ignored", "ieee", evt.IEEE, "cmd", fmt.Sprintf("0x%02X", evt.CommandID))
		return nil, nil
	}

	frame, decErr := tuya.DecodeFrame(evt.Payload)
	metrics.ObserveFrame(evt.Source, decErr)
	if decErr != nil {
		g.logger.Warn("tuya frame decode failed", "ieee", evt.IEEE, "payload", fmt.Sprintf("%X", evt.Payload), "err", decErr)
	}
	if len(frame.DataPoints) == 0 {
		return nil, decErr
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	g.touch(evt.IEEE, evt.LQI)
	results := make([]quirk.Result, 0, len(frame.DataPoints))
	for _, dp := range frame.DataPoints {
		if v, ok := dp.Number(); ok {
			results = append(results, g.translateLocked(evt.IEEE, ds, dp.ID, v))
			continue
		}
		// Strings and raw blobs cannot be translated; keep them for inspection.
		value := dp.Value()
		if b, ok := value.([]byte); ok {
			value = hex.EncodeToString(b)
		}
		g.setProperty(evt.IEEE, dp.ID, value)
		results = append(results, quirk.Result{DataPoint: dp.ID, Outcome: quirk.Unmapped})
	}
	return results, decErr
}

func (g *Gateway) handleAttributeReport(ds *deviceState, evt source.ClusterCommandEvent, group measurement.Kind) error {
	reports, decErr := zcl.ParseAttributeReports(evt.Payload)
	metrics.ObserveFrame(evt.Source, decErr)

	ds.mu.Lock()
	defer ds.mu.Unlock()

	g.touch(evt.IEEE, evt.LQI)
	var errs []error
	if decErr != nil {
		errs = append(errs, decErr)
	}
	for _, r := range reports {
		attr, ok := measurement.AttributeName(r.AttrID)
		if !ok {
			continue
		}
		v, ok := numeric(r.Value)
		if !ok {
			errs = append(errs, fmt.Errorf("%s.%s: non-numeric value %T", group, attr, r.Value))
			continue
		}
		if err := ds.endpoint.Set(group, attr, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// touch records that a device has been heard from.
func (g *Gateway) touch(ieee string, lqi uint8) {
	if err := g.store.UpdateDevice(ieee, func(d *store.Device) error {
		d.LastSeen = time.Now()
		if lqi > 0 {
			d.LQI = lqi
		}
		return nil
	}); err != nil {
		g.logger.Error("save device last_seen", "ieee", ieee, "err", err)
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
