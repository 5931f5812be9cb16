//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"tuya-air/internal/measurement"
	"tuya-air/internal/store"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/sensor/tuya_air_A4C138.../temperature/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a sensor discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	Device            haDevice `json:"device"`
}

// sensorInfo describes how one measurement group appears in HA.
type sensorInfo struct {
	key         string // state payload key and discovery object id
	title       string
	deviceClass string
	unit        string
}

var sensors = map[measurement.Kind]sensorInfo{
	measurement.Temperature:   {"temperature", "Temperature", "temperature", "°C"},
	measurement.Humidity:      {"humidity", "Humidity", "humidity", "%"},
	measurement.CarbonDioxide: {"co2", "CO2", "carbon_dioxide", "ppm"},
	measurement.Formaldehyde:  {"formaldehyde", "Formaldehyde", "", ""},
	measurement.PM25:          {"pm25", "PM2.5", "pm25", "µg/m³"},
	measurement.VOC:           {"voc", "VOC", "", ""},
}

// stateKey returns the state payload key of a group.
func stateKey(k measurement.Kind) string {
	if s, ok := sensors[k]; ok {
		return s.key
	}
	return k.String()
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(ieee string) string {
	return "tuya_air_" + ieee
}

// deviceTopicName returns the topic name for a device (friendly name or IEEE).
func deviceTopicName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		// Sanitize: lowercase and keep only safe chars for MQTT topics.
		name := strings.ToLower(dev.FriendlyName)
		name = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				return r
			}
			return '_'
		}, name)
		return name
	}
	return dev.IEEEAddress
}

// buildDiscovery generates HA discovery messages for every group the
// device's profile maps, plus link quality.
func buildDiscovery(dev *store.Device, groups []measurement.Kind, prefix, discoveryPrefix string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + deviceTopicName(dev)
	nodeID := deviceIdentifier(dev.IEEEAddress)
	displayName := dev.DisplayName()

	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: dev.Manufacturer,
		Model:        dev.Model,
		Name:         displayName,
	}

	var msgs []discoveryMsg
	for _, k := range groups {
		s, ok := sensors[k]
		if !ok {
			continue
		}
		msgs = append(msgs, buildSensor(discoveryPrefix, nodeID, displayName, stateTopic, avail, haDev, s))
	}

	// No device_class: "signal_strength" requires dB/dBm units, but LQI is unitless.
	msgs = append(msgs, buildSensor(discoveryPrefix, nodeID, displayName, stateTopic, avail, haDev,
		sensorInfo{key: "linkquality", title: "Link Quality", unit: "lqi"}))
	return msgs
}

func buildSensor(discoveryPrefix, nodeID, displayName, stateTopic, avail string, haDev haDevice, s sensorInfo) discoveryMsg {
	topic := fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, nodeID, s.key)
	payload := haDiscovery{
		Name:              displayName + " " + s.title,
		UniqueID:          nodeID + "_" + s.key,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     "{{ value_json." + s.key + " }}",
		UnitOfMeasurement: s.unit,
		DeviceClass:       s.deviceClass,
		StateClass:        "measurement",
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(ieee, discoveryPrefix string) []discoveryMsg {
	nodeID := deviceIdentifier(ieee)
	var msgs []discoveryMsg
	for _, k := range measurement.Kinds() {
		msgs = append(msgs, discoveryMsg{
			Topic: fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, nodeID, sensors[k].key),
		})
	}
	return append(msgs, discoveryMsg{
		Topic: fmt.Sprintf("%s/sensor/%s/linkquality/config", discoveryPrefix, nodeID),
	})
}
