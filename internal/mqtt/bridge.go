//go:build !no_mqtt

// Package mqtt bridges the gateway to an MQTT broker: it ingests Tuya
// reports, publishes device state and announces sensors to Home Assistant.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"tuya-air/internal/gateway"
	"tuya-air/internal/measurement"
	"tuya-air/internal/store"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker          string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
}

// Bridge connects the gateway to MQTT with HA autodiscovery.
type Bridge struct {
	client    pahomqtt.Client
	gw        *gateway.Gateway
	prefix    string
	discovery string
	logger    *slog.Logger
	unsub     func()
	ctx       context.Context
	cancel    context.CancelFunc

	// Last state topic per IEEE, so a removed device's retained state can be cleared.
	mu     sync.Mutex
	topics map[string]string
}

func newBridge(gw *gateway.Gateway, cfg Config, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	discovery := cfg.DiscoveryPrefix
	if discovery == "" {
		discovery = "homeassistant"
	}
	return &Bridge{
		gw:        gw,
		prefix:    cfg.TopicPrefix,
		discovery: discovery,
		logger:    logger.With("component", "mqtt"),
		topics:    make(map[string]string),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(gw *gateway.Gateway, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(gw, cfg, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("tuya-air").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(b.availabilityTopic(), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to gateway events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.gw.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

// onConnect runs on every (re)connect: availability, discovery, ingest subscription.
func (b *Bridge) onConnect() {
	b.publishBridgeState("online")
	b.publishAllDiscovery()
	b.subscribeIngest()
}

func (b *Bridge) handleEvent(event gateway.Event) {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return
	}
	ieee, _ := data["ieee"].(string)
	if ieee == "" {
		return
	}

	switch event.Type {
	case gateway.EventAttributeUpdate, gateway.EventPropertyUpdate:
		b.publishState(ieee)
	case gateway.EventDeviceAdded:
		dev, err := b.gw.Device(ieee)
		if err != nil {
			return
		}
		b.publishDeviceDiscovery(dev)
		b.publishState(ieee)
	case gateway.EventDeviceRemoved:
		b.handleDeviceRemoved(ieee)
	}
}

// publishState publishes the device's latest readings as retained JSON.
func (b *Bridge) publishState(ieee string) {
	dev, err := b.gw.Device(ieee)
	if err != nil {
		return
	}
	topic := b.prefix + "/" + deviceTopicName(dev)

	b.mu.Lock()
	prev, had := b.topics[ieee]
	b.topics[ieee] = topic
	b.mu.Unlock()
	if had && prev != topic {
		b.publish(prev, nil, true)
	}

	b.publish(topic, mustJSON(buildState(dev)), true)
}

// buildState renders a stored device as the HA state payload.
func buildState(dev *store.Device) map[string]any {
	state := make(map[string]any)
	for group, attrs := range dev.Measurements {
		k, err := measurement.ParseKind(group)
		if err != nil {
			continue
		}
		v, ok := attrs[measurement.MeasuredValue]
		if !ok {
			continue
		}
		state[stateKey(k)] = displayValue(k, v)
	}
	for name, v := range dev.Properties {
		state[name] = v
	}
	state["linkquality"] = dev.LQI
	if !dev.LastSeen.IsZero() {
		state["last_seen"] = dev.LastSeen.Format(time.RFC3339)
	}
	return state
}

// displayValue converts a stored measured_value into the unit HA shows.
// Temperature and humidity are held in hundredths, CO2 as a fraction.
func displayValue(k measurement.Kind, v float64) float64 {
	switch k {
	case measurement.Temperature, measurement.Humidity:
		return v / 100
	case measurement.CarbonDioxide:
		return v * 1e6
	default:
		return v
	}
}

func (b *Bridge) handleDeviceRemoved(ieee string) {
	for _, msg := range buildRemoveDiscovery(ieee, b.discovery) {
		b.publish(msg.Topic, msg.Payload, true)
	}

	b.mu.Lock()
	topic, ok := b.topics[ieee]
	delete(b.topics, ieee)
	b.mu.Unlock()
	if ok {
		b.publish(topic, nil, true)
	}
}

func (b *Bridge) availabilityTopic() string {
	return b.prefix + "/bridge/state"
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.availabilityTopic(), []byte(state), true)
}

func (b *Bridge) publishAllDiscovery() {
	devices, err := b.gw.Devices()
	if err != nil {
		b.logger.Error("list devices for discovery", "err", err)
		return
	}
	for _, dev := range devices {
		b.publishDeviceDiscovery(dev)
	}
}

func (b *Bridge) publishDeviceDiscovery(dev *store.Device) {
	p, err := b.gw.Profile(dev.IEEEAddress)
	if err != nil {
		b.logger.Warn("discovery without profile", "ieee", dev.IEEEAddress, "err", err)
		return
	}
	for _, msg := range buildDiscovery(dev, p.Groups(), b.prefix, b.discovery) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "ieee", dev.IEEEAddress, "name", dev.DisplayName())
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
