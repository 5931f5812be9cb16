//go:build !no_mqtt

package mqtt

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"tuya-air/internal/gateway"
	"tuya-air/internal/measurement"
	"tuya-air/internal/quirk"
	"tuya-air/internal/store"
	"tuya-air/internal/tuya"
	"tuya-air/internal/zcl"
	"tuya-air/internal/zcl/clusters"
)

const (
	co2IEEE   = "A4C1380000000001"
	houseIEEE = "A4C1380000000002"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	payload  []byte
	retained bool
}

// fakeClient records publishes and subscriptions instead of talking to a broker.
type fakeClient struct {
	mu         sync.Mutex
	retained   map[string]published
	subscribed map[string]pahomqtt.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		retained:   make(map[string]published),
		subscribed: make(map[string]pahomqtt.MessageHandler),
	}
}

func (f *fakeClient) IsConnected() bool      { return true }
func (f *fakeClient) IsConnectionOpen() bool { return true }

func (f *fakeClient) Disconnect(uint) {}

func (f *fakeClient) Connect() pahomqtt.Token { return doneToken{} }

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	f.retained[topic] = published{payload: b, retained: retained}
	return doneToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	f.subscribed[topic] = cb
	f.mu.Unlock()
	return doneToken{}
}

func (f *fakeClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken{}
}

func (f *fakeClient) Unsubscribe(...string) pahomqtt.Token { return doneToken{} }

func (f *fakeClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (f *fakeClient) get(topic string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.retained[topic]
	return p, ok
}

func (f *fakeClient) state(t *testing.T, topic string) map[string]any {
	t.Helper()
	p, ok := f.get(topic)
	if !ok {
		t.Fatalf("nothing published on %s", topic)
	}
	var m map[string]any
	if err := json.Unmarshal(p.payload, &m); err != nil {
		t.Fatalf("state on %s: %v", topic, err)
	}
	return m
}

func setupBridge(t *testing.T) (*Bridge, *fakeClient, *gateway.Gateway) {
	t.Helper()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cat, err := quirk.NewCatalog(quirk.Builtin()...)
	if err != nil {
		t.Fatal(err)
	}
	reg := zcl.NewRegistry(testLogger())
	clusters.RegisterAll(reg)
	gw, err := gateway.New(cat, st, reg, gateway.NewEventBus(testLogger()), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gw.AddDevice(store.Device{IEEEAddress: co2IEEE, Manufacturer: "_TZE200_8ygsuhe1", Model: "TS0601"}); err != nil {
		t.Fatal(err)
	}

	client := newFakeClient()
	b := newBridge(gw, Config{TopicPrefix: "tuya-air"}, testLogger())
	b.client = client
	b.Start()
	t.Cleanup(b.Stop)
	return b, client, gw
}

func TestOnConnect(t *testing.T) {
	b, client, _ := setupBridge(t)
	b.onConnect()

	if p, ok := client.get("tuya-air/bridge/state"); !ok || string(p.payload) != "online" || !p.retained {
		t.Errorf("bridge state = %+v", p)
	}
	if _, ok := client.get("homeassistant/sensor/tuya_air_" + co2IEEE + "/co2/config"); !ok {
		t.Error("co2 discovery missing")
	}
	if _, ok := client.subscribed["tuya-air/+/tuya"]; !ok {
		t.Errorf("subscriptions = %v", client.subscribed)
	}
}

func TestStateDisplayUnits(t *testing.T) {
	_, client, gw := setupBridge(t)

	if _, err := gw.OnDataPointReport(co2IEEE, 2, 450); err != nil {
		t.Fatal(err)
	}
	if _, err := gw.OnDataPointReport(co2IEEE, 18, 215); err != nil {
		t.Fatal(err)
	}

	state := client.state(t, "tuya-air/"+co2IEEE)
	if co2, _ := state["co2"].(float64); math.Abs(co2-450) > 1e-6 {
		t.Errorf("co2 = %v, want 450 ppm", state["co2"])
	}
	if state["temperature"] != 21.5 {
		t.Errorf("temperature = %v, want 21.5", state["temperature"])
	}
}

func TestIngestHexPayload(t *testing.T) {
	b, client, gw := setupBridge(t)

	frame := tuya.EncodeFrame(tuya.Frame{Seq: 1, DataPoints: []tuya.DataPoint{
		tuya.NewValue(19, 550),
		tuya.NewValue(99, 7),
	}})
	msg, _ := json.Marshal(map[string]any{"payload": hex.EncodeToString(frame), "linkquality": 120})
	if err := b.handleIngest("tuya-air/a4c1380000000001/tuya", msg); err != nil {
		t.Fatal(err)
	}

	if v, ok := gw.Measurement(co2IEEE, measurement.Humidity, measurement.MeasuredValue); !ok || v != 5500 {
		t.Errorf("humidity = %v, %v", v, ok)
	}
	state := client.state(t, "tuya-air/"+co2IEEE)
	if state["dp_99"] != 7.0 {
		t.Errorf("dp_99 = %v", state["dp_99"])
	}
	if state["linkquality"] != 120.0 {
		t.Errorf("linkquality = %v", state["linkquality"])
	}
}

func TestIngestDataPoints(t *testing.T) {
	b, _, gw := setupBridge(t)

	err := b.handleIngest("tuya-air/"+co2IEEE+"/tuya", []byte(`{"datapoints":[{"dp":18,"value":200},{"dp":19}]}`))
	if err == nil {
		t.Error("missing value not reported")
	}
	if v, ok := gw.Measurement(co2IEEE, measurement.Temperature, measurement.MeasuredValue); !ok || v != 2000 {
		t.Errorf("temperature = %v, %v", v, ok)
	}
}

func TestIngestErrors(t *testing.T) {
	b, _, _ := setupBridge(t)

	tests := []struct {
		name, topic, payload string
	}{
		{"outside prefix", "other/" + co2IEEE + "/tuya", `{"datapoints":[{"dp":18,"value":1}]}`},
		{"bad ieee", "tuya-air/kitchen/tuya", `{"datapoints":[{"dp":18,"value":1}]}`},
		{"bad json", "tuya-air/" + co2IEEE + "/tuya", `{`},
		{"bad hex", "tuya-air/" + co2IEEE + "/tuya", `{"payload":"zz"}`},
		{"empty", "tuya-air/" + co2IEEE + "/tuya", `{}`},
		{"unknown device", "tuya-air/A4C13800000000FF/tuya", `{"datapoints":[{"dp":18,"value":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.handleIngest(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDeviceAddedAndRemoved(t *testing.T) {
	_, client, gw := setupBridge(t)

	if _, err := gw.AddDevice(store.Device{IEEEAddress: houseIEEE, Manufacturer: "_TZE200_dwcarsat", Model: "TS0601", FriendlyName: "Bed Room"}); err != nil {
		t.Fatal(err)
	}
	pmTopic := "homeassistant/sensor/tuya_air_" + houseIEEE + "/pm25/config"
	p, ok := client.get(pmTopic)
	if !ok || len(p.payload) == 0 {
		t.Fatal("pm25 discovery not published")
	}
	var disc haDiscovery
	if err := json.Unmarshal(p.payload, &disc); err != nil {
		t.Fatal(err)
	}
	if disc.StateTopic != "tuya-air/bed_room" || disc.DeviceClass != "pm25" || disc.Name != "Bed Room PM2.5" {
		t.Errorf("discovery = %+v", disc)
	}
	if _, ok := client.get("tuya-air/bed_room"); !ok {
		t.Error("initial state not published")
	}

	if err := gw.RemoveDevice(houseIEEE); err != nil {
		t.Fatal(err)
	}
	if p, _ := client.get(pmTopic); len(p.payload) != 0 {
		t.Error("discovery not cleared")
	}
	if p, _ := client.get("tuya-air/bed_room"); len(p.payload) != 0 {
		t.Error("retained state not cleared")
	}
}

func TestBuildDiscoveryGroups(t *testing.T) {
	dev := &store.Device{IEEEAddress: co2IEEE, Manufacturer: "_TZE200_8ygsuhe1", Model: "TS0601"}
	msgs := buildDiscovery(dev, []measurement.Kind{measurement.Temperature, measurement.VOC}, "tuya-air", "homeassistant")

	want := []string{
		"homeassistant/sensor/tuya_air_" + co2IEEE + "/temperature/config",
		"homeassistant/sensor/tuya_air_" + co2IEEE + "/voc/config",
		"homeassistant/sensor/tuya_air_" + co2IEEE + "/linkquality/config",
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m.Topic != want[i] {
			t.Errorf("topic[%d] = %q, want %q", i, m.Topic, want[i])
		}
	}
	var temp haDiscovery
	if err := json.Unmarshal(msgs[0].Payload, &temp); err != nil {
		t.Fatal(err)
	}
	if temp.UnitOfMeasurement != "°C" || temp.ValueTemplate != "{{ value_json.temperature }}" {
		t.Errorf("temperature discovery = %+v", temp)
	}
}

func TestDeviceTopicName(t *testing.T) {
	tests := []struct {
		dev  store.Device
		want string
	}{
		{store.Device{IEEEAddress: co2IEEE}, co2IEEE},
		{store.Device{IEEEAddress: co2IEEE, FriendlyName: "Living Room #1"}, "living_room__1"},
	}
	for _, tt := range tests {
		if got := deviceTopicName(&tt.dev); got != tt.want {
			t.Errorf("deviceTopicName(%q) = %q, want %q", tt.dev.FriendlyName, got, tt.want)
		}
	}
}

func TestDisplayValue(t *testing.T) {
	tests := []struct {
		kind measurement.Kind
		in   float64
		want float64
	}{
		{measurement.Temperature, 2150, 21.5},
		{measurement.Humidity, 5500, 55},
		{measurement.CarbonDioxide, 0.00045, 450},
		{measurement.PM25, 35, 35},
	}
	for _, tt := range tests {
		if got := displayValue(tt.kind, tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("displayValue(%v, %v) = %v, want %v", tt.kind, tt.in, got, tt.want)
		}
	}
}
