package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tuya-air/internal/gateway"
	"tuya-air/internal/quirk"
	"tuya-air/internal/store"
	"tuya-air/internal/zcl"
	"tuya-air/internal/zcl/clusters"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "log: {level: debug}\n")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"web.listen", cfg.Web.Listen, "127.0.0.1:8080"},
		{"store.path", cfg.Store.Path, "tuya-air.db"},
		{"profiles_dir", cfg.ProfilesDir, "profiles"},
		{"scripts_dir", cfg.ScriptsDir, "scripts"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "tuya-air"},
		{"mqtt.discovery_prefix", cfg.MQTT.DiscoveryPrefix, "homeassistant"},
		{"serial.baud", cfg.Serial.Baud, 9600},
		{"serial.heartbeat", cfg.Serial.Heartbeat, "15s"},
		{"influxdb.batch_size", cfg.InfluxDB.BatchSize, 100},
		{"influxdb.flush_interval", cfg.InfluxDB.FlushInterval, 10},
		{"log.level", cfg.Log.Level, "debug"},
		{"log.format", cfg.Log.Format, "text"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
web:
  listen: 0.0.0.0:9000
  api_key: k
serial:
  enabled: true
  port: /dev/ttyS1
  ieee: "a4:c1:38:00:00:00:00:01"
  heartbeat: 30s
telegram:
  bot_token: "123:abc"
  chat_ids: [42, -100]
devices:
  - {ieee: A4C1380000000002, manufacturer: _TZE200_dwcarsat, model: TS0601, friendly_name: living room}
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Web.Listen != "0.0.0.0:9000" || cfg.Web.APIKey != "k" {
		t.Errorf("web = %+v", cfg.Web)
	}
	if d, _ := cfg.heartbeat(); d != 30*time.Second {
		t.Errorf("heartbeat = %v", d)
	}
	if len(cfg.Telegram.ChatIDs) != 2 || cfg.Telegram.ChatIDs[1] != -100 {
		t.Errorf("chat_ids = %v", cfg.Telegram.ChatIDs)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].FriendlyName != "living room" {
		t.Errorf("devices = %+v", cfg.Devices)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("missing file: err = %v", err)
	}
	path := writeFile(t, t.TempDir(), "bad.yaml", "web: [")
	if _, err := loadConfig(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("bad yaml: err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"serial without ieee", func(c *Config) { c.Serial.Enabled = true }, "serial.ieee"},
		{"serial bad heartbeat", func(c *Config) {
			c.Serial.Enabled = true
			c.Serial.IEEE = "A4C1380000000001"
			c.Serial.Heartbeat = "soon"
		}, "serial.heartbeat"},
		{"serial negative heartbeat", func(c *Config) {
			c.Serial.Enabled = true
			c.Serial.IEEE = "A4C1380000000001"
			c.Serial.Heartbeat = "-1s"
		}, "negative"},
		{"mqtt without broker", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker = ""
		}, "mqtt.broker"},
		{"influx without bucket", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
		}, "influxdb"},
		{"bad device ieee", func(c *Config) {
			c.Devices = []DeviceConfig{{IEEE: "123"}}
		}, "devices[0].ieee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeFile(t, t.TempDir(), "c.yaml", "{}"))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{}
		cfg.Log.Level = tt.level
		cfg.Log.Format = "json"
		logger := newLogger(cfg)
		ctx := context.Background()
		if !logger.Enabled(ctx, tt.want) {
			t.Errorf("level %q: %v not enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(ctx, tt.want-1) {
			t.Errorf("level %q: below %v enabled", tt.level, tt.want)
		}
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "office.yaml", `
profiles:
  - name: office_co2
    base: tuya_co2
    signatures:
      - {manufacturer: _TZE200_office, model: TS0601}
`)
	catalog, err := loadCatalog(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog.Profiles()) != 3 {
		t.Fatalf("got %d profiles, want 3", len(catalog.Profiles()))
	}
	p, ok := catalog.Match("_TZE200_office", "TS0601")
	if !ok || p.Name() != "office_co2" {
		t.Errorf("match = %v %v", p, ok)
	}

	missing, err := loadCatalog(filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("missing dir: %v", err)
	}
	if len(missing.Profiles()) != 2 {
		t.Errorf("missing dir: got %d profiles, want the 2 built-ins", len(missing.Profiles()))
	}
}

func TestRegisterDevices(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	catalog, err := quirk.NewCatalog(quirk.Builtin()...)
	if err != nil {
		t.Fatal(err)
	}
	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)
	gw, err := gateway.New(catalog, db, registry, gateway.NewEventBus(logger), logger)
	if err != nil {
		t.Fatal(err)
	}

	registerDevices(gw, []DeviceConfig{
		{IEEE: "A4C1380000000001", Manufacturer: "_TZE200_dwcarsat", Model: "TS0601", FriendlyName: "living room"},
		{IEEE: "A4C1380000000002", Manufacturer: "_TZE200_unknown", Model: "TS0601"},
		{IEEE: "A4C1380000000003", Profile: quirk.ProfileCO2},
	}, logger)

	devs, err := gw.Devices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devs) != 2 {
		t.Fatalf("got %d devices, want 2 (unknown signature skipped)", len(devs))
	}
	if devs[0].Profile != quirk.ProfileAirHousekeeper || devs[1].Profile != quirk.ProfileCO2 {
		t.Errorf("profiles = %s, %s", devs[0].Profile, devs[1].Profile)
	}
}
