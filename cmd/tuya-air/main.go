package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"tuya-air/internal/gateway"
	"tuya-air/internal/notify"
	"tuya-air/internal/quirk"
	"tuya-air/internal/source"
	"tuya-air/internal/store"
	"tuya-air/internal/web"
	"tuya-air/internal/zcl"
	"tuya-air/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// DeviceConfig pre-registers a device at startup.
type DeviceConfig struct {
	IEEE         string `yaml:"ieee"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	FriendlyName string `yaml:"friendly_name"`
	Profile      string `yaml:"profile"`
}

type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	MQTT struct {
		Enabled         bool   `yaml:"enabled"`
		Broker          string `yaml:"broker"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		TopicPrefix     string `yaml:"topic_prefix"`
		DiscoveryPrefix string `yaml:"discovery_prefix"`
	} `yaml:"mqtt"`
	Serial struct {
		Enabled   bool   `yaml:"enabled"`
		Port      string `yaml:"port"`
		Baud      int    `yaml:"baud"`
		IEEE      string `yaml:"ieee"`
		Heartbeat string `yaml:"heartbeat"`
	} `yaml:"serial"`
	InfluxDB struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Token         string `yaml:"token"`
		Org           string `yaml:"org"`
		Bucket        string `yaml:"bucket"`
		BatchSize     int    `yaml:"batch_size"`
		FlushInterval int    `yaml:"flush_interval"`
	} `yaml:"influxdb"`
	Telegram    notify.Config  `yaml:"telegram"`
	Devices     []DeviceConfig `yaml:"devices"`
	ProfilesDir string         `yaml:"profiles_dir"`
	ScriptsDir  string         `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if c.Serial.Enabled {
		if c.Serial.Port == "" {
			return fmt.Errorf("serial.port is required when serial is enabled")
		}
		if _, err := gateway.NormalizeIEEE(c.Serial.IEEE); err != nil {
			return fmt.Errorf("serial.ieee: %w", err)
		}
		if _, err := c.heartbeat(); err != nil {
			return err
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	for i, d := range c.Devices {
		if _, err := gateway.NormalizeIEEE(d.IEEE); err != nil {
			return fmt.Errorf("devices[%d].ieee: %w", i, err)
		}
	}
	return nil
}

// heartbeat parses serial.heartbeat; "0" disables heartbeats.
func (c *Config) heartbeat() (time.Duration, error) {
	d, err := time.ParseDuration(c.Serial.Heartbeat)
	if err != nil {
		return 0, fmt.Errorf("serial.heartbeat: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("serial.heartbeat must not be negative, got %s", d)
	}
	return d, nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("tuya-air starting", "version", version)

	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)

	catalog, err := loadCatalog(cfg.ProfilesDir)
	if err != nil {
		logger.Error("load profiles", "err", err)
		os.Exit(1)
	}
	logger.Info("profile catalog loaded", "profiles", len(catalog.Profiles()), "clusters", len(registry.All()))

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	events := gateway.NewEventBus(logger)
	gw, err := gateway.New(catalog, db, registry, events, logger)
	if err != nil {
		logger.Error("create gateway", "err", err)
		os.Exit(1)
	}
	registerDevices(gw, cfg.Devices, logger)

	// The recorder subscribes before any source delivers reports.
	hist := initHistory(gw, cfg, logger)

	var sources []source.Source
	if cfg.Serial.Enabled {
		src, err := openSerial(gw, cfg, logger)
		if err != nil {
			logger.Error("serial source", "err", err)
			os.Exit(1)
		}
		sources = append(sources, src)
	}

	notifier := notify.NewTelegram(cfg.Telegram, logger)

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(gw, cfg, notifier, logger)

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)

	webServer := web.NewServer(gw, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(gw, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, src := range sources {
		if err := src.Close(); err != nil {
			logger.Error("close source", "err", err)
		}
	}
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	hist.Stop()

	logger.Info("goodbye")
}

// loadCatalog indexes the built-in profiles plus those declared in dir.
func loadCatalog(dir string) (*quirk.Catalog, error) {
	builtin := quirk.Builtin()
	extra, err := quirk.LoadProfileDir(dir, builtin)
	if err != nil {
		return nil, err
	}
	return quirk.NewCatalog(append(builtin, extra...)...)
}

// registerDevices adds the devices listed in the config. A device whose
// profile cannot be resolved is logged and skipped.
func registerDevices(gw *gateway.Gateway, devices []DeviceConfig, logger *slog.Logger) {
	for _, d := range devices {
		_, err := gw.AddDevice(store.Device{
			IEEEAddress:  d.IEEE,
			Manufacturer: d.Manufacturer,
			Model:        d.Model,
			FriendlyName: d.FriendlyName,
			Profile:      d.Profile,
		})
		if err != nil {
			logger.Warn("register configured device", "ieee", d.IEEE, "err", err)
		}
	}
}

func openSerial(gw *gateway.Gateway, cfg *Config, logger *slog.Logger) (*source.SerialMCU, error) {
	ieee, _ := gateway.NormalizeIEEE(cfg.Serial.IEEE)
	if _, err := gw.Device(ieee); err != nil {
		logger.Warn("serial source device is not registered, reports will be dropped", "ieee", ieee)
	}
	heartbeat, _ := cfg.heartbeat()

	src, err := source.OpenSerialMCU(source.MCUConfig{
		Port:      cfg.Serial.Port,
		Baud:      cfg.Serial.Baud,
		IEEE:      ieee,
		Heartbeat: heartbeat,
	}, logger.With("component", "tuya-mcu"))
	if err != nil {
		return nil, err
	}
	gw.AttachSource(src)
	logger.Info("serial source started", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud, "ieee", ieee)
	return src, nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "tuya-air.db"
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = "profiles"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "tuya-air"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.Serial.Port == "" {
		cfg.Serial.Port = "/dev/ttyUSB0"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 9600
	}
	if cfg.Serial.Heartbeat == "" {
		cfg.Serial.Heartbeat = "15s"
	}
	if cfg.InfluxDB.BatchSize == 0 {
		cfg.InfluxDB.BatchSize = 100
	}
	if cfg.InfluxDB.FlushInterval == 0 {
		cfg.InfluxDB.FlushInterval = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
