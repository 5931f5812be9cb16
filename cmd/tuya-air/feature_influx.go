//go:build !no_influx

package main

import (
	"errors"
	"log/slog"

	"tuya-air/internal/gateway"
	"tuya-air/internal/history"
)

type historyStopper struct {
	client   *history.Client
	recorder *history.Recorder
	logger   *slog.Logger
}

func (h *historyStopper) Stop() {
	if h.recorder != nil {
		h.recorder.Stop()
	}
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			h.logger.Error("close influxdb", "err", err)
		}
	}
}

func initHistory(gw *gateway.Gateway, cfg *Config, logger *slog.Logger) *historyStopper {
	client, err := history.Connect(history.Config{
		Enabled:       cfg.InfluxDB.Enabled,
		URL:           cfg.InfluxDB.URL,
		Token:         cfg.InfluxDB.Token,
		Org:           cfg.InfluxDB.Org,
		Bucket:        cfg.InfluxDB.Bucket,
		BatchSize:     cfg.InfluxDB.BatchSize,
		FlushInterval: cfg.InfluxDB.FlushInterval,
	})
	if errors.Is(err, history.ErrDisabled) {
		return &historyStopper{}
	}
	if err != nil {
		logger.Error("influxdb", "err", err)
		return &historyStopper{}
	}

	log := logger.With("component", "influxdb")
	client.SetOnError(func(err error) {
		log.Warn("influxdb write failed", "err", err)
	})
	log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

	return &historyStopper{
		client:   client,
		recorder: history.NewRecorder(client, gw.Events(), logger),
		logger:   log,
	}
}
