//go:build no_influx

package main

import (
	"log/slog"

	"tuya-air/internal/gateway"
)

type historyStopper struct{}

func (h *historyStopper) Stop() {}

func initHistory(_ *gateway.Gateway, _ *Config, _ *slog.Logger) *historyStopper {
	return &historyStopper{}
}
