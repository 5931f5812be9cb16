//go:build no_automation

package main

import (
	"log/slog"

	"tuya-air/internal/gateway"
	"tuya-air/internal/notify"
	"tuya-air/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *gateway.Gateway, _ *Config, _ *notify.Telegram, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
