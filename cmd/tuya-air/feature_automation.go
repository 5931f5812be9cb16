//go:build !no_automation

package main

import (
	"log/slog"

	"tuya-air/internal/automation"
	"tuya-air/internal/gateway"
	"tuya-air/internal/notify"
	"tuya-air/internal/web"
)

type autoStopper struct {
	engine *automation.Engine
}

func (a *autoStopper) Stop() {
	if a.engine != nil {
		a.engine.Stop()
	}
}

func initAutomation(gw *gateway.Gateway, cfg *Config, tg *notify.Telegram, logger *slog.Logger) (*autoStopper, []web.ServerOption) {
	scriptMgr, err := automation.NewManager(cfg.ScriptsDir, logger)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return &autoStopper{}, nil
	}

	var notifier automation.Notifier
	if tg.Configured() {
		notifier = tg
	}

	engine := automation.NewEngine(gw, scriptMgr, notifier, logger)
	engine.Start()

	opts := []web.ServerOption{
		web.WithAutomation(engine, scriptMgr),
	}
	return &autoStopper{engine: engine}, opts
}
