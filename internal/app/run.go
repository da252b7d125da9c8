package app

import (
	"context"
	"sync"

	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/events"
	"github.com/gmsas95/medremind/internal/notify"
	"go.uber.org/zap"
)

// Run starts the planner, the trigger, the presenters and the API, then
// blocks until ctx is done and stops them in reverse order.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if err := a.Planner.Start(); err != nil {
		return err
	}
	defer a.Planner.Stop()

	if a.Config.Notify.Telegram.Enabled && a.Telegram == nil {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:         a.Config.Notify.Telegram.BotToken,
			ChatID:        a.Config.Notify.Telegram.ChatID,
			RatePerSecond: a.Config.Notify.Telegram.RatePerSecond,
			SnoozeMinutes: int(a.Config.Scheduler.DefaultSnooze.Minutes()),
		}, a.Store, a.Logger)
		if err != nil {
			a.Logger.Error("Telegram presenter disabled", zap.Error(err))
		} else {
			a.Telegram = tg
			a.Presenters.Add(tg)
		}
	}
	if a.Presenters.Len() == 0 {
		a.Logger.Warn("No alarm presenter configured; due doses will only be logged")
	}

	if a.Telegram != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Telegram.Run(ctx); err != nil {
				a.Logger.Error("Telegram presenter stopped", zap.Error(err))
			}
		}()
	}
	if a.Console != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Console.Run(ctx, a.in); err != nil {
				a.Logger.Error("Console presenter stopped", zap.Error(err))
			}
		}()
	}

	changes, unsubscribe := a.Bus.Subscribe(32, events.KindInventory)
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.watchInventory(ctx, changes)
	}()
	defer unsubscribe()

	if err := a.Trigger.Start(ctx); err != nil {
		return err
	}
	defer a.Trigger.Stop()

	if a.Server != nil {
		go func() {
			if err := a.Server.Start(); err != nil {
				a.Logger.Error("Server error", zap.Error(err))
			}
		}()
		defer func() {
			if err := a.Server.Shutdown(); err != nil {
				a.Logger.Error("Server shutdown error", zap.Error(err))
			}
		}()
	}

	if a.configPath != "" {
		w, err := config.Watch(a.configPath, a.Config.Storage.DataDir, a.Logger, a.Reload)
		if err != nil {
			a.Logger.Warn("Config hot reload disabled", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	a.Logger.Info("medremind started",
		zap.Int("reminders", a.Registry.Len()),
		zap.Int("presenters", a.Presenters.Len()),
		zap.Time("next_plan", a.Planner.NextRun()),
	)

	<-ctx.Done()
	a.Logger.Info("Shutting down...")
	wg.Wait()
	return nil
}

// Reload applies timing changes from a reloaded configuration to the
// running detector and trigger
func (a *App) Reload(cfg *config.Config) {
	a.Detector.SetTolerance(cfg.Scheduler.Tolerance)
	if err := a.Trigger.Reconfigure(triggerConfig(cfg)); err != nil {
		a.Logger.Error("Failed to apply reloaded config", zap.Error(err))
		return
	}
	a.Config.Scheduler.Tolerance = cfg.Scheduler.Tolerance
	a.Config.Scheduler.PollInterval = cfg.Scheduler.PollInterval
	a.Config.Scheduler.GracePeriod = cfg.Scheduler.GracePeriod
	a.Config.Scheduler.DefaultSnooze = cfg.Scheduler.DefaultSnooze
	a.Logger.Info("Scheduler config reloaded",
		zap.Duration("tolerance", cfg.Scheduler.Tolerance),
		zap.Duration("poll_interval", cfg.Scheduler.PollInterval),
		zap.Duration("grace_period", cfg.Scheduler.GracePeriod),
	)
}

// watchInventory keeps the supply gauge current after doses are taken
func (a *App) watchInventory(ctx context.Context, changes <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			m, err := a.Store.GetMedicine(ev.Subject)
			if err != nil || m == nil {
				continue
			}
			a.Metrics.SetSupply(m.Name, m.CurrentSupply)
			if m.LowStock() {
				a.Logger.Warn("Medicine supply is low",
					zap.String("medicine", m.Name),
					zap.Int("supply", m.CurrentSupply),
				)
			}
		}
	}
}
