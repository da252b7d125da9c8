// Package alarm drives the periodic poll, hands newly due reminders to the
// presenter and applies the user's answer back to the registry.
package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gmsas95/medremind/internal/detector"
	"github.com/gmsas95/medremind/internal/events"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Config holds trigger timing
type Config struct {
	PollInterval  time.Duration
	GracePeriod   time.Duration
	DefaultSnooze time.Duration
	QueueSize     int
}

// DefaultConfig polls every 30 seconds and escalates after 10 minutes
func DefaultConfig() Config {
	return Config{
		PollInterval:  30 * time.Second,
		GracePeriod:   10 * time.Minute,
		DefaultSnooze: 5 * time.Minute,
		QueueSize:     16,
	}
}

// Deps are the trigger's collaborators. Registry and Detector are required.
type Deps struct {
	Registry  *reminder.Registry
	Detector  *detector.Detector
	Presenter Presenter
	Recorder  HistoryRecorder
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Clock     clockwork.Clock
	Logger    *zap.Logger
	Tickers   TickerFactory
}

type graceTimer struct {
	timer       clockwork.Timer
	scheduledAt time.Time
}

// Trigger owns the poll loop, the alarm dispatcher and the deferred
// grace-period checks.
type Trigger struct {
	registry  *reminder.Registry
	detector  *detector.Detector
	presenter Presenter
	recorder  HistoryRecorder
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     clockwork.Clock
	logger    *zap.Logger
	newTicker TickerFactory
	dispatch  *Dispatcher

	lifecycle sync.Mutex // serialises Start/Stop/Reconfigure
	running   bool
	ticker    Ticker

	mu       sync.Mutex
	cfg      Config
	timers   map[int64]graceTimer
	releases map[string]clockwork.Timer
}

// New creates a stopped trigger
func New(cfg Config, deps Deps) *Trigger {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = def.GracePeriod
	}
	if cfg.DefaultSnooze <= 0 {
		cfg.DefaultSnooze = def.DefaultSnooze
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}
	if deps.Tickers == nil {
		deps.Tickers = GocronFactory(deps.Clock, deps.Logger)
	}

	return &Trigger{
		registry:  deps.Registry,
		detector:  deps.Detector,
		presenter: deps.Presenter,
		recorder:  deps.Recorder,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    deps.Logger,
		newTicker: deps.Tickers,
		dispatch:  NewDispatcher(cfg.QueueSize, deps.Logger),
		cfg:       cfg,
		timers:    make(map[int64]graceTimer),
		releases:  make(map[string]clockwork.Timer),
	}
}

// Start begins polling. Calling Start while running restarts the cycle,
// so there is never more than one poller.
func (t *Trigger) Start(ctx context.Context) error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.stopLocked()

	cfg := t.config()
	ticker, err := t.newTicker(cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to create ticker: %w", err)
	}

	t.dispatch.Start(ctx)
	if err := ticker.Start(func() { t.Tick() }); err != nil {
		t.dispatch.Stop()
		return fmt.Errorf("failed to start ticker: %w", err)
	}
	t.ticker = ticker
	t.running = true

	t.logger.Info("Reminder trigger started",
		zap.Duration("interval", cfg.PollInterval),
		zap.Duration("grace_period", cfg.GracePeriod),
	)

	// Run immediately on start
	t.Tick()
	return nil
}

// Stop cancels the poll, the dispatcher and every pending deferred check.
// Safe to call repeatedly or before Start.
func (t *Trigger) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.stopLocked()
}

func (t *Trigger) stopLocked() {
	if !t.running {
		return
	}
	t.running = false

	t.ticker.Stop()
	t.ticker = nil
	t.dispatch.Stop()

	t.mu.Lock()
	for id, gt := range t.timers {
		gt.timer.Stop()
		delete(t.timers, id)
	}
	for key, timer := range t.releases {
		timer.Stop()
		t.detector.Forget(key)
		delete(t.releases, key)
	}
	t.mu.Unlock()

	t.logger.Info("Reminder trigger stopped")
}

// IsRunning returns true while polling
func (t *Trigger) IsRunning() bool {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	return t.running
}

// Reconfigure swaps timing at runtime. A changed poll interval restarts
// the ticker; grace and snooze apply to alarms fired from now on.
func (t *Trigger) Reconfigure(cfg Config) error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	old := t.cfg
	if cfg.PollInterval > 0 {
		t.cfg.PollInterval = cfg.PollInterval
	}
	if cfg.GracePeriod > 0 {
		t.cfg.GracePeriod = cfg.GracePeriod
	}
	if cfg.DefaultSnooze > 0 {
		t.cfg.DefaultSnooze = cfg.DefaultSnooze
	}
	next := t.cfg
	t.mu.Unlock()

	if !t.running || next.PollInterval == old.PollInterval {
		return nil
	}

	ticker, err := t.newTicker(next.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to create ticker: %w", err)
	}
	t.ticker.Stop()
	if err := ticker.Start(func() { t.Tick() }); err != nil {
		t.running = false
		t.dispatch.Stop()
		return fmt.Errorf("failed to restart ticker: %w", err)
	}
	t.ticker = ticker
	t.logger.Info("Poll interval changed", zap.Duration("interval", next.PollInterval))
	return nil
}

func (t *Trigger) config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Tick runs one poll cycle: escalate stale doses, detect newly due ones and
// queue their alarms. It never panics and never blocks on presentation.
func (t *Trigger) Tick() (fired []reminder.Reminder) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic in reminder tick", zap.String("recover", fmt.Sprint(r)))
			fired = nil
		}
		t.metrics.RecordTick(time.Since(started))
	}()

	now := t.clock.Now()
	cfg := t.config()

	t.sweep(now, cfg.GracePeriod)

	fired = t.detector.Detect(now)
	for _, r := range fired {
		t.fire(r, now, cfg)
	}

	t.metrics.SetPending(t.registry.PendingCount())
	t.metrics.SetNotified(t.detector.NotifiedCount())
	return fired
}

// sweep escalates doses that slipped past the window without an answer.
// They can never fire again, so they would otherwise stay pending forever.
func (t *Trigger) sweep(now time.Time, grace time.Duration) {
	for _, r := range t.detector.Overdue(now, grace) {
		if t.registry.MarkMissedIfStale(r.ID, r.ScheduledTime, now) {
			t.cancelGrace(r.ID)
			t.logger.Info("Reminder escalated to missed",
				zap.Int64("reminder_id", r.ID),
				zap.String("medicine", r.MedicineName),
				zap.Time("scheduled", r.ScheduledTime),
			)
			t.recordOutcome(r, reminder.StatusMissed, now, metrics.SourceSweep)
		}
	}
}

func (t *Trigger) fire(r reminder.Reminder, now time.Time, cfg Config) {
	if t.recorder != nil {
		if err := t.recorder.RecordDue(r); err != nil {
			t.logger.Warn("Failed to record due dose",
				zap.Int64("reminder_id", r.ID),
				zap.Error(err),
			)
		} else {
			t.publish(events.KindHistory, r.ID)
		}
	}

	t.scheduleGraceCheck(r, cfg.GracePeriod)

	id := r.ID
	a := NewAlarm(r, now, func(resp Response) bool {
		return t.Respond(id, resp)
	})
	if err := t.dispatch.Submit(func(ctx context.Context) { t.present(ctx, a) }); err != nil {
		t.metrics.RecordAlarmFailure("queue_full")
		t.logger.Error("Alarm dropped",
			zap.Int64("reminder_id", r.ID),
			zap.String("medicine", r.MedicineName),
			zap.Error(err),
		)
		return
	}

	t.logger.Info("Alarm queued",
		zap.Int64("reminder_id", r.ID),
		zap.String("medicine", r.MedicineName),
		zap.Time("scheduled", r.ScheduledTime),
	)
}

func (t *Trigger) present(ctx context.Context, a Alarm) {
	defer func() {
		if r := recover(); r != nil {
			t.metrics.RecordAlarmFailure("panic")
			t.logger.Error("Presenter panicked",
				zap.Int64("reminder_id", a.Reminder.ID),
				zap.String("recover", fmt.Sprint(r)),
			)
		}
	}()

	if t.presenter == nil {
		t.metrics.RecordAlarmFailure("no_presenter")
		t.logger.Warn("No presenter configured, alarm not shown", zap.Int64("reminder_id", a.Reminder.ID))
		return
	}
	if err := t.presenter.PresentAlarm(ctx, a); err != nil {
		t.metrics.RecordAlarmFailure("presenter")
		t.logger.Error("Failed to present alarm",
			zap.Int64("reminder_id", a.Reminder.ID),
			zap.Error(err),
		)
		return
	}
	t.metrics.RecordAlarm()
}

func (t *Trigger) scheduleGraceCheck(r reminder.Reminder, grace time.Duration) {
	id, at := r.ID, r.ScheduledTime
	timer := t.clock.AfterFunc(grace, func() { t.graceCheck(id, at) })

	t.mu.Lock()
	if old, ok := t.timers[id]; ok {
		old.timer.Stop()
	}
	t.timers[id] = graceTimer{timer: timer, scheduledAt: at}
	t.mu.Unlock()
}

// graceCheck re-reads the reminder; any answer given meanwhile wins
func (t *Trigger) graceCheck(id int64, scheduledAt time.Time) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic in grace check", zap.String("recover", fmt.Sprint(r)))
		}
	}()

	t.mu.Lock()
	if gt, ok := t.timers[id]; ok && gt.scheduledAt.Equal(scheduledAt) {
		delete(t.timers, id)
	}
	t.mu.Unlock()

	now := t.clock.Now()
	if !t.registry.MarkMissedIfStale(id, scheduledAt, now) {
		return
	}
	rem, _ := t.registry.Get(id)
	t.logger.Info("No response within grace period, dose missed",
		zap.Int64("reminder_id", id),
		zap.String("medicine", rem.MedicineName),
	)
	t.recordOutcome(rem, reminder.StatusMissed, now, metrics.SourceGrace)
}

func (t *Trigger) cancelGrace(id int64) {
	t.mu.Lock()
	if gt, ok := t.timers[id]; ok {
		gt.timer.Stop()
		delete(t.timers, id)
	}
	t.mu.Unlock()
}

// PendingChecks returns the number of armed grace-period checks
func (t *Trigger) PendingChecks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Respond applies a user answer. It returns false when the reminder is
// unknown or already resolved.
func (t *Trigger) Respond(id int64, resp Response) bool {
	rem, ok := t.registry.Get(id)
	if !ok {
		return false
	}
	now := t.clock.Now()

	switch resp.Action {
	case ActionTaken:
		if !t.registry.MarkTaken(id) {
			return false
		}
		t.cancelGrace(id)
		t.recordOutcome(rem, reminder.StatusTaken, now, metrics.SourceUser)

	case ActionMissed:
		if !t.registry.MarkMissed(id) {
			return false
		}
		t.cancelGrace(id)
		t.recordOutcome(rem, reminder.StatusMissed, now, metrics.SourceUser)

	case ActionSnooze:
		minutes := resp.Minutes
		if minutes <= 0 {
			minutes = int(t.config().DefaultSnooze / time.Minute)
		}
		// hold the new slot until it is reached, the window would
		// otherwise open tolerance ahead of the snoozed time
		snoozed := rem
		snoozed.ScheduledTime = rem.ScheduledTime.Add(time.Duration(minutes) * time.Minute)
		key := detector.Key(snoozed)
		held := t.detector.Notified(key)
		t.detector.Suppress(key)
		if !t.registry.Snooze(id, minutes) {
			if !held {
				t.detector.Forget(key)
			}
			return false
		}
		t.cancelGrace(id)
		t.releaseLater(key, snoozed.ScheduledTime.Sub(now))
		t.metrics.RecordTransition("SNOOZED", metrics.SourceUser)
		t.logger.Info("Reminder snoozed",
			zap.Int64("reminder_id", id),
			zap.Int("minutes", minutes),
		)

	default:
		return false
	}
	return true
}

// releaseLater lets a snoozed dose's key alarm again after d
func (t *Trigger) releaseLater(key string, d time.Duration) {
	if d <= 0 {
		t.detector.Forget(key)
		return
	}
	timer := t.clock.AfterFunc(d, func() {
		t.detector.Forget(key)
		t.mu.Lock()
		delete(t.releases, key)
		t.mu.Unlock()
	})

	t.mu.Lock()
	if old, ok := t.releases[key]; ok {
		old.Stop()
	}
	t.releases[key] = timer
	t.mu.Unlock()
}

func (t *Trigger) recordOutcome(r reminder.Reminder, status reminder.Status, at time.Time, source string) {
	t.metrics.RecordTransition(string(status), source)

	if t.recorder != nil {
		if err := t.recorder.RecordOutcome(r, status, at); err != nil {
			t.logger.Error("Failed to record dose outcome",
				zap.Int64("reminder_id", r.ID),
				zap.String("status", string(status)),
				zap.Error(err),
			)
			return
		}
	}

	t.publish(events.KindHistory, r.ID)
	if status == reminder.StatusTaken && r.MedicineID > 0 {
		t.publish(events.KindInventory, r.MedicineID)
	}
}

func (t *Trigger) publish(kind events.Kind, subject int64) {
	if t.publisher != nil {
		t.publisher.Publish(kind, subject)
	}
}
