// Package app wires the medremind components together
package app

import (
	"io"
	"os"
	"sync"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/alarm"
	"github.com/gmsas95/medremind/internal/api"
	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/cron"
	"github.com/gmsas95/medremind/internal/detector"
	"github.com/gmsas95/medremind/internal/events"
	"github.com/gmsas95/medremind/internal/medicine"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/notify"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type options struct {
	clock      clockwork.Clock
	version    string
	configPath string
	in         io.Reader
	out        io.Writer
	tickers    alarm.TickerFactory
	store      *store.Store
}

// Option customises New
type Option func(*options)

// WithClock replaces the real clock
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithVersion sets the version reported by /healthz
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithConfigPath enables hot reload of the given config file during Run
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithConsoleIO replaces stdin/stdout for the console presenter
func WithConsoleIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

// WithTickers replaces the poll ticker factory
func WithTickers(f alarm.TickerFactory) Option {
	return func(o *options) { o.tickers = f }
}

// WithStore uses an already opened store instead of opening cfg.Storage
func WithStore(st *store.Store) Option {
	return func(o *options) { o.store = st }
}

// App holds every long-lived component
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      *store.Store
	Bus        *events.Bus
	Metrics    *metrics.Metrics
	Registry   *reminder.Registry
	Detector   *detector.Detector
	Trigger    *alarm.Trigger
	Planner    *cron.Planner
	Calculator *adherence.Calculator
	Presenters *notify.Fanout
	Console    *notify.Console
	Telegram   *notify.Telegram
	Server     *api.Server
	Version    string

	clock      clockwork.Clock
	configPath string
	in         io.Reader

	closeOnce sync.Once
}

// New opens the store and builds the components. Nothing runs until Run.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{
		clock: clockwork.NewRealClock(),
		in:    os.Stdin,
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	st := o.store
	if st == nil {
		st, err = store.New(cfg.Storage, loc, logger)
		if err != nil {
			return nil, err
		}
	}

	bus := events.NewBus()
	reg, err := reminder.NewRegistry(
		reminder.WithRepository(st),
		reminder.WithPublisher(bus),
		reminder.WithLogger(logger),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Bus:        bus,
		Metrics:    metrics.New(),
		Registry:   reg,
		Version:    o.version,
		clock:      o.clock,
		configPath: o.configPath,
		in:         o.in,
	}

	a.Detector = detector.New(reg, cfg.Scheduler.Tolerance, logger)

	a.Presenters = notify.NewFanout(logger)
	if cfg.Notify.Console {
		a.Console = notify.NewConsole(o.out, logger)
		a.Presenters.Add(a.Console)
	}

	a.Trigger = alarm.New(triggerConfig(cfg), alarm.Deps{
		Registry:  reg,
		Detector:  a.Detector,
		Presenter: a.Presenters,
		Recorder:  st,
		Publisher: bus,
		Metrics:   a.Metrics,
		Clock:     o.clock,
		Logger:    logger,
		Tickers:   o.tickers,
	})

	a.Planner = cron.NewPlanner(cron.Config{
		Slots:    slots(cfg.Slots),
		Location: loc,
	}, st, reg, a.Metrics, o.clock, logger)

	a.Calculator = adherence.NewCalculator(st, o.clock, logger, adherence.WithLocation(loc))

	if cfg.API.Enabled {
		a.Server = api.New(cfg.API, api.Deps{
			Registry:   reg,
			Trigger:    a.Trigger,
			Calculator: a.Calculator,
			Metrics:    a.Metrics,
			Clock:      o.clock,
			Logger:     logger,
			Version:    o.version,
		})
	}

	return a, nil
}

func triggerConfig(cfg *config.Config) alarm.Config {
	return alarm.Config{
		PollInterval:  cfg.Scheduler.PollInterval,
		GracePeriod:   cfg.Scheduler.GracePeriod,
		DefaultSnooze: cfg.Scheduler.DefaultSnooze,
		QueueSize:     cfg.Scheduler.QueueSize,
	}
}

func slots(s config.SlotsConfig) medicine.Slots {
	return medicine.Slots{
		Morning: s.Morning,
		Noon:    s.Noon,
		Evening: s.Evening,
		Night:   s.Night,
	}
}

// Close releases the store. Run calls it on the way out.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.Store.Close()
	})
	return err
}
