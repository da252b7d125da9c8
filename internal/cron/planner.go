// Package cron materialises each day's medicine schedule into reminders
package cron

import (
	"fmt"
	"sync"
	"time"

	"github.com/gmsas95/medremind/internal/medicine"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/jonboulle/clockwork"
	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DailySpec fires at midnight in the planner's location
const DailySpec = "0 0 * * *"

// MedicineSource lists medicines with their schedule entries loaded
type MedicineSource interface {
	ListMedicines() ([]medicine.Medicine, error)
}

// Config holds planner configuration
type Config struct {
	Slots    medicine.Slots
	Location *time.Location
	Lookback time.Duration // doses older than now-Lookback are not planned
}

// Planner adds the day's doses to the registry at midnight and on start
type Planner struct {
	config   Config
	source   MedicineSource
	registry *reminder.Registry
	metrics  *metrics.Metrics
	clock    clockwork.Clock
	logger   *zap.Logger

	mu      sync.RWMutex
	cron    *robfig.Cron
	running bool
}

// NewPlanner creates a new planner
func NewPlanner(config Config, source MedicineSource, registry *reminder.Registry, m *metrics.Metrics, clock clockwork.Clock, logger *zap.Logger) *Planner {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Slots == (medicine.Slots{}) {
		config.Slots = medicine.DefaultSlots()
	}
	if config.Lookback <= 0 {
		config.Lookback = 2 * time.Minute
	}
	if m == nil {
		m = metrics.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Planner{
		config:   config,
		source:   source,
		registry: registry,
		metrics:  m,
		clock:    clock,
		logger:   logger,
	}
}

// Start plans today and schedules the midnight run
func (p *Planner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("planner already running")
	}

	c := robfig.New(
		robfig.WithLocation(p.config.Location),
		robfig.WithLogger(zapCronLogger{p.logger}),
		robfig.WithChain(robfig.Recover(zapCronLogger{p.logger})),
	)
	if _, err := c.AddFunc(DailySpec, p.planToday); err != nil {
		return fmt.Errorf("failed to schedule daily plan: %w", err)
	}
	c.Start()

	p.cron = c
	p.running = true
	p.logger.Info("Daily planner started", zap.String("location", p.config.Location.String()))

	// Plan immediately on start
	p.planToday()
	return nil
}

// Stop stops the planner and waits for a running plan to finish
func (p *Planner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	<-c.Stop().Done()
	p.logger.Info("Daily planner stopped")
}

// IsRunning returns whether the planner is active
func (p *Planner) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// NextRun returns when the midnight job fires next, zero when stopped
func (p *Planner) NextRun() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cron == nil {
		return time.Time{}
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (p *Planner) planToday() {
	if _, err := p.PlanDay(p.clock.Now()); err != nil {
		p.logger.Error("Failed to plan today's doses", zap.Error(err))
	}
}

// PlanDay adds every dose of day that is not already in the registry and
// returns how many were added. Doses already behind now are skipped.
func (p *Planner) PlanDay(day time.Time) (int, error) {
	meds, err := p.source.ListMedicines()
	if err != nil {
		return 0, fmt.Errorf("failed to list medicines: %w", err)
	}

	day = day.In(p.config.Location)
	cutoff := p.clock.Now().Add(-p.config.Lookback)

	added := 0
	for _, m := range meds {
		p.metrics.SetSupply(m.Name, m.CurrentSupply)
		if m.LowStock() {
			p.logger.Warn("Medicine running low",
				zap.String("medicine", m.Name),
				zap.Int("supply", m.CurrentSupply),
			)
		}

		doses, err := medicine.Occurrences(m, day, p.config.Slots)
		if err != nil {
			p.logger.Error("Skipping medicine with invalid schedule",
				zap.String("medicine", m.Name),
				zap.Error(err),
			)
			continue
		}

		for _, d := range doses {
			if d.At.Before(cutoff) {
				continue
			}
			if _, exists := p.registry.Find(d.MedicineName, d.At); exists {
				continue
			}
			if _, err := p.registry.Add(d.Reminder()); err != nil {
				p.logger.Error("Failed to add planned reminder",
					zap.String("medicine", d.MedicineName),
					zap.Time("at", d.At),
					zap.Error(err),
				)
				continue
			}
			added++
		}
	}

	p.metrics.RecordPlanned(added)
	p.logger.Info("Planned doses",
		zap.String("day", day.Format("2006-01-02")),
		zap.Int("added", added),
	)
	return added, nil
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
