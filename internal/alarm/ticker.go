package alarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Ticker invokes a callback at a fixed interval until stopped. UI toolkits
// and tests supply their own implementations.
type Ticker interface {
	Start(fn func()) error
	Stop()
}

// TickerFactory builds a fresh ticker for every Trigger.Start
type TickerFactory func(interval time.Duration) (Ticker, error)

// GocronTicker drives the poll from a gocron scheduler. Runs never overlap:
// a tick that is still busy causes the next one to be rescheduled.
type GocronTicker struct {
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// NewGocronTicker creates a ticker on the given clock
func NewGocronTicker(interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *GocronTicker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GocronTicker{interval: interval, clock: clock, logger: logger}
}

// GocronFactory returns a TickerFactory producing GocronTickers
func GocronFactory(clock clockwork.Clock, logger *zap.Logger) TickerFactory {
	return func(interval time.Duration) (Ticker, error) {
		return NewGocronTicker(interval, clock, logger), nil
	}
}

func (t *GocronTicker) Start(fn func()) error {
	if t.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", t.interval)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scheduler != nil {
		return fmt.Errorf("ticker already started")
	}

	s, err := gocron.NewScheduler(gocron.WithClock(t.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(fn),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("reminder-poll"),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to register poll job: %w", err)
	}

	s.Start()
	t.scheduler = s
	return nil
}

func (t *GocronTicker) Stop() {
	t.mu.Lock()
	s := t.scheduler
	t.scheduler = nil
	t.mu.Unlock()

	if s == nil {
		return
	}
	if err := s.Shutdown(); err != nil {
		t.logger.Warn("Poll scheduler shutdown failed", zap.Error(err))
	}
}

// ClockTicker is a plain loop over a clockwork ticker. With a fake clock the
// test advances time and the loop fires deterministically.
type ClockTicker struct {
	interval time.Duration
	clock    clockwork.Clock

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewClockTicker creates a loop ticker on clock
func NewClockTicker(interval time.Duration, clock clockwork.Clock) *ClockTicker {
	return &ClockTicker{interval: interval, clock: clock}
}

// ClockFactory returns a TickerFactory producing ClockTickers
func ClockFactory(clock clockwork.Clock) TickerFactory {
	return func(interval time.Duration) (Ticker, error) {
		return NewClockTicker(interval, clock), nil
	}
}

func (t *ClockTicker) Start(fn func()) error {
	if t.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", t.interval)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return fmt.Errorf("ticker already started")
	}
	t.stop = make(chan struct{})
	ticker := t.clock.NewTicker(t.interval)

	t.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer t.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				fn()
			}
		}
	}(t.stop)
	return nil
}

func (t *ClockTicker) Stop() {
	t.mu.Lock()
	if t.stop == nil {
		t.mu.Unlock()
		return
	}
	close(t.stop)
	t.stop = nil
	t.mu.Unlock()

	t.wg.Wait()
}
