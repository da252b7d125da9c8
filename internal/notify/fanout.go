package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/gmsas95/medremind/internal/alarm"
	"go.uber.org/zap"
)

// Fanout shows one alarm on every presenter. They share the Alarm, so the
// first answer from any of them is the one applied.
type Fanout struct {
	mu         sync.RWMutex
	presenters []alarm.Presenter
	logger     *zap.Logger
}

func NewFanout(logger *zap.Logger, presenters ...alarm.Presenter) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{presenters: presenters, logger: logger}
}

// Add registers another presenter; later alarms are shown on it too
func (f *Fanout) Add(p alarm.Presenter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presenters = append(f.presenters, p)
}

// PresentAlarm succeeds when at least one presenter accepted the alarm
func (f *Fanout) PresentAlarm(ctx context.Context, a alarm.Alarm) error {
	f.mu.RLock()
	presenters := append([]alarm.Presenter(nil), f.presenters...)
	f.mu.RUnlock()

	if len(presenters) == 0 {
		return errors.New("no presenters configured")
	}

	var errs []error
	for _, p := range presenters {
		if err := p.PresentAlarm(ctx, a); err != nil {
			f.logger.Warn("Presenter failed",
				zap.Int64("reminder_id", a.Reminder.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(presenters) {
		return errors.Join(errs...)
	}
	return nil
}

// Len returns the number of presenters
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.presenters)
}
