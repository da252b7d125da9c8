// Package detector decides which pending reminders should raise an alarm
// at a polling tick and suppresses repeat alarms for the same dose.
package detector

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gmsas95/medremind/internal/reminder"
	"go.uber.org/zap"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = "15:04"

	// DefaultTolerance is how close to the scheduled time an alarm may fire
	DefaultTolerance = 2 * time.Minute
)

// Source is the read side of the registry the detector polls
type Source interface {
	Pending() []reminder.Reminder
	Due(now time.Time) []reminder.Reminder
}

// Detector applies two policies over the registry:
//   - absolute: PENDING and scheduled at or before now (lists, sweeps)
//   - window: scheduled within tolerance of now, once per dedup key (alarms)
type Detector struct {
	source    Source
	logger    *zap.Logger
	mu        sync.Mutex
	tolerance time.Duration
	notified  map[string]struct{}
}

// New creates a detector. A non-positive tolerance falls back to DefaultTolerance.
func New(source Source, tolerance time.Duration, logger *zap.Logger) *Detector {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		source:    source,
		logger:    logger,
		tolerance: tolerance,
		notified:  make(map[string]struct{}),
	}
}

// Key builds the dedup key for a reminder: date_medicine_HH:MM
func Key(r reminder.Reminder) string {
	return fmt.Sprintf("%s_%s_%s",
		r.ScheduledTime.Format(dayLayout),
		r.MedicineName,
		r.ScheduledTime.Format(timeLayout),
	)
}

// Detect returns the reminders that became due within the tolerance window
// and have not been alarmed yet. Each returned reminder is recorded in the
// notified set, so a later call within the same window returns nothing for it.
func (d *Detector) Detect(now time.Time) []reminder.Reminder {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.purgeLocked(now)

	var fresh []reminder.Reminder
	for _, r := range d.source.Pending() {
		if !withinWindow(r.ScheduledTime, now, d.tolerance) {
			continue
		}
		key := Key(r)
		if _, seen := d.notified[key]; seen {
			continue
		}
		d.notified[key] = struct{}{}
		fresh = append(fresh, r)
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].ScheduledTime.Before(fresh[j].ScheduledTime)
	})

	if len(fresh) > 0 {
		d.logger.Debug("Reminders entered alarm window",
			zap.Int("count", len(fresh)),
			zap.Time("now", now),
		)
	}
	return fresh
}

// purgeLocked drops keys for days that can no longer fall inside the window.
// Keys are dated by the scheduled day, so a dose just before midnight keeps
// its suppression until the window has passed.
func (d *Detector) purgeLocked(now time.Time) {
	keep := now.Add(-d.tolerance).Format(dayLayout)
	for key := range d.notified {
		day, _, ok := strings.Cut(key, "_")
		if !ok || day < keep {
			delete(d.notified, key)
		}
	}
}

func withinWindow(scheduled, now time.Time, tolerance time.Duration) bool {
	diff := scheduled.Sub(now)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// Due lists every PENDING reminder at or before now (absolute policy)
func (d *Detector) Due(now time.Time) []reminder.Reminder {
	return d.source.Due(now)
}

// Overdue lists PENDING reminders whose scheduled time is more than grace
// before now. These can never re-enter the alarm window.
func (d *Detector) Overdue(now time.Time, grace time.Duration) []reminder.Reminder {
	cutoff := now.Add(-grace)
	var out []reminder.Reminder
	for _, r := range d.source.Due(now) {
		if r.ScheduledTime.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// Suppress marks key as already alarmed until it is forgotten or purged
func (d *Detector) Suppress(key string) {
	d.mu.Lock()
	d.notified[key] = struct{}{}
	d.mu.Unlock()
}

// Forget releases a key so the dose may alarm again
func (d *Detector) Forget(key string) {
	d.mu.Lock()
	delete(d.notified, key)
	d.mu.Unlock()
}

// Notified reports whether key is currently suppressed
func (d *Detector) Notified(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.notified[key]
	return ok
}

// NotifiedCount returns the size of the notified set
func (d *Detector) NotifiedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notified)
}

// Tolerance returns the current window half-width
func (d *Detector) Tolerance() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tolerance
}

// SetTolerance changes the window; non-positive values are ignored
func (d *Detector) SetTolerance(tolerance time.Duration) {
	if tolerance <= 0 {
		return
	}
	d.mu.Lock()
	d.tolerance = tolerance
	d.mu.Unlock()
}
