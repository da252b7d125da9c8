// Package reminder holds the live, in-memory set of dose reminders.
package reminder

import (
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/events"
	"github.com/gmsas95/medremind/internal/security"
	"go.uber.org/zap"
)

// Repository persists reminders. Implementations are synchronous and may fail.
type Repository interface {
	LoadReminders() ([]Reminder, error)
	SaveReminder(r *Reminder) error
	DeleteReminder(id int64) error
}

// IDSequence is implemented by repositories that remember ids of deleted
// reminders, so a reloaded registry never reissues them
type IDSequence interface {
	LastReminderID() (int64, error)
}

// Option configures a Registry
type Option func(*Registry)

// WithRepository writes every mutation through to repo
func WithRepository(repo Repository) Option {
	return func(r *Registry) { r.repo = repo }
}

// WithPublisher announces reminder changes
func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithLogger sets the registry logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// Registry is the single source of truth for live reminders. Every method
// holds mu for its whole critical section, so snapshots are never partial.
type Registry struct {
	mu        sync.Mutex
	items     map[int64]*Reminder
	nextID    int64
	repo      Repository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewRegistry creates a registry and, when a repository is configured,
// loads the persisted reminders into it.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		items: make(map[int64]*Reminder),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	if r.repo != nil {
		loaded, err := r.repo.LoadReminders()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "load reminders")
		}
		for i := range loaded {
			rem := loaded[i]
			if rem.ID <= 0 {
				r.logger.Warn("Skipping persisted reminder without id", zap.String("medicine", rem.MedicineName))
				continue
			}
			r.items[rem.ID] = &rem
			if rem.ID > r.nextID {
				r.nextID = rem.ID
			}
		}
		if seq, ok := r.repo.(IDSequence); ok {
			last, err := seq.LastReminderID()
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrStore.Code, "load reminder id mark")
			}
			if last > r.nextID {
				r.nextID = last
			}
		}
		r.logger.Info("Reminders loaded", zap.Int("count", len(r.items)))
	}

	return r, nil
}

func validate(rem Reminder) error {
	if strings.TrimSpace(rem.MedicineName) == "" {
		return apperrors.Invalid("medicine name is required")
	}
	if rem.ScheduledTime.IsZero() {
		return apperrors.Invalid("scheduled time is required")
	}
	for _, err := range []error{
		security.ValidateField("medicine name", rem.MedicineName),
		security.ValidateField("dose", rem.Dose),
		security.ValidateNotes(rem.Notes),
	} {
		if err != nil {
			return apperrors.Invalid(err.Error())
		}
	}
	return nil
}

// Add assigns a fresh id, forces PENDING and stores the reminder.
// Invalid input leaves the registry untouched.
func (r *Registry) Add(rem Reminder) (Reminder, error) {
	if err := validate(rem); err != nil {
		return Reminder{}, err
	}

	r.mu.Lock()
	rem.ID = r.nextID + 1
	rem.MedicineName = strings.TrimSpace(rem.MedicineName)
	rem.Status = StatusPending
	if err := r.persistLocked(&rem); err != nil {
		r.mu.Unlock()
		return Reminder{}, err
	}
	r.nextID = rem.ID
	stored := rem
	r.items[rem.ID] = &stored
	r.mu.Unlock()

	r.publish(rem.ID)
	return rem, nil
}

// Delete removes a reminder; deleting an unknown id is not an error
func (r *Registry) Delete(id int64) bool {
	r.mu.Lock()
	if _, ok := r.items[id]; !ok {
		r.mu.Unlock()
		return false
	}
	if r.repo != nil {
		if err := r.repo.DeleteReminder(id); err != nil {
			r.mu.Unlock()
			r.logger.Error("Failed to delete reminder", zap.Int64("reminder_id", id), zap.Error(err))
			return false
		}
	}
	delete(r.items, id)
	r.mu.Unlock()

	r.publish(id)
	return true
}

// Update replaces an existing reminder wholesale
func (r *Registry) Update(rem Reminder) bool {
	if rem.ID <= 0 || validate(rem) != nil || !rem.Status.Valid() || rem.Status == StatusSkipped {
		return false
	}

	r.mu.Lock()
	ok := r.replaceLocked(rem)
	r.mu.Unlock()

	if ok {
		r.publish(rem.ID)
	}
	return ok
}

// replaceLocked persists then swaps in rem. Caller holds mu.
func (r *Registry) replaceLocked(rem Reminder) bool {
	if _, exists := r.items[rem.ID]; !exists {
		return false
	}
	if err := r.persistLocked(&rem); err != nil {
		return false
	}
	stored := rem
	r.items[rem.ID] = &stored
	return true
}

func (r *Registry) persistLocked(rem *Reminder) error {
	if r.repo == nil {
		return nil
	}
	if err := r.repo.SaveReminder(rem); err != nil {
		r.logger.Error("Failed to persist reminder",
			zap.Int64("reminder_id", rem.ID),
			zap.String("medicine", rem.MedicineName),
			zap.Error(err),
		)
		return apperrors.Wrap(err, apperrors.ErrReminderPersist.Code, "save reminder")
	}
	return nil
}

// All returns a snapshot of every reminder ordered by id
func (r *Registry) All() []Reminder {
	return r.collect(func(*Reminder) bool { return true }, byID)
}

// Get looks up a reminder by id
func (r *Registry) Get(id int64) (Reminder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.items[id]
	if !ok {
		return Reminder{}, false
	}
	return *rem, true
}

// Pending returns every PENDING reminder
func (r *Registry) Pending() []Reminder {
	return r.collect(func(rem *Reminder) bool { return rem.Status == StatusPending }, byID)
}

// Due returns PENDING reminders whose scheduled time is not after now
func (r *Registry) Due(now time.Time) []Reminder {
	return r.collect(func(rem *Reminder) bool {
		return rem.Status == StatusPending && !rem.ScheduledTime.After(now)
	}, nil)
}

// DueSorted is Due ordered by scheduled time
func (r *Registry) DueSorted(now time.Time) []Reminder {
	return r.collect(func(rem *Reminder) bool {
		return rem.Status == StatusPending && !rem.ScheduledTime.After(now)
	}, byTime)
}

// PendingCount returns the number of PENDING reminders
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rem := range r.items {
		if rem.Status == StatusPending {
			n++
		}
	}
	return n
}

// SortedByTime returns every reminder ordered by scheduled time
func (r *Registry) SortedByTime() []Reminder {
	return r.collect(func(*Reminder) bool { return true }, byTime)
}

// Find returns the reminder for a medicine at an exact time, if any
func (r *Registry) Find(medicineName string, at time.Time) (Reminder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rem := range r.items {
		if rem.MedicineName == medicineName && rem.ScheduledTime.Equal(at) {
			return *rem, true
		}
	}
	return Reminder{}, false
}

// Len returns the number of reminders
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// MarkTaken moves a PENDING reminder to TAKEN
func (r *Registry) MarkTaken(id int64) bool {
	return r.transition(id, func(rem *Reminder) bool {
		rem.Status = StatusTaken
		return true
	})
}

// MarkMissed moves a PENDING reminder to MISSED
func (r *Registry) MarkMissed(id int64) bool {
	return r.transition(id, func(rem *Reminder) bool {
		rem.Status = StatusMissed
		return true
	})
}

// Snooze pushes a PENDING reminder back by minutes and keeps it PENDING
func (r *Registry) Snooze(id int64, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	return r.transition(id, func(rem *Reminder) bool {
		rem.ScheduledTime = rem.ScheduledTime.Add(time.Duration(minutes) * time.Minute)
		rem.SnoozeCount++
		return true
	})
}

// MarkMissedIfStale escalates to MISSED only if the reminder is still
// PENDING, still scheduled at scheduledAt, and that time is not after now.
// Any other state means the reminder was resolved meanwhile.
func (r *Registry) MarkMissedIfStale(id int64, scheduledAt, now time.Time) bool {
	return r.transition(id, func(rem *Reminder) bool {
		if !rem.ScheduledTime.Equal(scheduledAt) || rem.ScheduledTime.After(now) {
			return false
		}
		rem.Status = StatusMissed
		return true
	})
}

// transition applies fn to a copy of a PENDING reminder and stores it
// through the same path as Update.
func (r *Registry) transition(id int64, fn func(*Reminder) bool) bool {
	r.mu.Lock()
	cur, ok := r.items[id]
	if !ok || cur.Status != StatusPending {
		r.mu.Unlock()
		return false
	}
	next := *cur
	if !fn(&next) {
		r.mu.Unlock()
		return false
	}
	changed := r.replaceLocked(next)
	r.mu.Unlock()

	if changed {
		r.publish(id)
	}
	return changed
}

func (r *Registry) collect(keep func(*Reminder) bool, less func(a, b Reminder) bool) []Reminder {
	r.mu.Lock()
	out := make([]Reminder, 0, len(r.items))
	for _, rem := range r.items {
		if keep(rem) {
			out = append(out, *rem)
		}
	}
	r.mu.Unlock()

	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func (r *Registry) publish(id int64) {
	if r.publisher != nil {
		r.publisher.Publish(events.KindReminder, id)
	}
}

func byID(a, b Reminder) bool { return a.ID < b.ID }

func byTime(a, b Reminder) bool {
	if a.ScheduledTime.Equal(b.ScheduledTime) {
		return a.ID < b.ID
	}
	return a.ScheduledTime.Before(b.ScheduledTime)
}
