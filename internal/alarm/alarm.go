package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/gmsas95/medremind/internal/reminder"
)

// Action is the user's answer to an alarm
type Action string

const (
	ActionTaken  Action = "taken"
	ActionMissed Action = "missed"
	ActionSnooze Action = "snooze"
)

// Response carries an Action and, for snooze, the delay in minutes.
// A non-positive snooze falls back to the configured default.
type Response struct {
	Action  Action
	Minutes int
}

// Alarm is what a presenter shows. Only the first response is applied;
// later ones (another presenter, a double click) are ignored.
type Alarm struct {
	Reminder reminder.Reminder
	FiredAt  time.Time

	respond func(Response) bool
	once    *sync.Once
}

// NewAlarm wraps respond so it runs at most once
func NewAlarm(r reminder.Reminder, firedAt time.Time, respond func(Response) bool) Alarm {
	return Alarm{
		Reminder: r,
		FiredAt:  firedAt,
		respond:  respond,
		once:     &sync.Once{},
	}
}

// Respond applies resp if no response was applied yet
func (a Alarm) Respond(resp Response) bool {
	if a.respond == nil || a.once == nil {
		return false
	}
	applied := false
	a.once.Do(func() {
		applied = a.respond(resp)
	})
	return applied
}

func (a Alarm) Taken() bool { return a.Respond(Response{Action: ActionTaken}) }

func (a Alarm) Missed() bool { return a.Respond(Response{Action: ActionMissed}) }

func (a Alarm) Snooze(minutes int) bool {
	return a.Respond(Response{Action: ActionSnooze, Minutes: minutes})
}

// Presenter surfaces an alarm to the user. Calls are fire-and-forget from
// the trigger's point of view: the answer comes back through the Alarm.
type Presenter interface {
	PresentAlarm(ctx context.Context, a Alarm) error
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(ctx context.Context, a Alarm) error

func (f PresenterFunc) PresentAlarm(ctx context.Context, a Alarm) error {
	return f(ctx, a)
}

// HistoryRecorder persists the dose history side of reminder transitions
type HistoryRecorder interface {
	RecordDue(r reminder.Reminder) error
	RecordOutcome(r reminder.Reminder, status reminder.Status, at time.Time) error
}
