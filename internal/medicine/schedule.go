package medicine

import (
	"fmt"
	"sort"
	"time"

	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/robfig/cron/v3"
)

// Spec returns the entry as a standard cron expression
func (e Entry) Spec(slots Slots) (string, error) {
	if e.Cron != "" {
		if _, err := cron.ParseStandard(e.Cron); err != nil {
			return "", fmt.Errorf("invalid cron %q: %w", e.Cron, err)
		}
		return e.Cron, nil
	}

	at := e.At
	if at == "" {
		if !e.TimeOfDay.Valid() {
			return "", fmt.Errorf("entry needs cron, at or a valid time_of_day, got %q", e.TimeOfDay)
		}
		var ok bool
		if at, ok = slots.For(e.TimeOfDay); !ok {
			return "", fmt.Errorf("no time configured for slot %s", e.TimeOfDay)
		}
	}

	hour, minute, err := ParseClock(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Dose is one concrete occurrence of an entry
type Dose struct {
	MedicineID   int64
	MedicineName string
	Amount       string
	MealTiming   MealTiming
	At           time.Time
}

// Reminder converts the dose into a registry reminder
func (d Dose) Reminder() reminder.Reminder {
	r := reminder.Reminder{
		MedicineID:    d.MedicineID,
		MedicineName:  d.MedicineName,
		Dose:          d.Amount,
		ScheduledTime: d.At,
	}
	if d.MealTiming != "" && d.MealTiming != AnyTime {
		r.Notes = string(d.MealTiming)
	}
	return r
}

// Occurrences lists the doses of m falling on day, in day's location,
// ordered by time. Disabled medicines have none.
func Occurrences(m Medicine, day time.Time, slots Slots) ([]Dose, error) {
	if !m.Enabled {
		return nil, nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var doses []Dose
	for _, e := range m.Schedules {
		spec, err := e.Spec(slots)
		if err != nil {
			return nil, fmt.Errorf("medicine %s: %w", m.Name, err)
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("medicine %s: %w", m.Name, err)
		}

		amount := e.Dose
		if amount == "" {
			amount = m.Dosage
		}

		// Next is strictly after its argument
		for t := sched.Next(dayStart.Add(-time.Second)); !t.IsZero() && t.Before(dayEnd); t = sched.Next(t) {
			doses = append(doses, Dose{
				MedicineID:   m.ID,
				MedicineName: m.Name,
				Amount:       amount,
				MealTiming:   e.MealTiming,
				At:           t,
			})
		}
	}

	sort.SliceStable(doses, func(i, j int) bool { return doses[i].At.Before(doses[j].At) })
	return doses, nil
}
