package reminder

import (
	"time"
)

// Status is the lifecycle state of a reminder or a dose history row
type Status string

const (
	StatusPending Status = "PENDING"
	StatusTaken   Status = "TAKEN"
	StatusMissed  Status = "MISSED"
	StatusSkipped Status = "SKIPPED" // history only
)

// IsTerminal reports whether no further transition is expected
func (s Status) IsTerminal() bool {
	return s == StatusTaken || s == StatusMissed || s == StatusSkipped
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// Reminder is a single scheduled dose awaiting a response
type Reminder struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	MedicineID    int64     `json:"medicine_id,omitempty" gorm:"index"`
	MedicineName  string    `json:"medicine_name" gorm:"index"`
	Dose          string    `json:"dose,omitempty"`
	ScheduledTime time.Time `json:"scheduled_time" gorm:"index"`
	Status        Status    `json:"status" gorm:"index"`
	SnoozeCount   int       `json:"snooze_count,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// DoseHistory is the persisted record of an actual or missed intake
type DoseHistory struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	ReminderID    int64      `json:"reminder_id,omitempty" gorm:"index"`
	MedicineID    int64      `json:"medicine_id" gorm:"index"`
	MedicineName  string     `json:"medicine_name"`
	ScheduledTime time.Time  `json:"scheduled_time" gorm:"index"`
	TakenTime     *time.Time `json:"taken_time,omitempty"`
	Status        Status     `json:"status" gorm:"index"`
	Notes         string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLate reports whether a taken dose was taken more than d after schedule
func (h *DoseHistory) IsLate(d time.Duration) bool {
	if h.Status != StatusTaken || h.TakenTime == nil {
		return false
	}
	return h.TakenTime.Sub(h.ScheduledTime) > d
}
