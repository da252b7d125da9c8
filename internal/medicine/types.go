// Package medicine holds medicines, their dose schedules and the YAML plan
// format used to import them.
package medicine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a named slot resolved through Slots
type TimeOfDay string

const (
	Morning TimeOfDay = "MORNING"
	Noon    TimeOfDay = "NOON"
	Evening TimeOfDay = "EVENING"
	Night   TimeOfDay = "NIGHT"
)

func (t TimeOfDay) Valid() bool {
	switch t {
	case Morning, Noon, Evening, Night:
		return true
	}
	return false
}

// MealTiming is informational and travels into the reminder notes
type MealTiming string

const (
	BeforeMeal MealTiming = "BEFORE_MEAL"
	AfterMeal  MealTiming = "AFTER_MEAL"
	WithMeal   MealTiming = "WITH_MEAL"
	AnyTime    MealTiming = "ANY"
)

func (m MealTiming) Valid() bool {
	switch m {
	case BeforeMeal, AfterMeal, WithMeal, AnyTime, "":
		return true
	}
	return false
}

// Slots maps each TimeOfDay to a clock time "HH:MM"
type Slots struct {
	Morning string `mapstructure:"morning" json:"morning"`
	Noon    string `mapstructure:"noon" json:"noon"`
	Evening string `mapstructure:"evening" json:"evening"`
	Night   string `mapstructure:"night" json:"night"`
}

// DefaultSlots returns 08:00, 12:00, 18:00 and 21:00
func DefaultSlots() Slots {
	return Slots{Morning: "08:00", Noon: "12:00", Evening: "18:00", Night: "21:00"}
}

// For returns the clock time configured for t
func (s Slots) For(t TimeOfDay) (string, bool) {
	var v string
	switch t {
	case Morning:
		v = s.Morning
	case Noon:
		v = s.Noon
	case Evening:
		v = s.Evening
	case Night:
		v = s.Night
	}
	return v, v != ""
}

// Medicine is a drug the user takes on a schedule
type Medicine struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"uniqueIndex;not null"`
	Dosage            string    `json:"dosage"` // e.g. "10mg", "1 tablet"
	Form              string    `json:"form,omitempty"`
	CurrentSupply     int       `json:"current_supply"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Enabled           bool      `json:"enabled"`
	Notes             string    `json:"notes,omitempty"`
	Schedules         []Entry   `json:"schedules" gorm:"foreignKey:MedicineID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LowStock reports whether supply is at or under the threshold. A zero
// threshold disables the warning.
func (m *Medicine) LowStock() bool {
	return m.LowStockThreshold > 0 && m.CurrentSupply <= m.LowStockThreshold
}

// Entry is one recurring dose of a medicine. Cron wins over At, and At wins
// over TimeOfDay.
type Entry struct {
	ID         int64      `json:"id" gorm:"primaryKey"`
	MedicineID int64      `json:"medicine_id" gorm:"index"`
	TimeOfDay  TimeOfDay  `json:"time_of_day,omitempty"`
	At         string     `json:"at,omitempty"`   // "HH:MM"
	Cron       string     `json:"cron,omitempty"` // standard 5-field spec
	MealTiming MealTiming `json:"meal_timing,omitempty"`
	Dose       string     `json:"dose,omitempty"` // overrides Medicine.Dosage
}

// TableName keeps the table name readable
func (Entry) TableName() string {
	return "schedule_entries"
}

// ParseClock parses "HH:MM" into hour and minute
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
