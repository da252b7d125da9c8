package medicine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntrySpec(t *testing.T) {
	slots := DefaultSlots()

	tests := []struct {
		name    string
		entry   Entry
		want    string
		wantErr bool
	}{
		{"slot", Entry{TimeOfDay: Morning}, "0 8 * * *", false},
		{"night slot", Entry{TimeOfDay: Night}, "0 21 * * *", false},
		{"explicit time wins", Entry{TimeOfDay: Morning, At: "07:45"}, "45 7 * * *", false},
		{"cron wins", Entry{At: "07:45", Cron: "30 9 * * 1-5"}, "30 9 * * 1-5", false},
		{"bad cron", Entry{Cron: "every day"}, "", true},
		{"bad time", Entry{At: "25:00"}, "", true},
		{"nothing", Entry{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.entry.Spec(slots)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntrySpec_MissingSlot(t *testing.T) {
	_, err := Entry{TimeOfDay: Noon}.Spec(Slots{Morning: "08:00"})
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock(" 09:05 ")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "9", "9:60", "-1:00", "ab:cd"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestOccurrences(t *testing.T) {
	day := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	m := Medicine{
		ID:      7,
		Name:    "Aspirin",
		Dosage:  "100mg",
		Enabled: true,
		Schedules: []Entry{
			{TimeOfDay: Evening, MealTiming: AfterMeal},
			{At: "08:00", Dose: "200mg"},
			{Cron: "0 0,12 * * *"},
		},
	}

	doses, err := Occurrences(m, day, DefaultSlots())
	require.NoError(t, err)
	require.Len(t, doses, 4)

	want := []int{0, 8, 12, 18}
	for i, d := range doses {
		assert.Equal(t, want[i], d.At.Hour())
		assert.Equal(t, 15, d.At.Day())
		assert.Equal(t, int64(7), d.MedicineID)
	}
	assert.Equal(t, "200mg", doses[1].Amount)
	assert.Equal(t, "100mg", doses[0].Amount)

	r := doses[3].Reminder()
	assert.Equal(t, "Aspirin", r.MedicineName)
	assert.Equal(t, "AFTER_MEAL", r.Notes)
	assert.Equal(t, doses[3].At, r.ScheduledTime)
}

func TestOccurrences_WeekdayCron(t *testing.T) {
	m := Medicine{Name: "Vitamin D", Enabled: true, Schedules: []Entry{{Cron: "0 9 * * 1"}}}

	monday := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	doses, err := Occurrences(m, monday, DefaultSlots())
	require.NoError(t, err)
	assert.Len(t, doses, 1)

	doses, err = Occurrences(m, monday.AddDate(0, 0, 1), DefaultSlots())
	require.NoError(t, err)
	assert.Empty(t, doses)
}

func TestOccurrences_Disabled(t *testing.T) {
	m := Medicine{Name: "Old", Enabled: false, Schedules: []Entry{{TimeOfDay: Morning}}}
	doses, err := Occurrences(m, time.Now(), DefaultSlots())
	require.NoError(t, err)
	assert.Nil(t, doses)
}

func TestLowStock(t *testing.T) {
	m := &Medicine{CurrentSupply: 5, LowStockThreshold: 5}
	assert.True(t, m.LowStock())

	m.CurrentSupply = 6
	assert.False(t, m.LowStock())

	m.LowStockThreshold = 0
	m.CurrentSupply = 0
	assert.False(t, m.LowStock())
}

const samplePlan = `
medicines:
  - name: Aspirin
    dosage: 100mg
    supply: 30
    low_stock: 5
    schedule:
      - slot: morning
        meal: after_meal
      - at: "21:30"
  - name: Metformin
    dosage: 500mg
    disabled: true
    schedule:
      - cron: "0 7 * * *"
`

func TestLoadPlan(t *testing.T) {
	meds, err := LoadPlan(strings.NewReader(samplePlan))
	require.NoError(t, err)
	require.Len(t, meds, 2)

	aspirin := meds[0]
	assert.Equal(t, "Aspirin", aspirin.Name)
	assert.Equal(t, 30, aspirin.CurrentSupply)
	assert.Equal(t, 5, aspirin.LowStockThreshold)
	assert.True(t, aspirin.Enabled)
	require.Len(t, aspirin.Schedules, 2)
	assert.Equal(t, Morning, aspirin.Schedules[0].TimeOfDay)
	assert.Equal(t, AfterMeal, aspirin.Schedules[0].MealTiming)
	assert.Equal(t, "21:30", aspirin.Schedules[1].At)

	assert.False(t, meds[1].Enabled)
}

func TestLoadPlan_Errors(t *testing.T) {
	tests := map[string]string{
		"missing name": "medicines:\n  - dosage: 1mg\n",
		"duplicate":    "medicines:\n  - name: A\n  - name: a\n",
		"bad slot":     "medicines:\n  - name: A\n    schedule:\n      - slot: brunch\n",
		"bad meal":     "medicines:\n  - name: A\n    schedule:\n      - slot: noon\n        meal: snack\n",
		"unknown key":  "medicines:\n  - name: A\n    colour: red\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPlan(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlan_Empty(t *testing.T) {
	meds, err := LoadPlan(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestLoadPlanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0644))

	meds, err := LoadPlanFile(path)
	require.NoError(t, err)
	assert.Len(t, meds, 2)

	_, err = LoadPlanFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
