package cron

import (
	"errors"
	"testing"
	"time"

	"github.com/gmsas95/medremind/internal/medicine"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	meds []medicine.Medicine
	err  error
}

func (s staticSource) ListMedicines() ([]medicine.Medicine, error) {
	return s.meds, s.err
}

func newTestPlanner(t *testing.T, now time.Time, src MedicineSource) (*Planner, *reminder.Registry) {
	t.Helper()
	reg, err := reminder.NewRegistry()
	require.NoError(t, err)
	p := NewPlanner(Config{Location: time.UTC}, src, reg, metrics.New(), clockwork.NewFakeClockAt(now), nil)
	return p, reg
}

var plan = []medicine.Medicine{
	{
		ID: 1, Name: "Aspirin", Dosage: "100mg", Enabled: true,
		Schedules: []medicine.Entry{{TimeOfDay: medicine.Morning}, {TimeOfDay: medicine.Night}},
	},
	{
		ID: 2, Name: "Metformin", Dosage: "500mg", Enabled: true,
		Schedules: []medicine.Entry{{At: "12:30"}},
	},
	{
		ID: 3, Name: "Paused", Enabled: false,
		Schedules: []medicine.Entry{{TimeOfDay: medicine.Noon}},
	},
}

func TestPlanDay(t *testing.T) {
	midnight := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	p, reg := newTestPlanner(t, midnight, staticSource{meds: plan})

	added, err := p.PlanDay(midnight)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	all := reg.SortedByTime()
	require.Len(t, all, 3)
	assert.Equal(t, "Aspirin", all[0].MedicineName)
	assert.Equal(t, 8, all[0].ScheduledTime.Hour())
	assert.Equal(t, "Metformin", all[1].MedicineName)
	assert.Equal(t, "500mg", all[1].Dose)
	assert.Equal(t, 21, all[2].ScheduledTime.Hour())
	for _, r := range all {
		assert.Equal(t, reminder.StatusPending, r.Status)
	}
}

func TestPlanDay_Idempotent(t *testing.T) {
	midnight := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	p, reg := newTestPlanner(t, midnight, staticSource{meds: plan})

	_, err := p.PlanDay(midnight)
	require.NoError(t, err)
	added, err := p.PlanDay(midnight)
	require.NoError(t, err)

	assert.Equal(t, 0, added)
	assert.Equal(t, 3, reg.Len())
}

func TestPlanDay_SkipsPastDoses(t *testing.T) {
	noon := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	p, reg := newTestPlanner(t, noon, staticSource{meds: plan})

	added, err := p.PlanDay(noon)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	for _, r := range reg.All() {
		assert.False(t, r.ScheduledTime.Before(noon.Add(-2*time.Minute)))
	}
}

func TestPlanDay_InvalidScheduleSkipped(t *testing.T) {
	midnight := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	meds := []medicine.Medicine{
		{Name: "Broken", Enabled: true, Schedules: []medicine.Entry{{Cron: "nope"}}},
		{Name: "Fine", Enabled: true, Schedules: []medicine.Entry{{At: "10:00"}}},
	}
	p, reg := newTestPlanner(t, midnight, staticSource{meds: meds})

	added, err := p.PlanDay(midnight)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, reg.Len())
}

func TestPlanDay_SourceError(t *testing.T) {
	p, _ := newTestPlanner(t, time.Now(), staticSource{err: errors.New("db closed")})
	_, err := p.PlanDay(time.Now())
	assert.Error(t, err)
}

func TestPlanner_StartStop(t *testing.T) {
	p, _ := newTestPlanner(t, time.Now(), staticSource{})

	p.Stop()
	require.NoError(t, p.Start())
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start())

	next := p.NextRun()
	assert.False(t, next.IsZero())
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())

	p.Stop()
	p.Stop()
	assert.False(t, p.IsRunning())
	assert.True(t, p.NextRun().IsZero())
}
