package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/alarm"
	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/detector"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleTicker struct{}

func (idleTicker) Start(func()) error { return nil }
func (idleTicker) Stop()              {}

type testServer struct {
	server   *Server
	registry *reminder.Registry
	store    *store.Store
	clock    *clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.Open(":memory:", time.UTC, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg, err := reminder.NewRegistry(reminder.WithRepository(st))
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	m := metrics.New()
	det := detector.New(reg, detector.DefaultTolerance, nil)
	trig := alarm.New(alarm.DefaultConfig(), alarm.Deps{
		Registry: reg,
		Detector: det,
		Recorder: st,
		Metrics:  m,
		Clock:    clock,
		Tickers: func(time.Duration) (alarm.Ticker, error) {
			return idleTicker{}, nil
		},
	})

	srv := New(config.APIConfig{Address: "127.0.0.1", Port: 8087}, Deps{
		Registry:   reg,
		Trigger:    trig,
		Calculator: adherence.NewCalculator(st, clock, nil, adherence.WithLocation(time.UTC)),
		Metrics:    m,
		Clock:      clock,
		Version:    "test",
	})
	return &testServer{server: srv, registry: reg, store: st, clock: clock}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (ts *testServer) add(t *testing.T, name string, at time.Time) reminder.Reminder {
	t.Helper()
	r, err := ts.registry.Add(reminder.Reminder{MedicineName: name, ScheduledTime: at})
	require.NoError(t, err)
	return r
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.add(t, "Aspirin", ts.clock.Now())

	status, body := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "test", out["version"])
	assert.Equal(t, false, out["trigger_running"])
	assert.EqualValues(t, 1, out["pending"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "medremind_reminders_pending")
}

func TestCreateReminder(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/reminders", map[string]any{
		"medicine_name":  "Aspirin",
		"dose":           "100mg",
		"scheduled_time": "2024-03-10T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var r reminder.Reminder
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, reminder.StatusPending, r.Status)
	assert.Equal(t, 1, ts.registry.Len())

	loaded, err := ts.store.LoadReminders()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestCreateReminder_Invalid(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/reminders", map[string]any{
		"medicine_name": "  ",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "REMINDER_001")
	assert.Equal(t, 0, ts.registry.Len())
}

func TestListReminders(t *testing.T) {
	ts := newTestServer(t)
	now := ts.clock.Now()
	ts.add(t, "Later", now.Add(3*time.Hour))
	due := ts.add(t, "Now", now)
	taken := ts.add(t, "Earlier", now.Add(-time.Hour))
	require.True(t, ts.registry.MarkTaken(taken.ID))

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Earlier", "Now", "Later"}},
		{"?status=pending", []string{"Later", "Now"}},
		{"?status=due", []string{due.MedicineName}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			status, body := ts.do(t, http.MethodGet, "/reminders"+tt.query, nil)
			require.Equal(t, http.StatusOK, status)

			var list []reminder.Reminder
			require.NoError(t, json.Unmarshal(body, &list))
			names := make([]string, 0, len(list))
			for _, r := range list {
				names = append(names, r.MedicineName)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	status, _ := ts.do(t, http.MethodGet, "/reminders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetAndDeleteReminder(t *testing.T) {
	ts := newTestServer(t)
	r := ts.add(t, "Aspirin", ts.clock.Now())

	status, _ := ts.do(t, http.MethodGet, "/reminders/1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodDelete, "/reminders/1", nil)
	assert.Equal(t, http.StatusNoContent, status)

	_, ok := ts.registry.Get(r.ID)
	assert.False(t, ok)

	status, body := ts.do(t, http.MethodDelete, "/reminders/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "REMINDER_003")

	status, _ = ts.do(t, http.MethodGet, "/reminders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRespondTaken(t *testing.T) {
	ts := newTestServer(t)
	r := ts.add(t, "Aspirin", ts.clock.Now())

	status, body := ts.do(t, http.MethodPost, "/reminders/1/taken", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	got, _ := ts.registry.Get(r.ID)
	assert.Equal(t, reminder.StatusTaken, got.Status)

	h, err := ts.store.HistoryForReminder(r.ID)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, reminder.StatusTaken, h.Status)

	status, _ = ts.do(t, http.MethodPost, "/reminders/1/missed", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRespondUnknown(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodPost, "/reminders/42/taken", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRespondSnooze(t *testing.T) {
	ts := newTestServer(t)
	now := ts.clock.Now()
	r := ts.add(t, "Aspirin", now)

	status, body := ts.do(t, http.MethodPost, "/reminders/1/snooze", map[string]any{"minutes": 15})
	require.Equal(t, http.StatusOK, status, string(body))

	got, _ := ts.registry.Get(r.ID)
	assert.Equal(t, reminder.StatusPending, got.Status)
	assert.True(t, got.ScheduledTime.Equal(now.Add(15*time.Minute)))

	status, _ = ts.do(t, http.MethodPost, "/reminders/1/snooze", nil)
	require.Equal(t, http.StatusOK, status)
	got, _ = ts.registry.Get(r.ID)
	assert.True(t, got.ScheduledTime.Equal(now.Add(20*time.Minute)))

	status, _ = ts.do(t, http.MethodPost, "/reminders/1/snooze", map[string]any{"minutes": -5})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdherence(t *testing.T) {
	ts := newTestServer(t)
	now := ts.clock.Now()
	for i, status := range []reminder.Status{reminder.StatusTaken, reminder.StatusTaken, reminder.StatusTaken, reminder.StatusMissed} {
		r := reminder.Reminder{ID: int64(i + 1), MedicineID: 1, MedicineName: "Aspirin", ScheduledTime: now.Add(-time.Duration(i) * time.Hour)}
		require.NoError(t, ts.store.RecordOutcome(r, status, now))
	}

	status, body := ts.do(t, http.MethodGet, "/adherence?from=2024-03-10&to=2024-03-10", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var out adherenceResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.InDelta(t, 75.0, out.Percentage, 1e-9)
	assert.Equal(t, 3, out.Summary.Taken)
	assert.Equal(t, 1, out.Summary.Missed)
	assert.Equal(t, 2, out.Summary.Late)

	other := reminder.Reminder{ID: 9, MedicineID: 2, MedicineName: "Metformin", ScheduledTime: now}
	require.NoError(t, ts.store.RecordOutcome(other, reminder.StatusMissed, now))

	status, body = ts.do(t, http.MethodGet, "/adherence?medicine_id=2", nil)
	require.Equal(t, http.StatusOK, status)
	out = adherenceResponse{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 0.0, out.Percentage)
	assert.Equal(t, int64(2), out.Summary.MedicineID)
	assert.Equal(t, 0, out.Summary.Taken)
	assert.Equal(t, 1, out.Summary.Missed)
	assert.Equal(t, 1, out.Summary.Total)

	status, _ = ts.do(t, http.MethodGet, "/adherence?from=10-03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDailyHistory(t *testing.T) {
	ts := newTestServer(t)
	now := ts.clock.Now()
	r1 := reminder.Reminder{ID: 1, MedicineName: "Aspirin", ScheduledTime: now.AddDate(0, 0, -1)}
	r2 := reminder.Reminder{ID: 2, MedicineName: "Aspirin", ScheduledTime: now}
	require.NoError(t, ts.store.RecordOutcome(r1, reminder.StatusMissed, now))
	require.NoError(t, ts.store.RecordOutcome(r2, reminder.StatusTaken, now))

	status, body := ts.do(t, http.MethodGet, "/history/daily", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var days []adherence.DayStats
	require.NoError(t, json.Unmarshal(body, &days))
	require.Len(t, days, 2)
	assert.Equal(t, 1, days[0].Missed())
	assert.Equal(t, 1, days[1].Taken())
	assert.True(t, strings.HasPrefix(days[1].Date, "2024-03-10"))
}
