package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `scheduler:
  timezone: UTC
notify:
  console: true
  telegram:
    enabled: false
    bot_token: "1234567890abcdef"
api:
  enabled: false
`

type harness struct {
	dataDir string
	clock   *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "medremind.yaml"), []byte(testConfig), 0o644))
	return &harness{
		dataDir: dir,
		clock:   clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand("test", h.clock)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(append(args, "--data", h.dataDir))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "medremind test\n", h.mustRun(t, "version"))
}

func TestReminderLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "reminder", "add", "-m", "Aspirin", "-t", "2024-03-10 08:00", "--dose", "100mg")
	assert.Contains(t, out, "Added reminder #1: Aspirin at 2024-03-10 08:00")

	out = h.mustRun(t, "reminder", "list", "--status", "due", "--json")
	var due []reminder.Reminder
	require.NoError(t, json.Unmarshal([]byte(out), &due))
	require.Len(t, due, 1)
	assert.Equal(t, "100mg", due[0].Dose)

	out = h.mustRun(t, "reminder", "taken", "1")
	assert.Contains(t, out, "Reminder #1 marked taken")

	_, err := h.run(t, "reminder", "missed", "1")
	assert.ErrorContains(t, err, "not pending")

	out = h.mustRun(t, "reminder", "list")
	assert.Contains(t, out, "TAKEN")

	out = h.mustRun(t, "history", "--json")
	assert.Contains(t, out, `"TAKEN": 1`)

	out = h.mustRun(t, "adherence", "--period", "today")
	assert.Contains(t, out, "100.0%")
}

func TestReminderSnoozeUsesDefault(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "reminder", "add", "-m", "Aspirin", "-t", "08:30")

	out := h.mustRun(t, "reminder", "snooze", "1")
	assert.Contains(t, out, "snoozed until 2024-03-10 08:35")

	out = h.mustRun(t, "reminder", "snooze", "1", "--minutes", "20")
	assert.Contains(t, out, "snoozed until 2024-03-10 08:55")
}

func TestReminderDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "reminder", "add", "-m", "Aspirin", "-t", "10:00")

	assert.Contains(t, h.mustRun(t, "reminder", "delete", "1"), "Deleted reminder #1")

	_, err := h.run(t, "reminder", "delete", "1")
	assert.ErrorIs(t, err, apperrors.ErrReminderNotFound)

	_, err = h.run(t, "reminder", "delete", "zero")
	assert.Error(t, err)
}

func TestReminderAdd_Invalid(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "reminder", "add", "-m", "Aspirin", "-t", "tomorrow")
	assert.ErrorContains(t, err, "cannot parse time")

	_, err = h.run(t, "reminder", "add", "-m", " ", "-t", "10:00")
	assert.ErrorIs(t, err, apperrors.ErrInvalidReminder)
}

func TestMedicineImportAndList(t *testing.T) {
	h := newHarness(t)
	plan := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(`medicines:
  - name: Aspirin
    dosage: 100mg
    supply: 5
    low_stock: 5
    schedule:
      - slot: morning
      - at: "21:30"
  - name: Metformin
    dosage: 500mg
    supply: 60
    schedule:
      - slot: evening
        meal: with_meal
`), 0o644))

	out := h.mustRun(t, "medicine", "import", plan, "--plan-today")
	assert.Contains(t, out, "Imported 2 medicines")
	// the 08:00 dose is already behind 09:00
	assert.Contains(t, out, "Planned 2 reminders for today")

	out = h.mustRun(t, "medicine", "list")
	assert.Contains(t, out, "Aspirin")
	assert.Contains(t, out, "low stock")
	assert.Contains(t, out, "morning")
	assert.Contains(t, out, "Metformin")

	out = h.mustRun(t, "reminder", "list", "--status", "pending", "--json")
	var pending []reminder.Reminder
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	assert.Len(t, pending, 2)

	_, err := h.run(t, "adherence", "--medicine", "Unknown")
	assert.ErrorContains(t, err, "not found")
}

func TestConfigShowMasksToken(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "config", "show")
	assert.Contains(t, out, "1234...cdef")
	assert.NotContains(t, out, "1234567890abcdef")
	assert.Contains(t, out, "UTC")
}

func TestTelegramChatUnbind(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.mustRun(t, "telegram", "chat"), "No chat bound")

	st, err := store.Open(filepath.Join(h.dataDir, "medremind.db"), time.UTC, nil)
	require.NoError(t, err)
	require.NoError(t, st.SetSetting("telegram.chat_id", "77"))
	require.NoError(t, st.Close())

	assert.Contains(t, h.mustRun(t, "telegram", "chat"), "Bound to chat 77")
	assert.Contains(t, h.mustRun(t, "telegram", "unbind"), "unbound")
	assert.Contains(t, h.mustRun(t, "telegram", "chat"), "No chat bound")
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
		err  bool
	}{
		{"2024-03-11 07:15", time.Date(2024, 3, 11, 7, 15, 0, 0, time.UTC), false},
		{"18:45", time.Date(2024, 3, 10, 18, 45, 0, 0, time.UTC), false},
		{"2024-03-11T07:15:00+02:00", time.Date(2024, 3, 11, 5, 15, 0, 0, time.UTC), false},
		{"soon", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhen(tt.in, now)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"1234567890", "1234...7890"},
		{"1234567890abcdef", "1234...cdef"},
		{"short", "***"},
		{"", "***"},
		{"1234567", "***"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, maskToken(tt.token), tt.token)
	}
}
