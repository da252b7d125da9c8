// Package notify implements alarm presenters: a terminal console, a
// Telegram bot and a fanout that shows one alarm on several of them.
package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gmsas95/medremind/internal/alarm"
)

// command is a parsed user answer such as "snooze 3 10"
type command struct {
	id       int64
	response alarm.Response
}

// parseCommand accepts "<action> <id> [minutes]" and "<action>:<id>[:minutes]"
func parseCommand(s string) (command, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ' ' || r == ':' || r == '\t'
	})
	if len(fields) < 2 {
		return command{}, fmt.Errorf("expected <taken|missed|snooze> <id> [minutes]")
	}

	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return command{}, fmt.Errorf("invalid reminder id %q", fields[1])
	}

	cmd := command{id: id}
	switch alarm.Action(strings.ToLower(fields[0])) {
	case alarm.ActionTaken:
		cmd.response.Action = alarm.ActionTaken
	case alarm.ActionMissed:
		cmd.response.Action = alarm.ActionMissed
	case alarm.ActionSnooze:
		cmd.response.Action = alarm.ActionSnooze
		if len(fields) > 2 {
			minutes, err := strconv.Atoi(fields[2])
			if err != nil || minutes <= 0 {
				return command{}, fmt.Errorf("invalid snooze minutes %q", fields[2])
			}
			cmd.response.Minutes = minutes
		}
	default:
		return command{}, fmt.Errorf("unknown action %q", fields[0])
	}
	return cmd, nil
}

func describe(resp alarm.Response) string {
	switch resp.Action {
	case alarm.ActionTaken:
		return "marked as taken"
	case alarm.ActionMissed:
		return "marked as missed"
	case alarm.ActionSnooze:
		if resp.Minutes > 0 {
			return fmt.Sprintf("snoozed for %d minutes", resp.Minutes)
		}
		return "snoozed"
	}
	return string(resp.Action)
}

func alarmText(a alarm.Alarm) string {
	r := a.Reminder
	var b strings.Builder
	fmt.Fprintf(&b, "Time for %s", r.MedicineName)
	if r.Dose != "" {
		fmt.Fprintf(&b, " (%s)", r.Dose)
	}
	fmt.Fprintf(&b, "\nScheduled %s", r.ScheduledTime.Format("Mon 15:04"))
	if r.Notes != "" {
		fmt.Fprintf(&b, "\n%s", strings.ToLower(strings.ReplaceAll(r.Notes, "_", " ")))
	}
	if r.SnoozeCount > 0 {
		fmt.Fprintf(&b, "\nSnoozed %d time(s)", r.SnoozeCount)
	}
	return b.String()
}
