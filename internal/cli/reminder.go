package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gmsas95/medremind/internal/alarm"
	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func reminderCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "reminder", Aliases: []string{"r"}, Short: "Manage reminders"}
	cmd.AddCommand(
		reminderAddCmd(rt),
		reminderListCmd(rt),
		reminderDeleteCmd(rt),
		reminderRespondCmd(rt, "taken", "Mark a reminder as taken", alarm.ActionTaken),
		reminderRespondCmd(rt, "missed", "Mark a reminder as missed", alarm.ActionMissed),
		reminderSnoozeCmd(rt),
	)
	return cmd
}

func reminderAddCmd(rt *runtime) *cobra.Command {
	var name, at, dose, notes string
	var medicineID int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a one-off reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseWhen(at, rt.now())
			if err != nil {
				return err
			}

			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Registry.Add(reminder.Reminder{
				MedicineID:    medicineID,
				MedicineName:  name,
				Dose:          dose,
				ScheduledTime: when,
				Notes:         notes,
			})
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added reminder #%d: %s at %s\n",
				r.ID, r.MedicineName, r.ScheduledTime.Format(dateTimeLayout))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "medicine", "m", "", "medicine name")
	cmd.Flags().StringVarP(&at, "at", "t", "", `time, "YYYY-MM-DD HH:MM" or "HH:MM" for today`)
	cmd.Flags().StringVar(&dose, "dose", "", "dose, e.g. 1 tablet")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	cmd.Flags().Int64Var(&medicineID, "medicine-id", 0, "id of a stored medicine")
	_ = cmd.MarkFlagRequired("medicine")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func reminderListCmd(rt *runtime) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var items []reminder.Reminder
			switch strings.ToLower(status) {
			case "all":
				items = a.Registry.SortedByTime()
			case "pending":
				items = a.Registry.Pending()
			case "due":
				items = a.Registry.DueSorted(rt.now())
			default:
				return fmt.Errorf("unknown status %q (want all, pending or due)", status)
			}

			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reminders.")
				return nil
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Medicine", "Dose", "Scheduled", "Status", "Snoozed", "Notes"})
			for _, r := range items {
				tw.AppendRow(table.Row{r.ID, r.MedicineName, r.Dose, r.ScheduledTime.Format(dateTimeLayout), r.Status, r.SnoozeCount, r.Notes})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "all", "all, pending or due")
	return cmd
}

func reminderDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a reminder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, ok := a.Registry.Get(id); !ok {
				return apperrors.ErrReminderNotFound
			}
			if !a.Registry.Delete(id) {
				return fmt.Errorf("reminder #%d could not be deleted", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted reminder #%d\n", id)
			return nil
		},
	}
}

func reminderRespondCmd(rt *runtime, use, short string, action alarm.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.respond(cmd, args[0], alarm.Response{Action: action})
		},
	}
}

func reminderSnoozeCmd(rt *runtime) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "snooze <id>",
		Short: "Postpone a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes < 0 {
				return fmt.Errorf("minutes must not be negative")
			}
			return rt.respond(cmd, args[0], alarm.Response{Action: alarm.ActionSnooze, Minutes: minutes})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes to postpone (default from scheduler.default_snooze)")
	return cmd
}

func (rt *runtime) respond(cmd *cobra.Command, arg string, resp alarm.Response) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	a, err := rt.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.Registry.Get(id); !ok {
		return apperrors.ErrReminderNotFound
	}
	if !a.Trigger.Respond(id, resp) {
		return fmt.Errorf("reminder #%d is not pending", id)
	}

	r, _ := a.Registry.Get(id)
	if rt.jsonOut {
		return printJSON(cmd.OutOrStdout(), r)
	}
	switch resp.Action {
	case alarm.ActionSnooze:
		fmt.Fprintf(cmd.OutOrStdout(), "Reminder #%d snoozed until %s\n", id, r.ScheduledTime.Format(dateTimeLayout))
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Reminder #%d marked %s\n", id, strings.ToLower(string(r.Status)))
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid reminder id %q", s)
	}
	return id, nil
}
