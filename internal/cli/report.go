package cli

import (
	"fmt"
	"strings"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/app"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type rangeFlags struct {
	period string
	from   string
	to     string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.period, "period", "p", "week", "today, week or month")
	cmd.Flags().StringVar(&f.from, "from", "", "first day, YYYY-MM-DD (overrides --period)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day, YYYY-MM-DD")
}

func (f *rangeFlags) resolve(rt *runtime, calc *adherence.Calculator) (adherence.Range, error) {
	var r adherence.Range
	switch strings.ToLower(f.period) {
	case "today":
		r = calc.Today()
	case "week":
		r = calc.ThisWeek()
	case "month":
		r = calc.ThisMonth()
	default:
		return r, fmt.Errorf("unknown period %q (want today, week or month)", f.period)
	}

	loc := calc.Location()
	if f.from != "" {
		t, err := parseDate(f.from, loc)
		if err != nil {
			return r, err
		}
		r.Start = t
	}
	if f.to != "" {
		t, err := parseDate(f.to, loc)
		if err != nil {
			return r, err
		}
		r.End = t
	}
	return r, nil
}

func adherenceCmd(rt *runtime) *cobra.Command {
	var rf rangeFlags
	var medicineName string
	cmd := &cobra.Command{
		Use:   "adherence",
		Short: "Show the adherence percentage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := rf.resolve(rt, a.Calculator)
			if err != nil {
				return err
			}
			medicineID, err := lookupMedicine(a, medicineName)
			if err != nil {
				return err
			}

			pct, err := a.Calculator.Percentage(medicineID, r.Start, r.End)
			if err != nil {
				return err
			}
			summary, err := a.Calculator.SummarizeMedicine(medicineID, r)
			if err != nil {
				return err
			}

			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"medicine":   medicineName,
					"percentage": pct,
					"summary":    summary,
				})
			}

			label := "all medicines"
			if medicineName != "" {
				label = medicineName
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Adherence %s (%s): %.1f%%\n", r, label, pct)
			tw := newTable(out, table.Row{"Taken", "Late", "Missed", "Pending", "Skipped", "Total"})
			tw.AppendRow(table.Row{summary.Taken, summary.Late, summary.Missed, summary.Pending, summary.Skipped, summary.Total})
			tw.Render()
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&medicineName, "medicine", "m", "", "limit to one medicine")
	return cmd
}

func lookupMedicine(a *app.App, name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	m, err := a.Store.GetMedicineByName(name)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, fmt.Errorf("medicine %q not found", name)
	}
	return m.ID, nil
}

func historyCmd(rt *runtime) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show dose outcomes per day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := rf.resolve(rt, a.Calculator)
			if err != nil {
				return err
			}
			days, err := a.Calculator.DailyStatistics(r.Start, r.End)
			if err != nil {
				return err
			}

			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), days)
			}
			if len(days) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", r)
				return nil
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"Date", "Taken", "Missed", "Pending", "Skipped"})
			for _, d := range days {
				tw.AppendRow(table.Row{d.Date, d.Taken(), d.Missed(), d.Counts[reminder.StatusPending], d.Counts[reminder.StatusSkipped]})
			}
			tw.Render()
			return nil
		},
	}
	rf.register(cmd)
	return cmd
}
