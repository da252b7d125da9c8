package cli

import (
	"fmt"
	"strings"

	"github.com/gmsas95/medremind/internal/medicine"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func medicineCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "medicine", Aliases: []string{"med"}, Short: "Manage medicines and schedules"}
	cmd.AddCommand(medicineImportCmd(rt), medicineListCmd(rt))
	return cmd
}

func medicineImportCmd(rt *runtime) *cobra.Command {
	var planToday bool
	cmd := &cobra.Command{
		Use:   "import <plan.yaml>",
		Short: "Import medicines from a YAML plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meds, err := medicine.LoadPlanFile(args[0])
			if err != nil {
				return err
			}

			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Store.ImportMedicines(meds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d medicines\n", n)

			if planToday {
				added, err := a.Planner.PlanDay(rt.now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Planned %d reminders for today\n", added)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&planToday, "plan-today", false, "also create today's remaining reminders")
	return cmd
}

func medicineListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List medicines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			meds, err := a.Store.ListMedicines()
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), meds)
			}
			if len(meds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No medicines. Import a plan with: medremind medicine import <plan.yaml>")
				return nil
			}

			slots := medicine.Slots{
				Morning: rt.cfg.Slots.Morning,
				Noon:    rt.cfg.Slots.Noon,
				Evening: rt.cfg.Slots.Evening,
				Night:   rt.cfg.Slots.Night,
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Name", "Dosage", "Supply", "Status", "Schedule"})
			for _, m := range meds {
				status := enabled(m.Enabled)
				if m.LowStock() {
					status += ", low stock"
				}
				tw.AppendRow(table.Row{m.ID, m.Name, m.Dosage, m.CurrentSupply, status, describeSchedule(m.Schedules, slots)})
			}
			tw.Render()
			return nil
		},
	}
}

func describeSchedule(entries []medicine.Entry, slots medicine.Slots) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		spec, err := e.Spec(slots)
		if err != nil {
			parts = append(parts, "invalid")
			continue
		}
		label := spec
		if e.TimeOfDay != "" && e.Cron == "" && e.At == "" {
			label = strings.ToLower(string(e.TimeOfDay))
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "; ")
}
