package cli

import (
	"fmt"

	"github.com/gmsas95/medremind/internal/notify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func configCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.cfg
			if rt.jsonOut {
				masked := *cfg
				masked.Notify.Telegram.BotToken = maskToken(cfg.Notify.Telegram.BotToken)
				return printJSON(cmd.OutOrStdout(), masked)
			}

			tw := newTable(cmd.OutOrStdout(), table.Row{"Key", "Value"})
			tw.AppendRows([]table.Row{
				{"scheduler.poll_interval", cfg.Scheduler.PollInterval},
				{"scheduler.tolerance", cfg.Scheduler.Tolerance},
				{"scheduler.grace_period", cfg.Scheduler.GracePeriod},
				{"scheduler.default_snooze", cfg.Scheduler.DefaultSnooze},
				{"scheduler.timezone", cfg.Scheduler.Timezone},
				{"slots", fmt.Sprintf("%s / %s / %s / %s", cfg.Slots.Morning, cfg.Slots.Noon, cfg.Slots.Evening, cfg.Slots.Night)},
				{"storage.sqlite_path", cfg.Storage.SQLitePath},
				{"notify.console", enabled(cfg.Notify.Console)},
				{"notify.telegram", enabled(cfg.Notify.Telegram.Enabled)},
				{"notify.telegram.bot_token", maskToken(cfg.Notify.Telegram.BotToken)},
				{"api", fmt.Sprintf("%s (%s)", enabled(cfg.API.Enabled), cfg.API.Addr())},
				{"log.level", cfg.Log.Level},
			})
			tw.Render()
			return nil
		},
	})
	return cmd
}

func telegramCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "telegram", Short: "Manage the Telegram chat binding"}
	cmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Show the chat alarms are sent to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id := rt.cfg.Notify.Telegram.ChatID; id != 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Bound to chat %d (config)\n", id)
				return nil
			}
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := notify.BoundTelegramChat(a.Store)
			if err != nil {
				return err
			}
			if id == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No chat bound, send /start to the bot")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bound to chat %d\n", id)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unbind",
		Short: "Forget the bound chat so the next /start binds again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.Notify.Telegram.ChatID != 0 {
				return fmt.Errorf("chat is fixed by notify.telegram.chat_id, change the config instead")
			}
			a, err := rt.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := notify.UnbindTelegramChat(a.Store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Telegram chat unbound, restart `medremind run` to apply")
			return nil
		},
	})
	return cmd
}

func versionCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "medremind %s\n", rt.version)
		},
	}
}
