package cmd

import (
	"errors"
	"fmt"

	"github.com/rogersnm/fieldsync/internal/markdown"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Deliver queued commands, then queued reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if !a.monitor.Online() {
			cn, _ := a.commands.Len(ctx)
			rn, _ := a.captures.Len(ctx)
			fmt.Fprintf(out, "Offline: %d command(s) and %d report(s) waiting\n", cn, rn)
			return nil
		}

		dr, drainErr := a.commands.Drain(ctx)
		pr, procErr := a.captures.Process(ctx)
		if dr.Skipped || pr.Skipped {
			fmt.Fprintln(out, "A sync is already running")
		}
		fmt.Fprintf(out, "Commands: %d delivered, %d remaining\n", dr.Delivered, dr.Remaining)
		fmt.Fprintf(out, "Reports: %d delivered, %d failed, %d awaiting review\n", pr.Delivered, pr.Failed, pr.Rejected)

		if err := errors.Join(drainErr, procErr); err != nil {
			return err
		}
		if dr.Remaining == 0 && pr.Failed == 0 && pr.Rejected == 0 {
			fmt.Fprintln(out, "All changes synced")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, sync status and queue depths",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		online := a.monitor.Online()
		if online {
			online = a.client.Ping(ctx) == nil
		}
		st, err := a.captures.Status(ctx)
		if err != nil {
			return err
		}
		cmds, err := a.commands.Items(ctx)
		if err != nil {
			return err
		}

		rejected := 0
		for _, it := range st.Items {
			if it.Rejected {
				rejected++
			}
		}
		for _, c := range cmds {
			if c.Rejected {
				rejected++
			}
		}

		unsent, err := a.capture.UnsentPhotos(ctx)
		if err != nil {
			return err
		}

		store := "ok"
		if st.Degraded {
			store = "unavailable (remote-only)"
		}
		fields := []string{
			markdown.RenderField("Server", cfg.API.URL),
			markdown.RenderField("Connectivity", markdown.RenderConnectivity(online)),
			markdown.RenderField("Sync", markdown.RenderSyncStatus(a.monitor.Status())),
			markdown.RenderField("Local store", store),
			markdown.RenderField("Queued reports", fmt.Sprint(len(st.Items))),
			markdown.RenderField("Queued commands", fmt.Sprint(len(cmds))),
			markdown.RenderField("Unsent photos", fmt.Sprint(unsent)),
			markdown.RenderField("Needs review", fmt.Sprint(rejected)),
		}
		fmt.Fprint(cmd.OutOrStdout(), markdown.RenderEntityHeader("fieldsync "+version, fields))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
