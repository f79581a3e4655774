package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep syncing in the background and serve the local status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Listen
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := server.NewHub(a.bus)
		defer hub.Close()
		srv := server.New(listen, a.monitor, a.captures, a.commands, hub)

		a.monitor.OnStatus(func(s model.SyncStatus) {
			slog.Info("sync status changed", "status", s, "online", a.monitor.Online())
		})
		fmt.Fprintf(cmd.OutOrStdout(), "fieldsync %s syncing against %s, local API on http://%s\n", version, cfg.API.URL, listen)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.monitor.Run(ctx) })
		g.Go(func() error { return srv.Run(ctx) })
		// Whatever is queued from earlier sessions goes out on start.
		a.monitor.TriggerSync(ctx)

		err := g.Wait()
		slog.Info("daemon stopped")
		return err
	},
}

func init() {
	daemonCmd.Flags().String("listen", "", "local API address (defaults to the configured listen address)")
	rootCmd.AddCommand(daemonCmd)
}
