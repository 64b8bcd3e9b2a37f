package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aadityasamani/FlightMode/internal/config"
	"github.com/aadityasamani/FlightMode/internal/daemon"
	"github.com/aadityasamani/FlightMode/internal/dashboard"
	"github.com/aadityasamani/FlightMode/internal/syncer"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the sync daemon (foreground)",
	Long: `Run the background sync loop in foreground mode.

The daemon will:
  1. Run a sync immediately, then on the configured interval
  2. Sync whenever connectivity comes back
  3. Watch the data directory and sync after external writes
  4. Serve the WebSocket dashboard for live observation

Example usage:
  fm daemon                      # Dashboard on the configured port
  fm daemon --port 9000          # Dashboard on a custom port
  fm daemon --no-dashboard       # Sync loop only

Connect a WebSocket client to ws://localhost:<port>/ws to receive
sync results and status updates.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		user, _ := cmd.Flags().GetString("user")
		userID := requireUserID(cfg, user)

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.DashboardPort
		}
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")

		var server *dashboard.Server
		var engineOpts []syncer.Option
		if !noDashboard {
			// The server is created first so the engine can feed it
			// results; its status func is bound after the engine exists.
			var engineStatus func() syncer.Status
			server = dashboard.NewServer(&dashboard.Config{
				Port:       port,
				StatusFunc: func() syncer.Status { return engineStatus() },
				Logger:     newLogger(cfg, "[dashboard] "),
			})
			engineOpts = append(engineOpts, syncer.WithResultHook(server.BroadcastSyncResult))

			engine, mon := buildEngine(cfg, st, engineOpts...)
			defer engine.Close()
			defer mon.Stop()
			engineStatus = engine.Status

			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer server.Stop()

			fmt.Printf("Dashboard: http://%s (ws://%s/ws)\n", server.GetAddr(), server.GetAddr())

			runDaemon(cfg, engine, userID)
			return
		}

		engine, mon := buildEngine(cfg, st)
		defer engine.Close()
		defer mon.Stop()

		runDaemon(cfg, engine, userID)
	},
}

// runDaemon blocks until interrupted.
func runDaemon(cfg *config.Config, engine *syncer.Engine, userID string) {
	dcfg := daemon.DefaultConfig()
	dcfg.SyncInterval = cfg.SyncInterval
	dcfg.Logger = newLogger(cfg, "[daemon] ")

	d, err := daemon.NewWithConfig(engine, cfg.DataDir, userID, dcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sync daemon running (every %v, data dir %s)\n", cfg.SyncInterval, cfg.DataDir)
	fmt.Println("Press Ctrl+C to stop")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (overrides config)")
	daemonCmd.Flags().Bool("no-dashboard", false, "Disable the WebSocket dashboard")
	daemonCmd.Flags().String("user", "", "Acting user id (overrides config)")

	rootCmd.AddCommand(daemonCmd)
}
