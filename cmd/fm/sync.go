package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push unsynced sessions to the remote store",
	Long: `Run one sync pass: every completed session not yet confirmed at the
remote store is pushed, with last-write-wins conflict resolution by end
time. Failures leave records unsynced for the next run.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		engine, mon := buildEngine(cfg, st)
		defer engine.Close()
		defer mon.Stop()

		user, _ := cmd.Flags().GetString("user")

		res := engine.SyncUnsynced(cmd.Context(), requireUserID(cfg, user))
		if res.Reason != "" && res.Synced == 0 && res.Failed == 0 {
			fmt.Printf("Sync skipped: %s\n", res.Reason)
			return
		}

		fmt.Printf("Synced %d of %d session(s)", res.Synced, res.Total)
		if res.Failed > 0 {
			fmt.Printf(", %d failed (will retry on the next run)", res.Failed)
		}
		fmt.Println()

		if res.Failed > 0 {
			os.Exit(1)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local store and sync status",
	Long: `Display the state of the local store and the sync backlog.

Shows:
  - Which backend the store selected
  - Connectivity as seen by the probe monitor
  - How many completed sessions await sync`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		backend := "document fallback"
		if st.Native() {
			backend = "sqlite"
		}
		fmt.Printf("Data dir: %s\n", cfg.DataDir)
		fmt.Printf("Backend: %s\n", backend)

		user, _ := cmd.Flags().GetString("user")
		userID := requireUserID(cfg, user)

		pending, err := st.UnsyncedSessions(cmd.Context(), userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading sync backlog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Pending sync: %d session(s)\n", len(pending))

		if cfg.RemoteBaseURL == "" {
			fmt.Println("Remote: not configured (sync disabled)")
			return
		}

		engine, mon := buildEngine(cfg, st)
		defer engine.Close()
		defer mon.Stop()

		status := engine.Status()
		fmt.Printf("Online: %v\n", status.IsOnline)
		if status.LastSyncTime.IsZero() {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", status.LastSyncTime.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	syncCmd.Flags().String("user", "", "Acting user id (overrides config)")
	statusCmd.Flags().String("user", "", "Acting user id (overrides config)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
