package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/store"
	"github.com/aadityasamani/FlightMode/internal/store/query"
)

var startCmd = &cobra.Command{
	Use:     "start",
	GroupID: "session",
	Short:   "Start a focus session",
	Long: `Start a new focus session in the local store.

The session is recorded immediately, online or offline. Finish it with
'fm finish' or abandon it with 'fm abandon'.

Example:
  fm start --duration 25 --objective "Write report" --from SFO --to JFK`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		user, _ := cmd.Flags().GetString("user")
		duration, _ := cmd.Flags().GetInt("duration")

		sess := schema.Session{
			UserID:          requireUserID(cfg, user),
			DurationMinutes: duration,
			Objective:       optFlag(cmd, "objective"),
			FromCode:        optFlag(cmd, "from"),
			ToCode:          optFlag(cmd, "to"),
			Seat:            optFlag(cmd, "seat"),
			StartTime:       schema.FormatTime(time.Now()),
			Status:          schema.StatusInProgress,
		}

		id, err := st.InsertSession(cmd.Context(), sess)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting session: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Session %d started (%d min)\n", id, duration)
	},
}

var finishCmd = &cobra.Command{
	Use:     "finish <id>",
	GroupID: "session",
	Short:   "Complete a focus session",
	Long: `Mark a session completed and stamp its end time.

Completed sessions become eligible for sync to the remote store.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		closeSession(cmd, args[0], schema.StatusCompleted)
	},
}

var abandonCmd = &cobra.Command{
	Use:     "abandon <id>",
	GroupID: "session",
	Short:   "Abandon a focus session",
	Long: `Mark a session abandoned and stamp its end time.

Abandoned sessions stay local; they are never synced to the remote
store.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		closeSession(cmd, args[0], schema.StatusAbandoned)
	},
}

// closeSession ends a session with the given terminal status.
func closeSession(cmd *cobra.Command, rawID string, status schema.Status) {
	cfg := loadConfig()
	st := openStore(cfg)
	defer st.Close()

	var id int64
	if _, err := fmt.Sscanf(rawID, "%d", &id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid session id %q\n", rawID)
		os.Exit(1)
	}

	end := schema.FormatTime(time.Now())
	affected, err := st.UpdateSession(cmd.Context(), id, store.Patch{
		EndTime: &end,
		Status:  &status,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error updating session: %v\n", err)
		os.Exit(1)
	}
	if affected == 0 {
		fmt.Fprintf(os.Stderr, "Error: session %d not found\n", id)
		os.Exit(1)
	}

	fmt.Printf("Session %d %s\n", id, status)
}

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: "session",
	Short:   "Record an already-finished focus session",
	Long: `Record a completed session retroactively. The end time is now and
the start time is computed from the duration.

Example:
  fm log --duration 45 --objective "Deep work on the deck"`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		user, _ := cmd.Flags().GetString("user")
		duration, _ := cmd.Flags().GetInt("duration")

		now := time.Now()
		end := schema.FormatTime(now)
		sess := schema.Session{
			UserID:          requireUserID(cfg, user),
			DurationMinutes: duration,
			Objective:       optFlag(cmd, "objective"),
			FromCode:        optFlag(cmd, "from"),
			ToCode:          optFlag(cmd, "to"),
			Seat:            optFlag(cmd, "seat"),
			StartTime:       schema.FormatTime(now.Add(-time.Duration(duration) * time.Minute)),
			EndTime:         &end,
			Status:          schema.StatusCompleted,
		}

		id, err := st.InsertSession(cmd.Context(), sess)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error logging session: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Session %d logged (%d min, completed)\n", id, duration)
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "session",
	Short:   "Show one focus session",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid session id %q\n", args[0])
			os.Exit(1)
		}

		sess, err := st.GetSessionByID(cmd.Context(), id)
		if err != nil {
			if err == store.ErrNotFound {
				fmt.Fprintf(os.Stderr, "Error: session %d not found\n", id)
			} else {
				fmt.Fprintf(os.Stderr, "Error reading session: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("ID: %d\n", sess.ID)
		fmt.Printf("User: %s\n", sess.UserID)
		fmt.Printf("Duration: %d min\n", sess.DurationMinutes)
		fmt.Printf("Objective: %s\n", strOrDash(sess.Objective))
		fmt.Printf("Route: %s -> %s\n", strOrDash(sess.FromCode), strOrDash(sess.ToCode))
		fmt.Printf("Seat: %s\n", strOrDash(sess.Seat))
		fmt.Printf("Start: %s\n", sess.StartTime)
		fmt.Printf("End: %s\n", strOrDash(sess.EndTime))
		fmt.Printf("Status: %s\n", sess.Status)
		fmt.Printf("Synced: %s\n", yesNo(sess.SyncedToRemote))
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "session",
	Short:   "List focus sessions",
	Long: `List the user's sessions from the local store, newest first.

Example:
  fm list --status completed --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		user, _ := cmd.Flags().GetString("user")
		statusFlag, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asc, _ := cmd.Flags().GetBool("asc")

		opts := store.ListOptions{
			Status: schema.Status(statusFlag),
			Limit:  limit,
		}
		if asc {
			opts.Order = query.OrderStartTimeAsc
		}

		sessions, err := st.SessionsByUser(cmd.Context(), requireUserID(cfg, user), opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTART\tMIN\tSTATUS\tSYNCED\tOBJECTIVE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
				s.ID, s.StartTime, s.DurationMinutes, s.Status,
				yesNo(s.SyncedToRemote), strOrDash(s.Objective))
		}
		_ = w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "session",
	Short:   "Show focus statistics",
	Long:    `Summarize completed sessions: minutes today, total flights and the current daily streak.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		user, _ := cmd.Flags().GetString("user")

		result, err := st.Stats(cmd.Context(), requireUserID(cfg, user))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error computing stats: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Today: %d min\n", result.TodayMinutes)
		fmt.Printf("Total flights: %d\n", result.TotalFlights)
		fmt.Printf("Streak: %d day(s)\n", result.StreakDays)
	},
}

func optFlag(cmd *cobra.Command, name string) *string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return nil
	}
	return &v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	startCmd.Flags().Int("duration", 25, "Planned duration in minutes")
	startCmd.Flags().String("objective", "", "What this session is for")
	startCmd.Flags().String("from", "", "Departure airport code")
	startCmd.Flags().String("to", "", "Arrival airport code")
	startCmd.Flags().String("seat", "", "Seat assignment")
	startCmd.Flags().String("user", "", "Acting user id (overrides config)")

	logCmd.Flags().Int("duration", 25, "Session duration in minutes")
	logCmd.Flags().String("objective", "", "What this session was for")
	logCmd.Flags().String("from", "", "Departure airport code")
	logCmd.Flags().String("to", "", "Arrival airport code")
	logCmd.Flags().String("seat", "", "Seat assignment")
	logCmd.Flags().String("user", "", "Acting user id (overrides config)")

	listCmd.Flags().String("status", "", "Filter by status (in-progress, completed, abandoned)")
	listCmd.Flags().Int("limit", 0, "Maximum sessions to show")
	listCmd.Flags().Bool("asc", false, "Oldest first")
	listCmd.Flags().String("user", "", "Acting user id (overrides config)")

	statsCmd.Flags().String("user", "", "Acting user id (overrides config)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(finishCmd)
	rootCmd.AddCommand(abandonCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
}
