// Package stats summarizes completed focus sessions for the dashboard
// surfaces: minutes flown today, total flights, and the current day streak.
package stats

import (
	"sort"
	"time"

	"github.com/aadityasamani/FlightMode/internal/schema"
)

// Stats is the summary over a user's completed sessions.
type Stats struct {
	// TodayMinutes is the sum of durations for sessions started today.
	TodayMinutes int `json:"today_minutes"`
	// TotalFlights counts all completed sessions.
	TotalFlights int `json:"total_flights"`
	// StreakDays counts consecutive days with at least one completed
	// session, ending today or yesterday.
	StreakDays int `json:"streak_days"`
}

// Compute summarizes the given sessions relative to now. Only completed
// sessions contribute; callers typically pass an already-filtered set but
// other statuses are skipped regardless. Sessions with unparseable start
// times are ignored.
func Compute(sessions []schema.Session, now time.Time) Stats {
	var st Stats
	today := midnight(now)
	days := make(map[time.Time]bool)

	for _, s := range sessions {
		if s.Status != schema.StatusCompleted {
			continue
		}
		started := s.StartedAt()
		if started.IsZero() {
			continue
		}
		st.TotalFlights++

		day := midnight(started.In(now.Location()))
		days[day] = true
		if day.Equal(today) {
			st.TodayMinutes += s.DurationMinutes
		}
	}

	st.StreakDays = streak(days, today)
	return st
}

// streak walks backwards from today (or yesterday, if today has no
// session yet) counting consecutive active days.
func streak(days map[time.Time]bool, today time.Time) int {
	if len(days) == 0 {
		return 0
	}

	ordered := make([]time.Time, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[j].Before(ordered[i]) })

	// A streak is still alive if the most recent active day is today or
	// yesterday; anything older means it was broken. Days are compared as
	// calendar days, not fixed 24h spans: a DST transition makes a local
	// day 23 or 25 hours long.
	head := ordered[0]
	if !head.Equal(today) && !head.Equal(today.AddDate(0, 0, -1)) {
		return 0
	}

	count := 1
	for i := 1; i < len(ordered); i++ {
		if !ordered[i].Equal(ordered[i-1].AddDate(0, 0, -1)) {
			break
		}
		count++
	}
	return count
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
