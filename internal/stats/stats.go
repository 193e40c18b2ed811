// Package stats computes the derived statistics shown on the dashboard:
// average load drop, the Monday-through-Sunday day grid, and best-session
// selection. All functions are pure; callers supply "now".
package stats

import (
	"math"
	"time"

	"github.com/trynightnotes/nightnotes/internal/types"
)

// AvgDrop returns the mean load delta across sessions that have one, rounded
// to one decimal place. Incomplete sessions (nil delta) are ignored. Returns 0
// when no session carries a delta.
func AvgDrop(sessions []types.Session) float64 {
	var sum, n int
	for _, s := range sessions {
		if s.LoadDelta == nil {
			continue
		}
		sum += *s.LoadDelta
		n++
	}
	if n == 0 {
		return 0
	}
	// Round half-up on the scaled value (-2.45 rounds to -2.4, not -2.5).
	return math.Floor(float64(sum)/float64(n)*10+0.5) / 10
}

// WeekBounds returns the calendar week containing now, Monday 00:00 through
// the last instant of Sunday, in now's location.
func WeekBounds(now time.Time) (start, end time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	y, m, d := now.AddDate(0, 0, -daysSinceMonday).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

// TrailingWindow returns the rolling 7-day window ending at now. This is the
// analysis job's data window, distinct from the dashboard's calendar week.
func TrailingWindow(now time.Time) (start, end time.Time) {
	return now.AddDate(0, 0, -7), now
}

// WeekData builds the Monday-through-Sunday day grid for the calendar week
// containing now. Sessions may span the full history; only those completed
// inside the week populate the grid. The best session is the first one in
// input order with the maximum load delta (strict > reduction, so ties go to
// the earliest). A day with multiple sessions shows the first match only.
func WeekData(sessions []types.Session, now time.Time) []types.WeekDay {
	weekStart, weekEnd := WeekBounds(now)

	var weekSessions []types.Session
	for _, s := range sessions {
		if s.CompletedAt == nil {
			continue
		}
		if t := *s.CompletedAt; !t.Before(weekStart) && !t.After(weekEnd) {
			weekSessions = append(weekSessions, s)
		}
	}

	var best *types.Session
	for i := range weekSessions {
		if best == nil || delta(weekSessions[i]) > delta(*best) {
			best = &weekSessions[i]
		}
	}

	days := make([]types.WeekDay, 0, 7)
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i)
		day := types.WeekDay{
			Day:     date.Weekday().String()[:1],
			Date:    date,
			IsToday: sameDay(date, now),
		}
		for _, s := range weekSessions {
			if !sameDay(*s.CompletedAt, date) {
				continue
			}
			day.Delta = s.LoadDelta
			day.Completed = true
			day.IsBest = best != nil && s.ID == best.ID
			break
		}
		days = append(days, day)
	}
	return days
}

// delta treats a missing load delta as 0, matching how the best-session
// reduction handled incomplete records upstream.
func delta(s types.Session) int {
	if s.LoadDelta == nil {
		return 0
	}
	return *s.LoadDelta
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
