package types

import "time"

// Session represents one completed shutdown ritual. Sessions are immutable once
// written; corrections happen via new inserts, never updates.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	LoadBefore       int        `json:"load_before"`
	LoadAfter        int        `json:"load_after"`
	OpenLoops        string     `json:"open_loops,omitempty"`
	EmotionalResidue string     `json:"emotional_residue,omitempty"`
	TomorrowAnchor   string     `json:"tomorrow_anchor,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationSeconds  int        `json:"duration_seconds,omitempty"`
	LoadDelta        *int       `json:"load_delta"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewSession is the input shape for recording a completed ritual.
// LoadDelta is derived by the store, never supplied by the caller.
type NewSession struct {
	UserID           string    `json:"user_id"`
	LoadBefore       int       `json:"load_before"`
	LoadAfter        int       `json:"load_after"`
	OpenLoops        string    `json:"open_loops,omitempty"`
	EmotionalResidue string    `json:"emotional_residue,omitempty"`
	TomorrowAnchor   string    `json:"tomorrow_anchor"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// MorningCheckin records next-morning mental sharpness, optionally linked to
// the previous night's session. The link is set once at insert time and never
// re-validated.
type MorningCheckin struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Sharpness int       `json:"sharpness"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCheckin is the input shape for a morning check-in.
type NewCheckin struct {
	UserID    string `json:"user_id"`
	Sharpness int    `json:"sharpness"`
}

// Streak tracks consecutive nightly completions. One row per user.
type Streak struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	CurrentStreak   int        `json:"current_streak"`
	LongestStreak   int        `json:"longest_streak"`
	LastSessionDate *time.Time `json:"last_session_date,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PatternType classifies a pattern in a weekly analysis.
type PatternType string

const (
	PatternTiming      PatternType = "timing"
	PatternTheme       PatternType = "theme"
	PatternCorrelation PatternType = "correlation"
	PatternTrend       PatternType = "trend"
)

// Pattern is a single observation in a weekly analysis.
type Pattern struct {
	Type        PatternType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

// WeeklyAnalysis holds derived weekly statistics plus the generated pattern
// analysis. Unique per (user_id, week_start); recomputation overwrites.
type WeeklyAnalysis struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	WeekStart     time.Time      `json:"week_start"`
	WeekEnd       time.Time      `json:"week_end"`
	TotalSessions int            `json:"total_sessions"`
	AvgLoadDrop   float64        `json:"avg_load_drop"`
	AvgSharpness  *float64       `json:"avg_sharpness,omitempty"`
	Patterns      []Pattern      `json:"patterns"`
	Insights      string         `json:"insights"`
	CommonThemes  map[string]int `json:"common_themes"`
	CreatedAt     time.Time      `json:"created_at"`
}

// WeekDay is one cell of the dashboard day grid. Derived, never persisted.
type WeekDay struct {
	Day       string    `json:"day"`
	Date      time.Time `json:"date"`
	Delta     *int      `json:"delta"`
	Completed bool      `json:"completed"`
	IsToday   bool      `json:"is_today"`
	IsBest    bool      `json:"is_best"`
}

// Mood tags a dream reflection request.
type Mood string

const (
	MoodPeaceful Mood = "peaceful"
	MoodRestless Mood = "restless"
	MoodJoyful   Mood = "joyful"
	MoodConfused Mood = "confused"
	MoodHaunting Mood = "haunting"
)

// Moods lists the accepted mood tags.
var Moods = []Mood{MoodPeaceful, MoodRestless, MoodJoyful, MoodConfused, MoodHaunting}

// Profile holds per-user delivery preferences for scheduled email.
type Profile struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	Name                   string    `json:"name,omitempty"`
	Timezone               string    `json:"timezone"`
	MorningEmailEnabled    bool      `json:"morning_email_enabled"`
	EveningReminderEnabled bool      `json:"evening_reminder_enabled"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ReflectRequest is the dream reflection input.
type ReflectRequest struct {
	Dream string `json:"dream"`
	Mood  string `json:"mood,omitempty"`
}

// ReflectResponse carries the generated reflection verbatim.
type ReflectResponse struct {
	Reflection string `json:"reflection"`
}

// RitualRequest is the wizard submission for POST /sessions.
type RitualRequest struct {
	UserID           string    `json:"user_id"`
	LoadBefore       int       `json:"load_before"`
	LoadAfter        int       `json:"load_after"`
	OpenLoops        string    `json:"open_loops,omitempty"`
	EmotionalResidue string    `json:"emotional_residue,omitempty"`
	TomorrowAnchor   string    `json:"tomorrow_anchor"`
	StartedAt        time.Time `json:"started_at"`
}

// CheckinRequest is the input for POST /checkins.
type CheckinRequest struct {
	UserID    string `json:"user_id"`
	Sharpness int    `json:"sharpness"`
}

// AnalysisRequest triggers the weekly analysis job for one user.
type AnalysisRequest struct {
	UserID string `json:"user_id"`
}

// ProfileRequest is the input for PUT /profiles.
type ProfileRequest struct {
	ID                     string `json:"id"`
	Email                  string `json:"email"`
	Name                   string `json:"name,omitempty"`
	Timezone               string `json:"timezone,omitempty"`
	MorningEmailEnabled    bool   `json:"morning_email_enabled"`
	EveningReminderEnabled bool   `json:"evening_reminder_enabled"`
}

// DashboardResponse is the aggregate view backing the home screen.
type DashboardResponse struct {
	Week          []WeekDay `json:"week"`
	AvgLoadDrop   float64   `json:"avg_load_drop"`
	TotalSessions int       `json:"total_sessions"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
}

// HealthResponse is the public health check payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	SessionCount int64  `json:"session_count"`
}

// DigestResult reports a morning digest batch run.
type DigestResult struct {
	Sent []string `json:"sent"`
}
