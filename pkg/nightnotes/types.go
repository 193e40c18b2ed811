package nightnotes

import "time"

// Session is one completed shutdown ritual.
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

// RitualRequest is the wizard submission for CreateSession.
type RitualRequest struct {
	UserID           string    `json:"user_id"`
	LoadBefore       int       `json:"load_before"`
	LoadAfter        int       `json:"load_after"`
	OpenLoops        string    `json:"open_loops,omitempty"`
	EmotionalResidue string    `json:"emotional_residue,omitempty"`
	TomorrowAnchor   string    `json:"tomorrow_anchor"`
	StartedAt        time.Time `json:"started_at"`
}

// MorningCheckin records next-morning mental sharpness.
type MorningCheckin struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Sharpness int       `json:"sharpness"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckinRequest is the input for CreateCheckin.
type CheckinRequest struct {
	UserID    string `json:"user_id"`
	Sharpness int    `json:"sharpness"`
}

// Pattern is a single observation in a weekly analysis.
type Pattern struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// WeeklyAnalysis holds one week's derived statistics and generated patterns.
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

// WeekDay is one cell of the dashboard day grid.
type WeekDay struct {
	Day       string    `json:"day"`
	Date      time.Time `json:"date"`
	Delta     *int      `json:"delta"`
	Completed bool      `json:"completed"`
	IsToday   bool      `json:"is_today"`
	IsBest    bool      `json:"is_best"`
}

// DashboardResponse is the aggregate view backing the home screen.
type DashboardResponse struct {
	Week          []WeekDay `json:"week"`
	AvgLoadDrop   float64   `json:"avg_load_drop"`
	TotalSessions int       `json:"total_sessions"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
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

// ProfileRequest is the input for UpsertProfile.
type ProfileRequest struct {
	ID                     string `json:"id"`
	Email                  string `json:"email"`
	Name                   string `json:"name,omitempty"`
	Timezone               string `json:"timezone,omitempty"`
	MorningEmailEnabled    bool   `json:"morning_email_enabled"`
	EveningReminderEnabled bool   `json:"evening_reminder_enabled"`
}

// HealthResponse is the public health check payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	SessionCount int64  `json:"session_count"`
}

type analysisRequest struct {
	UserID string `json:"user_id"`
}
