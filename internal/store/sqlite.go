package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/trynightnotes/nightnotes/internal/types"
	_ "modernc.org/sqlite"
)

// dateOnly is the storage format for calendar dates (streak days, week keys).
// Timestamps are stored as UTC-rendered RFC 3339 strings so their lexical
// order in SQL matches chronological order regardless of the host zone.
const dateOnly = "2006-01-02"

// SQLiteStore is the SQLite-backed session database.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a completed ritual session and updates the user's
// streak in the same transaction. The load delta and duration are derived
// here, never taken from the caller.
func (s *SQLiteStore) CreateSession(ctx context.Context, ns types.NewSession) (*types.Session, error) {
	now := time.Now().UTC()
	delta := ns.LoadBefore - ns.LoadAfter
	duration := int(ns.CompletedAt.Sub(ns.StartedAt).Seconds())
	completedAt := ns.CompletedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	session := types.Session{
		ID:               ulid.Make().String(),
		UserID:           ns.UserID,
		LoadBefore:       ns.LoadBefore,
		LoadAfter:        ns.LoadAfter,
		OpenLoops:        ns.OpenLoops,
		EmotionalResidue: ns.EmotionalResidue,
		TomorrowAnchor:   ns.TomorrowAnchor,
		StartedAt:        ns.StartedAt,
		CompletedAt:      &completedAt,
		DurationSeconds:  duration,
		LoadDelta:        &delta,
		CreatedAt:        now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, load_before, load_after, open_loops, emotional_residue,
		                      tomorrow_anchor, started_at, completed_at, duration_seconds, load_delta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.UserID, session.LoadBefore, session.LoadAfter,
		nullIfEmpty(session.OpenLoops), nullIfEmpty(session.EmotionalResidue), nullIfEmpty(session.TomorrowAnchor),
		session.StartedAt.UTC().Format(time.RFC3339), completedAt.UTC().Format(time.RFC3339),
		session.DurationSeconds, delta, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := applyStreakRule(ctx, tx, ns.UserID, completedAt); err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	return &session, nil
}

// applyStreakRule advances the user's streak row for a completion on the given
// date: increment only when the previous session date is exactly one calendar
// day earlier, leave a same-day repeat alone, reset to 1 otherwise.
func applyStreakRule(ctx context.Context, tx *sql.Tx, userID string, completedAt time.Time) error {
	day := completedAt.Format(dateOnly)
	now := time.Now().UTC().Format(time.RFC3339)

	var current, longest int
	var lastDate sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT current_streak, longest_streak, last_session_date FROM streaks WHERE user_id = ?`,
		userID).Scan(&current, &longest, &lastDate)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO streaks (id, user_id, current_streak, longest_streak, last_session_date, updated_at)
			VALUES (?, ?, 1, 1, ?, ?)
		`, ulid.Make().String(), userID, day, now)
		return err
	case err != nil:
		return err
	}

	if lastDate.Valid && lastDate.String == day {
		// Second ritual on the same calendar day; the streak stands.
		return nil
	}

	yesterday := completedAt.AddDate(0, 0, -1).Format(dateOnly)
	if lastDate.Valid && lastDate.String == yesterday {
		current++
	} else {
		current = 1
	}
	if current > longest {
		longest = current
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE streaks SET current_streak = ?, longest_streak = ?, last_session_date = ?, updated_at = ?
		WHERE user_id = ?
	`, current, longest, day, now, userID)
	return err
}

const sessionColumns = `id, user_id, load_before, load_after, open_loops, emotional_residue,
	tomorrow_anchor, started_at, completed_at, duration_seconds, load_delta, created_at`

// ListSessions returns the user's completed sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit int) ([]types.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE user_id = ? AND completed_at IS NOT NULL
		ORDER BY completed_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListSessionsSince returns completed sessions with completed_at at or after
// since, newest first. This backs the analysis job's trailing window.
func (s *SQLiteStore) ListSessionsSince(ctx context.Context, userID string, since time.Time) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+`
		FROM sessions WHERE user_id = ? AND completed_at IS NOT NULL AND completed_at >= ?
		ORDER BY completed_at DESC`,
		userID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query sessions since: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// LatestSession returns the user's most recent completed session.
func (s *SQLiteStore) LatestSession(ctx context.Context, userID string) (*types.Session, error) {
	sessions, err := s.ListSessions(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return &sessions[0], nil
}

// CreateCheckin inserts a morning check-in, linked to the most recent
// completed session at insert time. The link is never re-validated.
func (s *SQLiteStore) CreateCheckin(ctx context.Context, nc types.NewCheckin) (*types.MorningCheckin, error) {
	now := time.Now().UTC()

	var sessionID string
	if latest, err := s.LatestSession(ctx, nc.UserID); err == nil {
		sessionID = latest.ID
	} else if err != ErrNotFound {
		return nil, err
	}

	checkin := types.MorningCheckin{
		ID:        ulid.Make().String(),
		UserID:    nc.UserID,
		SessionID: sessionID,
		Sharpness: nc.Sharpness,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO morning_checkins (id, user_id, session_id, sharpness, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, checkin.ID, checkin.UserID, nullIfEmpty(sessionID), checkin.Sharpness, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert checkin: %w", err)
	}
	return &checkin, nil
}

// ListCheckinsSince returns check-ins created at or after since.
func (s *SQLiteStore) ListCheckinsSince(ctx context.Context, userID string, since time.Time) ([]types.MorningCheckin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, sharpness, created_at
		FROM morning_checkins WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, userID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var checkins []types.MorningCheckin
	for rows.Next() {
		var c types.MorningCheckin
		var sessionID sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &sessionID, &c.Sharpness, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		c.SessionID = sessionID.String
		c.CreatedAt = parseTime(createdAt)
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}

// GetStreak returns the user's streak, or a zero-value streak if none exists.
func (s *SQLiteStore) GetStreak(ctx context.Context, userID string) (*types.Streak, error) {
	var st types.Streak
	var lastDate sql.NullString
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, current_streak, longest_streak, last_session_date, updated_at
		FROM streaks WHERE user_id = ?
	`, userID).Scan(&st.ID, &st.UserID, &st.CurrentStreak, &st.LongestStreak, &lastDate, &updatedAt)
	if err == sql.ErrNoRows {
		return &types.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query streak: %w", err)
	}

	if lastDate.Valid {
		t, err := time.ParseInLocation(dateOnly, lastDate.String, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse last session date: %w", err)
		}
		st.LastSessionDate = &t
	}
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

// UpsertWeeklyAnalysis writes the analysis row for (user_id, week_start),
// overwriting every field when the row already exists.
func (s *SQLiteStore) UpsertWeeklyAnalysis(ctx context.Context, a types.WeeklyAnalysis) (*types.WeeklyAnalysis, error) {
	now := time.Now().UTC()
	a.ID = ulid.Make().String()
	a.CreatedAt = now

	patterns, err := json.Marshal(a.Patterns)
	if err != nil {
		return nil, fmt.Errorf("marshal patterns: %w", err)
	}
	themes, err := json.Marshal(a.CommonThemes)
	if err != nil {
		return nil, fmt.Errorf("marshal themes: %w", err)
	}

	var sharpness any
	if a.AvgSharpness != nil {
		sharpness = *a.AvgSharpness
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weekly_analyses (id, user_id, week_start, week_end, total_sessions,
		                             avg_load_drop, avg_sharpness, patterns, insights, common_themes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			week_end = excluded.week_end,
			total_sessions = excluded.total_sessions,
			avg_load_drop = excluded.avg_load_drop,
			avg_sharpness = excluded.avg_sharpness,
			patterns = excluded.patterns,
			insights = excluded.insights,
			common_themes = excluded.common_themes,
			created_at = excluded.created_at
	`, a.ID, a.UserID, a.WeekStart.Format(dateOnly), a.WeekEnd.Format(dateOnly), a.TotalSessions,
		a.AvgLoadDrop, sharpness, string(patterns), a.Insights, string(themes), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("upsert weekly analysis: %w", err)
	}

	// On conflict the pre-generated ID loses to the existing row's, so read
	// the stored row back.
	return s.GetWeeklyAnalysis(ctx, a.UserID, a.WeekStart)
}

const analysisColumns = `id, user_id, week_start, week_end, total_sessions,
	avg_load_drop, avg_sharpness, patterns, insights, common_themes, created_at`

// GetWeeklyAnalysis returns the analysis row for the given week start date.
func (s *SQLiteStore) GetWeeklyAnalysis(ctx context.Context, userID string, weekStart time.Time) (*types.WeeklyAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+`
		FROM weekly_analyses WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(dateOnly))
	return scanAnalysis(row)
}

// LatestWeeklyAnalysis returns the most recent analysis row for the user.
func (s *SQLiteStore) LatestWeeklyAnalysis(ctx context.Context, userID string) (*types.WeeklyAnalysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+`
		FROM weekly_analyses WHERE user_id = ?
		ORDER BY week_start DESC LIMIT 1`, userID)
	return scanAnalysis(row)
}

// UpsertProfile creates or updates a user profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error) {
	now := time.Now().UTC()
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, name, timezone, morning_email_enabled, evening_reminder_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			timezone = excluded.timezone,
			morning_email_enabled = excluded.morning_email_enabled,
			evening_reminder_enabled = excluded.evening_reminder_enabled,
			updated_at = excluded.updated_at
	`, p.ID, p.Email, p.Name, p.Timezone, boolToInt(p.MorningEmailEnabled), boolToInt(p.EveningReminderEnabled),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return s.GetProfile(ctx, p.ID)
}

// GetProfile returns the profile with the given ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	var p types.Profile
	var morning, evening int
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, timezone, morning_email_enabled, evening_reminder_enabled, created_at, updated_at
		FROM profiles WHERE id = ?
	`, id).Scan(&p.ID, &p.Email, &p.Name, &p.Timezone, &morning, &evening, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p.MorningEmailEnabled = morning != 0
	p.EveningReminderEnabled = evening != 0
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListMorningEmailProfiles returns all profiles with the morning email opt-in.
func (s *SQLiteStore) ListMorningEmailProfiles(ctx context.Context) ([]types.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, timezone, morning_email_enabled, evening_reminder_enabled, created_at, updated_at
		FROM profiles WHERE morning_email_enabled = 1
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []types.Profile
	for rows.Next() {
		var p types.Profile
		var morning, evening int
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.Timezone, &morning, &evening, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.MorningEmailEnabled = morning != 0
		p.EveningReminderEnabled = evening != 0
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CountSessions returns the number of completed sessions across all users.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE completed_at IS NOT NULL").Scan(&count)
	return count, err
}

func scanSessions(rows *sql.Rows) ([]types.Session, error) {
	var sessions []types.Session
	for rows.Next() {
		var sess types.Session
		var openLoops, residue, anchor, completedAt sql.NullString
		var duration, delta sql.NullInt64
		var startedAt, createdAt string

		err := rows.Scan(&sess.ID, &sess.UserID, &sess.LoadBefore, &sess.LoadAfter,
			&openLoops, &residue, &anchor, &startedAt, &completedAt, &duration, &delta, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		sess.OpenLoops = openLoops.String
		sess.EmotionalResidue = residue.String
		sess.TomorrowAnchor = anchor.String
		sess.StartedAt = parseTime(startedAt)
		sess.CreatedAt = parseTime(createdAt)
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			sess.CompletedAt = &t
		}
		if duration.Valid {
			sess.DurationSeconds = int(duration.Int64)
		}
		if delta.Valid {
			d := int(delta.Int64)
			sess.LoadDelta = &d
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanAnalysis(row *sql.Row) (*types.WeeklyAnalysis, error) {
	var a types.WeeklyAnalysis
	var weekStart, weekEnd, patterns, themes, createdAt string
	var sharpness sql.NullFloat64

	err := row.Scan(&a.ID, &a.UserID, &weekStart, &weekEnd, &a.TotalSessions,
		&a.AvgLoadDrop, &sharpness, &patterns, &a.Insights, &themes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan weekly analysis: %w", err)
	}

	if sharpness.Valid {
		v := sharpness.Float64
		a.AvgSharpness = &v
	}
	if err := json.Unmarshal([]byte(patterns), &a.Patterns); err != nil {
		return nil, fmt.Errorf("parse patterns JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(themes), &a.CommonThemes); err != nil {
		return nil, fmt.Errorf("parse themes JSON: %w", err)
	}
	if a.WeekStart, err = time.ParseInLocation(dateOnly, weekStart, time.Local); err != nil {
		return nil, fmt.Errorf("parse week start: %w", err)
	}
	if a.WeekEnd, err = time.ParseInLocation(dateOnly, weekEnd, time.Local); err != nil {
		return nil, fmt.Errorf("parse week end: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
