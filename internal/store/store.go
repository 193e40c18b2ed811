package store

import (
	"context"
	"time"

	"github.com/trynightnotes/nightnotes/internal/types"
)

// Store defines the interface contract for all persistence operations.
type Store interface {
	// CreateSession inserts a completed ritual session. The load delta and
	// duration are derived server-side, and the user's streak row is
	// updated in the same transaction.
	CreateSession(ctx context.Context, s types.NewSession) (*types.Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]types.Session, error)
	ListSessionsSince(ctx context.Context, userID string, since time.Time) ([]types.Session, error)
	LatestSession(ctx context.Context, userID string) (*types.Session, error)

	// CreateCheckin inserts a morning check-in, linking the user's most
	// recent completed session if one exists.
	CreateCheckin(ctx context.Context, c types.NewCheckin) (*types.MorningCheckin, error)
	ListCheckinsSince(ctx context.Context, userID string, since time.Time) ([]types.MorningCheckin, error)

	// GetStreak returns the user's streak row, or a zero-value streak if
	// the user has never completed a session.
	GetStreak(ctx context.Context, userID string) (*types.Streak, error)

	// UpsertWeeklyAnalysis writes one analysis row per (user, week_start),
	// overwriting every field on conflict.
	UpsertWeeklyAnalysis(ctx context.Context, a types.WeeklyAnalysis) (*types.WeeklyAnalysis, error)
	GetWeeklyAnalysis(ctx context.Context, userID string, weekStart time.Time) (*types.WeeklyAnalysis, error)
	LatestWeeklyAnalysis(ctx context.Context, userID string) (*types.WeeklyAnalysis, error)

	UpsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error)
	GetProfile(ctx context.Context, id string) (*types.Profile, error)
	ListMorningEmailProfiles(ctx context.Context) ([]types.Profile, error)

	CountSessions(ctx context.Context) (int64, error)
	Close() error
}
