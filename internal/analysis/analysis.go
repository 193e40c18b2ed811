// Package analysis implements the weekly analysis job: load the trailing week
// of sessions and check-ins, ask the text-generation service for a pattern
// analysis in strict JSON, and upsert one row per (user, calendar week).
//
// Two deliberate asymmetries with the dashboard are preserved here: the data
// window is the rolling 7 days ending now (not the calendar week), and the
// persisted average load drop is the unrounded mean.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trynightnotes/nightnotes/internal/llm"
	"github.com/trynightnotes/nightnotes/internal/stats"
	"github.com/trynightnotes/nightnotes/internal/store"
	"github.com/trynightnotes/nightnotes/internal/types"
)

var (
	// ErrNoSessions means there is nothing to analyze. The job writes
	// nothing and the caller reports "no data".
	ErrNoSessions = errors.New("no sessions in the trailing week")
	// ErrUnparseable means the upstream response was not the strict JSON we
	// asked for. The job aborts without any write.
	ErrUnparseable = errors.New("analysis response unparseable")
)

const maxAnalysisTokens = 1024

const analysisSystemPrompt = `You analyze a user's weekly shutdown ritual data. Be specific and actionable. You always respond with valid JSON and nothing else.`

// Analyzer runs the weekly analysis job for one user per invocation.
type Analyzer struct {
	store  store.Store
	client llm.Client
}

// NewAnalyzer creates an analyzer over the given store and LLM client.
func NewAnalyzer(s store.Store, client llm.Client) *Analyzer {
	return &Analyzer{store: s, client: client}
}

// sessionSummary is the compact record sent to the analysis prompt.
type sessionSummary struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	LoadBefore       int    `json:"load_before"`
	LoadAfter        int    `json:"load_after"`
	Delta            *int   `json:"delta"`
	OpenLoops        string `json:"open_loops,omitempty"`
	EmotionalResidue string `json:"emotional_residue,omitempty"`
	TomorrowAnchor   string `json:"tomorrow_anchor,omitempty"`
}

type checkinSummary struct {
	Date        string `json:"date"`
	Sharpness   int    `json:"sharpness"`
	HadShutdown bool   `json:"had_shutdown"`
}

// payload is the strict response shape required from the upstream service.
type payload struct {
	Patterns     []types.Pattern `json:"patterns"`
	Insights     string          `json:"insights"`
	CommonThemes map[string]int  `json:"common_themes"`
}

// Run executes the job for one user. Any failure after the data load aborts
// with no write; the whole job is safe to retry because the final write is an
// upsert keyed by (user, week start).
func (a *Analyzer) Run(ctx context.Context, userID string, now time.Time) (*types.WeeklyAnalysis, error) {
	windowStart, _ := stats.TrailingWindow(now)

	sessions, err := a.store.ListSessionsSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}

	checkins, err := a.store.ListCheckinsSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load checkins: %w", err)
	}

	prompt, err := buildPrompt(sessions, checkins)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	text, err := a.client.Complete(ctx, analysisSystemPrompt, prompt, maxAnalysisTokens)
	if err != nil {
		return nil, err
	}

	parsed, err := parsePayload(text)
	if err != nil {
		return nil, err
	}

	weekStart, weekEnd := stats.WeekBounds(now)
	analysis := types.WeeklyAnalysis{
		UserID:        userID,
		WeekStart:     weekStart,
		WeekEnd:       weekEnd,
		TotalSessions: len(sessions),
		AvgLoadDrop:   meanDelta(sessions),
		AvgSharpness:  meanSharpness(checkins),
		Patterns:      parsed.Patterns,
		Insights:      parsed.Insights,
		CommonThemes:  parsed.CommonThemes,
	}

	stored, err := a.store.UpsertWeeklyAnalysis(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}
	return stored, nil
}

func buildPrompt(sessions []types.Session, checkins []types.MorningCheckin) (string, error) {
	sessionSummaries := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		sessionSummaries = append(sessionSummaries, sessionSummary{
			Date:             s.CompletedAt.Weekday().String(),
			Time:             s.CompletedAt.Format("15:04"),
			LoadBefore:       s.LoadBefore,
			LoadAfter:        s.LoadAfter,
			Delta:            s.LoadDelta,
			OpenLoops:        s.OpenLoops,
			EmotionalResidue: s.EmotionalResidue,
			TomorrowAnchor:   s.TomorrowAnchor,
		})
	}

	checkinSummaries := make([]checkinSummary, 0, len(checkins))
	for _, c := range checkins {
		checkinSummaries = append(checkinSummaries, checkinSummary{
			Date:        c.CreatedAt.Weekday().String(),
			Sharpness:   c.Sharpness,
			HadShutdown: c.SessionID != "",
		})
	}

	sessionsJSON, err := json.MarshalIndent(sessionSummaries, "", "  ")
	if err != nil {
		return "", err
	}
	checkinsJSON, err := json.MarshalIndent(checkinSummaries, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Analyze this user's weekly shutdown ritual data. Be specific and actionable.

Sessions:
%s

Morning check-ins:
%s

Return JSON with:
1. "patterns": Array of 2-3 patterns (type: timing/theme/correlation/trend, title, description with specific numbers)
2. "insights": 2-3 sentence summary
3. "common_themes": Object with theme words and counts from open_loops/emotional_residue

Use their actual words. Be specific. Return only valid JSON.`, sessionsJSON, checkinsJSON), nil
}

// parsePayload parses and shape-checks the upstream response. Anything that is
// not the exact contract becomes ErrUnparseable; the loosely-typed payloads of
// the collaborator never travel past this boundary.
func parsePayload(text string) (*payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	if len(p.Patterns) == 0 {
		return nil, fmt.Errorf("%w: no patterns returned", ErrUnparseable)
	}
	for i, pat := range p.Patterns {
		switch pat.Type {
		case types.PatternTiming, types.PatternTheme, types.PatternCorrelation, types.PatternTrend:
		default:
			return nil, fmt.Errorf("%w: pattern %d has unknown type %q", ErrUnparseable, i, pat.Type)
		}
		if strings.TrimSpace(pat.Title) == "" {
			return nil, fmt.Errorf("%w: pattern %d has no title", ErrUnparseable, i)
		}
	}
	if strings.TrimSpace(p.Insights) == "" {
		return nil, fmt.Errorf("%w: no insights returned", ErrUnparseable)
	}
	if p.CommonThemes == nil {
		p.CommonThemes = map[string]int{}
	}
	return &p, nil
}

// meanDelta is the unrounded mean over all loaded sessions, counting a missing
// delta as 0. The dashboard's one-decimal rounding does not apply here.
func meanDelta(sessions []types.Session) float64 {
	var sum int
	for _, s := range sessions {
		if s.LoadDelta != nil {
			sum += *s.LoadDelta
		}
	}
	return float64(sum) / float64(len(sessions))
}

func meanSharpness(checkins []types.MorningCheckin) *float64 {
	if len(checkins) == 0 {
		return nil
	}
	var sum int
	for _, c := range checkins {
		sum += c.Sharpness
	}
	mean := float64(sum) / float64(len(checkins))
	return &mean
}
