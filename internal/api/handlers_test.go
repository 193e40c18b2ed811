package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trynightnotes/nightnotes/internal/analysis"
	"github.com/trynightnotes/nightnotes/internal/llm"
	"github.com/trynightnotes/nightnotes/internal/reflection"
	"github.com/trynightnotes/nightnotes/internal/store"
	"github.com/trynightnotes/nightnotes/internal/types"
)

// --- Mock Implementations for Testing ---

type mockStore struct {
	sessions       []types.Session
	sessionsErr    error
	created        *types.NewSession
	createErr      error
	checkin        *types.MorningCheckin
	streak         *types.Streak
	latestAnalysis *types.WeeklyAnalysis
	count          int64
	countErr       error
	profile        *types.Profile
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreateSession(ctx context.Context, s types.NewSession) (*types.Session, error) {
	m.created = &s
	if m.createErr != nil {
		return nil, m.createErr
	}
	delta := s.LoadBefore - s.LoadAfter
	completed := s.CompletedAt
	return &types.Session{
		ID: "sess-1", UserID: s.UserID, LoadBefore: s.LoadBefore, LoadAfter: s.LoadAfter,
		TomorrowAnchor: s.TomorrowAnchor, StartedAt: s.StartedAt, CompletedAt: &completed,
		LoadDelta: &delta,
	}, nil
}

func (m *mockStore) ListSessions(ctx context.Context, userID string, limit int) ([]types.Session, error) {
	return m.sessions, m.sessionsErr
}

func (m *mockStore) ListSessionsSince(ctx context.Context, userID string, since time.Time) ([]types.Session, error) {
	return m.sessions, m.sessionsErr
}

func (m *mockStore) LatestSession(ctx context.Context, userID string) (*types.Session, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) CreateCheckin(ctx context.Context, c types.NewCheckin) (*types.MorningCheckin, error) {
	if m.checkin != nil {
		return m.checkin, nil
	}
	return &types.MorningCheckin{ID: "chk-1", UserID: c.UserID, Sharpness: c.Sharpness}, nil
}

func (m *mockStore) ListCheckinsSince(ctx context.Context, userID string, since time.Time) ([]types.MorningCheckin, error) {
	return nil, nil
}

func (m *mockStore) GetStreak(ctx context.Context, userID string) (*types.Streak, error) {
	if m.streak != nil {
		return m.streak, nil
	}
	return &types.Streak{UserID: userID}, nil
}

func (m *mockStore) UpsertWeeklyAnalysis(ctx context.Context, a types.WeeklyAnalysis) (*types.WeeklyAnalysis, error) {
	return &a, nil
}

func (m *mockStore) GetWeeklyAnalysis(ctx context.Context, userID string, weekStart time.Time) (*types.WeeklyAnalysis, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) LatestWeeklyAnalysis(ctx context.Context, userID string) (*types.WeeklyAnalysis, error) {
	if m.latestAnalysis != nil {
		return m.latestAnalysis, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) UpsertProfile(ctx context.Context, p types.Profile) (*types.Profile, error) {
	m.profile = &p
	return &p, nil
}

func (m *mockStore) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) ListMorningEmailProfiles(ctx context.Context) ([]types.Profile, error) {
	return nil, nil
}

func (m *mockStore) CountSessions(ctx context.Context) (int64, error) {
	return m.count, m.countErr
}

func (m *mockStore) Close() error { return nil }

type mockReflector struct {
	text  string
	err   error
	calls int
}

func (m *mockReflector) Reflect(ctx context.Context, req types.ReflectRequest) (string, error) {
	m.calls++
	if strings.TrimSpace(req.Dream) == "" {
		return "", reflection.ErrEmptyDream
	}
	return m.text, m.err
}

type mockAnalyzer struct {
	result *types.WeeklyAnalysis
	err    error
}

func (m *mockAnalyzer) Run(ctx context.Context, userID string, now time.Time) (*types.WeeklyAnalysis, error) {
	return m.result, m.err
}

type mockDigest struct {
	result *types.DigestResult
	err    error
}

func (m *mockDigest) SendMorning(ctx context.Context, now time.Time) (*types.DigestResult, error) {
	return m.result, m.err
}

// --- Helpers ---

const (
	testAPIKey     = "test-api-key"
	testCronSecret = "test-cron-secret"
)

func newTestRouter(ms *mockStore, mr *mockReflector, ma *mockAnalyzer, md DigestRunner) http.Handler {
	h := NewHandler(ms, mr, ma, md, "test")
	return NewRouter(h, testAPIKey, testCronSecret)
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func ritualBody() types.RitualRequest {
	return types.RitualRequest{
		UserID:         "user-1",
		LoadBefore:     4,
		LoadAfter:      2,
		TomorrowAnchor: "  review the pull requests  ",
		StartedAt:      time.Now().Add(-5 * time.Minute),
	}
}

// --- Tests ---

func TestHealth_PublicAndHealthy(t *testing.T) {
	router := newTestRouter(&mockStore{count: 42}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" || resp.SessionCount != 42 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAuth_MissingKeyRejected(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/sessions?user_id=u", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestAuth_WrongKeyRejected(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/sessions?user_id=u", "wrong", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateSession_HappyPath(t *testing.T) {
	ms := &mockStore{}
	router := newTestRouter(ms, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", testAPIKey, ritualBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if ms.created == nil {
		t.Fatal("store never received the session")
	}
	if ms.created.TomorrowAnchor != "review the pull requests" {
		t.Errorf("anchor = %q, want trimmed", ms.created.TomorrowAnchor)
	}
	if ms.created.CompletedAt.IsZero() {
		t.Error("completed_at not set")
	}
}

func TestCreateSession_BlankAnchorBlocked(t *testing.T) {
	ms := &mockStore{}
	router := newTestRouter(ms, &mockReflector{}, &mockAnalyzer{}, nil)

	body := ritualBody()
	body.TomorrowAnchor = "   "
	rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", testAPIKey, body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if ms.created != nil {
		t.Error("session persisted despite blocked wizard")
	}
	if !strings.Contains(rec.Body.String(), "tomorrow_anchor") {
		t.Errorf("body missing field name: %s", rec.Body.String())
	}
}

func TestCreateSession_MissingRatingsBlocked(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.RitualRequest)
		field  string
	}{
		{"no before rating", func(r *types.RitualRequest) { r.LoadBefore = 0 }, "load_before"},
		{"no after rating", func(r *types.RitualRequest) { r.LoadAfter = 0 }, "load_after"},
		{"before rating out of range", func(r *types.RitualRequest) { r.LoadBefore = 7 }, "load_before"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockStore{}
			router := newTestRouter(ms, &mockReflector{}, &mockAnalyzer{}, nil)

			body := ritualBody()
			tt.mutate(&body)
			rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", testAPIKey, body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.field) {
				t.Errorf("body missing %q: %s", tt.field, rec.Body.String())
			}
			if ms.created != nil {
				t.Error("session persisted despite invalid ritual")
			}
		})
	}
}

func TestCreateSession_SkippedTextStepsAllowed(t *testing.T) {
	ms := &mockStore{}
	router := newTestRouter(ms, &mockReflector{}, &mockAnalyzer{}, nil)

	body := ritualBody()
	body.OpenLoops = ""
	body.EmotionalResidue = ""
	rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", testAPIKey, body)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 with optional steps blank", rec.Code)
	}
}

func TestCreateCheckin_InvalidSharpness(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/checkins", testAPIKey,
		types.CheckinRequest{UserID: "user-1", Sharpness: 9})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestDashboard_AggregatesStatsAndStreak(t *testing.T) {
	now := time.Now()
	delta := 3
	ms := &mockStore{
		sessions: []types.Session{{ID: "s1", LoadDelta: &delta, CompletedAt: &now}},
		streak:   &types.Streak{CurrentStreak: 4, LongestStreak: 9},
	}
	router := newTestRouter(ms, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/dashboard?user_id=user-1", testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.DashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Week) != 7 {
		t.Errorf("week entries = %d, want 7", len(resp.Week))
	}
	if resp.AvgLoadDrop != 3 {
		t.Errorf("avg drop = %v, want 3", resp.AvgLoadDrop)
	}
	if resp.CurrentStreak != 4 || resp.LongestStreak != 9 {
		t.Errorf("streak = %d/%d, want 4/9", resp.CurrentStreak, resp.LongestStreak)
	}
}

func TestRunAnalysis_NoDataIs404(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{},
		&mockAnalyzer{err: analysis.ErrNoSessions}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analysis", testAPIKey,
		types.AnalysisRequest{UserID: "user-1"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunAnalysis_UnparseableIs502(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{},
		&mockAnalyzer{err: analysis.ErrUnparseable}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analysis", testAPIKey,
		types.AnalysisRequest{UserID: "user-1"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestGetAnalysis_LatestReturned(t *testing.T) {
	ms := &mockStore{latestAnalysis: &types.WeeklyAnalysis{
		ID: "wa-1", UserID: "user-1", Insights: "steady week",
		Patterns: []types.Pattern{}, CommonThemes: map[string]int{},
	}}
	router := newTestRouter(ms, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/analysis?user_id=user-1", testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "steady week") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetAnalysis_NotFound(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/analysis?user_id=user-1", testAPIKey, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReflect_EmptyDreamIs400(t *testing.T) {
	mr := &mockReflector{}
	router := newTestRouter(&mockStore{}, mr, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/reflect", testAPIKey,
		types.ReflectRequest{Dream: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Please describe your dream first.") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReflect_UpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"auth is config error", llm.ErrAuth, http.StatusInternalServerError, "check configuration"},
		{"rate limit is retryable", llm.ErrRateLimited, http.StatusTooManyRequests, "wait a moment"},
		{"other upstream failure", llm.ErrUpstream, http.StatusBadGateway, "try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := &mockReflector{err: tt.err}
			router := newTestRouter(&mockStore{}, mr, &mockAnalyzer{}, nil)

			rec := doJSON(t, router, http.MethodPost, "/api/v1/reflect", testAPIKey,
				types.ReflectRequest{Dream: "an endless staircase"})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantDetail) {
				t.Errorf("body = %s, want detail containing %q", rec.Body.String(), tt.wantDetail)
			}
		})
	}
}

func TestReflect_ReturnsGeneratedText(t *testing.T) {
	mr := &mockReflector{text: "This dream may reflect a transition."}
	router := newTestRouter(&mockStore{}, mr, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/reflect", testAPIKey,
		types.ReflectRequest{Dream: "I was on a train with no stops", Mood: "confused"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.ReflectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reflection != "This dream may reflect a transition." {
		t.Errorf("reflection = %q", resp.Reflection)
	}
}

func TestMorningEmail_RequiresCronSecret(t *testing.T) {
	md := &mockDigest{result: &types.DigestResult{Sent: []string{"a@example.com"}}}
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, md)

	// Service API key must not open the scheduler endpoint.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/email/morning", testAPIKey, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api key status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/email/morning", testCronSecret, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("cron secret status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "a@example.com") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMorningEmail_DisabledMailIs503(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/email/morning", testCronSecret, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUpsertProfile_Validation(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockReflector{}, &mockAnalyzer{}, nil)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/profiles", testAPIKey,
		types.ProfileRequest{Email: "a@example.com"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 when id missing", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/v1/profiles", testAPIKey,
		types.ProfileRequest{ID: "user-1", Email: "a@example.com", MorningEmailEnabled: true})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
