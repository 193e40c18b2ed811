package nightnotes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, client
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing BaseURL")
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
	})

	if _, err := client.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestCreateSession_RoundTrip(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req RitualRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.TomorrowAnchor != "call the dentist" {
			t.Errorf("anchor = %q", req.TomorrowAnchor)
		}

		delta := req.LoadBefore - req.LoadAfter
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Session{ID: "sess-1", UserID: req.UserID, LoadDelta: &delta})
	})

	session, err := client.CreateSession(context.Background(), RitualRequest{
		UserID:         "user-1",
		LoadBefore:     4,
		LoadAfter:      2,
		TomorrowAnchor: "call the dentist",
		StartedAt:      time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if session.ID != "sess-1" {
		t.Errorf("id = %q", session.ID)
	}
	if session.LoadDelta == nil || *session.LoadDelta != 2 {
		t.Errorf("delta = %v, want 2", session.LoadDelta)
	}
}

func TestListSessions_QueryParams(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user_id") != "user-1" || q.Get("limit") != "5" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode([]Session{{ID: "s1"}, {ID: "s2"}})
	})

	sessions, err := client.ListSessions(context.Background(), "user-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions))
	}
}

func TestReflect_ReturnsText(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ReflectResponse{Reflection: "A dream about release."})
	})

	text, err := client.Reflect(context.Background(), ReflectRequest{Dream: "letting go of a balloon"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "A dream about release." {
		t.Errorf("text = %q", text)
	}
}

func TestDo_ProblemResponseBecomesAPIError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"status": 404,
			"title":  "Not Found",
			"detail": "No sessions found in the last 7 days",
		})
	})

	_, err := client.RunAnalysis(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Detail != "No sessions found in the last 7 days" {
		t.Errorf("detail = %q", apiErr.Detail)
	}
}

func TestDo_NonProblemErrorKeepsStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := client.Dashboard(context.Background(), "user-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d", apiErr.Status)
	}
}
