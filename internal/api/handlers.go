package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/trynightnotes/nightnotes/internal/reflection"
	"github.com/trynightnotes/nightnotes/internal/ritual"
	"github.com/trynightnotes/nightnotes/internal/stats"
	"github.com/trynightnotes/nightnotes/internal/store"
	"github.com/trynightnotes/nightnotes/internal/types"
	"github.com/trynightnotes/nightnotes/internal/validation"
)

// Reflector generates a dream reflection for one request.
type Reflector interface {
	Reflect(ctx context.Context, req types.ReflectRequest) (string, error)
}

// Analyzer runs the weekly analysis job for one user.
type Analyzer interface {
	Run(ctx context.Context, userID string, now time.Time) (*types.WeeklyAnalysis, error)
}

// DigestRunner sends one morning digest batch.
type DigestRunner interface {
	SendMorning(ctx context.Context, now time.Time) (*types.DigestResult, error)
}

// Handler implements the API handlers
type Handler struct {
	store     store.Store
	reflector Reflector
	analyzer  Analyzer
	digest    DigestRunner // nil when mail delivery is disabled
	version   string
}

// NewHandler creates a new Handler over the service's collaborators.
func NewHandler(s store.Store, reflector Reflector, analyzer Analyzer, digest DigestRunner, version string) *Handler {
	return &Handler{
		store:     s,
		reflector: reflector,
		analyzer:  analyzer,
		digest:    digest,
		version:   version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountSessions(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		SessionCount: count,
	})
}

// CreateSession handles POST /api/v1/sessions. The submitted ritual is driven
// through the wizard state machine so the per-step guards hold server-side,
// then persisted.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.RitualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("user_id", req.UserID))
	if req.StartedAt.IsZero() {
		c.Add(&validation.ValidationError{Field: "started_at", Message: "is required"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	session, verrs := runWizard(req, time.Now())
	if len(verrs) > 0 {
		WriteProblemWithErrors(w, r, "Ritual is incomplete", verrs)
		return
	}

	stored, err := h.store.CreateSession(r.Context(), session)
	if err != nil {
		slog.Error("session insert failed", "error", err, "user_id", req.UserID)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

// runWizard walks a full ritual submission through the state machine,
// translating guard failures into field-level validation errors.
func runWizard(req types.RitualRequest, now time.Time) (types.NewSession, []validation.ValidationError) {
	wiz := ritual.New(req.StartedAt)

	if err := wiz.SetLoadBefore(req.LoadBefore); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "load_before", Message: "must be between 1 and 5"}}
	}
	if err := wiz.Next(); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "load_before", Message: "is required"}}
	}

	wiz.SetOpenLoops(req.OpenLoops)
	if err := wiz.Next(); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "open_loops", Message: err.Error()}}
	}
	wiz.SetEmotionalResidue(req.EmotionalResidue)
	if err := wiz.Next(); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "emotional_residue", Message: err.Error()}}
	}

	wiz.SetTomorrowAnchor(req.TomorrowAnchor)
	if err := wiz.Next(); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "tomorrow_anchor", Message: "is required"}}
	}

	if err := wiz.SetLoadAfter(req.LoadAfter); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "load_after", Message: "must be between 1 and 5"}}
	}
	if err := wiz.Next(); err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "load_after", Message: "is required"}}
	}

	session, err := wiz.Finish(req.UserID, now)
	if err != nil {
		return types.NewSession{}, []validation.ValidationError{{Field: "ritual", Message: err.Error()}}
	}
	return session, nil
}

// ListSessions handles GET /api/v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.ListSessions(r.Context(), userID, limit)
	if err != nil {
		slog.Error("session list failed", "error", err, "user_id", userID)
		MapError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

// Dashboard handles GET /api/v1/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), userID, 0)
	if err != nil {
		slog.Error("dashboard load failed", "error", err, "user_id", userID)
		MapError(w, r, err)
		return
	}

	streak, err := h.store.GetStreak(r.Context(), userID)
	if err != nil {
		slog.Error("streak load failed", "error", err, "user_id", userID)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.DashboardResponse{
		Week:          stats.WeekData(sessions, time.Now()),
		AvgLoadDrop:   stats.AvgDrop(sessions),
		TotalSessions: len(sessions),
		CurrentStreak: streak.CurrentStreak,
		LongestStreak: streak.LongestStreak,
	})
}

// CreateCheckin handles POST /api/v1/checkins
func (h *Handler) CreateCheckin(w http.ResponseWriter, r *http.Request) {
	var req types.CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("user_id", req.UserID))
	c.Add(validation.ValidateRating("sharpness", req.Sharpness))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	checkin, err := h.store.CreateCheckin(r.Context(), types.NewCheckin{
		UserID:    req.UserID,
		Sharpness: req.Sharpness,
	})
	if err != nil {
		slog.Error("checkin insert failed", "error", err, "user_id", req.UserID)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkin)
}

// RunAnalysis handles POST /api/v1/analysis
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req types.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if req.UserID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.analyzer.Run(r.Context(), req.UserID, time.Now())
	if err != nil {
		slog.Error("weekly analysis failed", "error", err, "user_id", req.UserID)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetAnalysis handles GET /api/v1/analysis
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	result, err := h.store.LatestWeeklyAnalysis(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("analysis load failed", "error", err, "user_id", userID)
		}
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Reflect handles POST /api/v1/reflect
func (h *Handler) Reflect(w http.ResponseWriter, r *http.Request) {
	var req types.ReflectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	text, err := h.reflector.Reflect(r.Context(), req)
	if err != nil {
		if errors.Is(err, reflection.ErrInvalidMood) {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
				{Field: "mood", Message: "must be one of: peaceful, restless, joyful, confused, haunting"},
			})
			return
		}
		if !errors.Is(err, reflection.ErrEmptyDream) {
			slog.Error("reflection failed", "error", err)
		}
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ReflectResponse{Reflection: text})
}

// UpsertProfile handles PUT /api/v1/profiles
func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req types.ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("id", req.ID))
	c.Add(validation.ValidateRequired("email", req.Email))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	profile, err := h.store.UpsertProfile(r.Context(), types.Profile{
		ID:                     req.ID,
		Email:                  req.Email,
		Name:                   req.Name,
		Timezone:               req.Timezone,
		MorningEmailEnabled:    req.MorningEmailEnabled,
		EveningReminderEnabled: req.EveningReminderEnabled,
	})
	if err != nil {
		slog.Error("profile upsert failed", "error", err, "user_id", req.ID)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// MorningEmail handles POST /api/v1/email/morning, invoked by the external
// scheduler.
func (h *Handler) MorningEmail(w http.ResponseWriter, r *http.Request) {
	if h.digest == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Mail delivery is not configured")
		return
	}

	result, err := h.digest.SendMorning(r.Context(), time.Now())
	if err != nil {
		slog.Error("morning digest failed", "error", err)
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
