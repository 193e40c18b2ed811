package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/trynightnotes/nightnotes/internal/analysis"
	"github.com/trynightnotes/nightnotes/internal/llm"
	"github.com/trynightnotes/nightnotes/internal/reflection"
	"github.com/trynightnotes/nightnotes/internal/store"
	"github.com/trynightnotes/nightnotes/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]struct {
	typeURI string
	title   string
}{
	http.StatusUnauthorized: {
		typeURI: "https://trynightnotes.com/errors/unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: "https://trynightnotes.com/errors/bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: "https://trynightnotes.com/errors/not-found",
		title:   "Not Found",
	},
	http.StatusInternalServerError: {
		typeURI: "https://trynightnotes.com/errors/internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: "https://trynightnotes.com/errors/validation-error",
		title:   "Validation Error",
	},
	http.StatusServiceUnavailable: {
		typeURI: "https://trynightnotes.com/errors/service-unavailable",
		title:   "Service Unavailable",
	},
	http.StatusTooManyRequests: {
		typeURI: "https://trynightnotes.com/errors/rate-limit",
		title:   "Too Many Requests",
	},
	http.StatusBadGateway: {
		typeURI: "https://trynightnotes.com/errors/upstream-error",
		title:   "Upstream Error",
	},
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt, ok := problemTypes[status]
	if !ok {
		pt = struct {
			typeURI string
			title   string
		}{
			typeURI: "https://trynightnotes.com/errors/unknown",
			title:   http.StatusText(status),
		}
	}

	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemTypes[http.StatusUnprocessableEntity]

	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses. The upstream
// taxonomy gets distinct user-facing messages; everything else collapses to a
// generic 500 so internal details never reach the client.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, analysis.ErrNoSessions):
		WriteProblem(w, r, http.StatusNotFound, "No sessions found in the last 7 days")
	case errors.Is(err, analysis.ErrUnparseable):
		WriteProblem(w, r, http.StatusBadGateway, "Failed to parse analysis")
	case errors.Is(err, reflection.ErrEmptyDream):
		WriteProblem(w, r, http.StatusBadRequest, "Please describe your dream first.")
	case errors.Is(err, llm.ErrAuth):
		WriteProblem(w, r, http.StatusInternalServerError, "API authentication failed. Please check configuration.")
	case errors.Is(err, llm.ErrRateLimited):
		WriteProblem(w, r, http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.")
	case errors.Is(err, llm.ErrUpstream):
		WriteProblem(w, r, http.StatusBadGateway, "Something went wrong generating the response. Please try again.")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
