// Package ritual implements the five-step shutdown ritual as a state machine.
// The machine is pure: it holds no I/O, and the API layer drives it to enforce
// the per-step guards before a session is persisted.
package ritual

import (
	"errors"
	"strings"
	"time"

	"github.com/trynightnotes/nightnotes/internal/types"
)

// Step identifies a wizard state.
type Step int

const (
	// StepLoadBefore collects the before rating (required, 1-5).
	StepLoadBefore Step = iota + 1
	// StepOpenLoops collects unfinished business (skippable).
	StepOpenLoops
	// StepEmotionalResidue collects lingering feelings (skippable).
	StepEmotionalResidue
	// StepTomorrowAnchor collects tomorrow's first action (required).
	StepTomorrowAnchor
	// StepLoadAfter collects the after rating (required, 1-5).
	StepLoadAfter
	// StepComplete is terminal; the session is ready to persist.
	StepComplete
)

var (
	ErrStepIncomplete   = errors.New("current step's required field is not filled")
	ErrStepNotSkippable = errors.New("current step cannot be skipped")
	ErrRitualComplete   = errors.New("ritual already complete")
	ErrRitualIncomplete = errors.New("ritual not complete")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
)

// Wizard walks one ritual from the first rating to a finished session record.
type Wizard struct {
	step             Step
	loadBefore       int
	loadAfter        int
	openLoops        string
	emotionalResidue string
	tomorrowAnchor   string
	startedAt        time.Time
}

// New starts a wizard at the first step. startedAt anchors the session
// duration computed at completion.
func New(startedAt time.Time) *Wizard {
	return &Wizard{step: StepLoadBefore, startedAt: startedAt}
}

// Step returns the current state.
func (w *Wizard) Step() Step {
	return w.step
}

// SetLoadBefore records the before rating.
func (w *Wizard) SetLoadBefore(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	w.loadBefore = rating
	return nil
}

// SetOpenLoops records the open-loops text. Blank is allowed.
func (w *Wizard) SetOpenLoops(text string) {
	w.openLoops = text
}

// SetEmotionalResidue records the emotional-residue text. Blank is allowed.
func (w *Wizard) SetEmotionalResidue(text string) {
	w.emotionalResidue = text
}

// SetTomorrowAnchor records tomorrow's anchor.
func (w *Wizard) SetTomorrowAnchor(text string) {
	w.tomorrowAnchor = text
}

// SetLoadAfter records the after rating.
func (w *Wizard) SetLoadAfter(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	w.loadAfter = rating
	return nil
}

// CanContinue reports whether the current step's guard is satisfied.
func (w *Wizard) CanContinue() bool {
	switch w.step {
	case StepLoadBefore:
		return w.loadBefore != 0
	case StepTomorrowAnchor:
		return strings.TrimSpace(w.tomorrowAnchor) != ""
	case StepLoadAfter:
		return w.loadAfter != 0
	case StepComplete:
		return false
	default:
		return true
	}
}

// Next advances to the following step. Forward progress is blocked until the
// current step's required field is filled.
func (w *Wizard) Next() error {
	if w.step == StepComplete {
		return ErrRitualComplete
	}
	if !w.CanContinue() {
		return ErrStepIncomplete
	}
	w.step++
	return nil
}

// Skip advances past an optional step without requiring input. Only the
// open-loops and emotional-residue steps have a skip control.
func (w *Wizard) Skip() error {
	if w.step != StepOpenLoops && w.step != StepEmotionalResidue {
		return ErrStepNotSkippable
	}
	w.step++
	return nil
}

// Finish produces the session record once the wizard has reached the terminal
// state. Duration is wall-clock time from the first step to completedAt; the
// load delta itself is derived by the store at insert.
func (w *Wizard) Finish(userID string, completedAt time.Time) (types.NewSession, error) {
	if w.step != StepComplete {
		return types.NewSession{}, ErrRitualIncomplete
	}
	return types.NewSession{
		UserID:           userID,
		LoadBefore:       w.loadBefore,
		LoadAfter:        w.loadAfter,
		OpenLoops:        w.openLoops,
		EmotionalResidue: w.emotionalResidue,
		TomorrowAnchor:   strings.TrimSpace(w.tomorrowAnchor),
		StartedAt:        w.startedAt,
		CompletedAt:      completedAt,
	}, nil
}
