package ritual

import (
	"errors"
	"testing"
	"time"
)

func TestWizard_HappyPath(t *testing.T) {
	started := time.Date(2025, 6, 9, 22, 0, 0, 0, time.Local)
	w := New(started)

	if err := w.SetLoadBefore(4); err != nil {
		t.Fatalf("SetLoadBefore: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("advance from load-before: %v", err)
	}

	w.SetOpenLoops("ship the release notes")
	if err := w.Next(); err != nil {
		t.Fatalf("advance from open-loops: %v", err)
	}
	if err := w.Skip(); err != nil {
		t.Fatalf("skip emotional residue: %v", err)
	}

	w.SetTomorrowAnchor("  write the standup update  ")
	if err := w.Next(); err != nil {
		t.Fatalf("advance from anchor: %v", err)
	}

	if err := w.SetLoadAfter(2); err != nil {
		t.Fatalf("SetLoadAfter: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("advance from load-after: %v", err)
	}
	if w.Step() != StepComplete {
		t.Fatalf("step = %v, want StepComplete", w.Step())
	}

	completed := started.Add(3 * time.Minute)
	session, err := w.Finish("user-1", completed)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if session.LoadBefore != 4 || session.LoadAfter != 2 {
		t.Errorf("ratings = %d/%d, want 4/2", session.LoadBefore, session.LoadAfter)
	}
	if session.TomorrowAnchor != "write the standup update" {
		t.Errorf("anchor = %q, want trimmed text", session.TomorrowAnchor)
	}
	if session.EmotionalResidue != "" {
		t.Errorf("skipped step left residue %q", session.EmotionalResidue)
	}
	if !session.CompletedAt.Equal(completed) {
		t.Errorf("completed_at = %v, want %v", session.CompletedAt, completed)
	}
}

func TestWizard_RatingStepsBlockUntilChosen(t *testing.T) {
	w := New(time.Now())

	if err := w.Next(); !errors.Is(err, ErrStepIncomplete) {
		t.Errorf("advance without before rating: err = %v, want ErrStepIncomplete", err)
	}
	if err := w.SetLoadBefore(3); err != nil {
		t.Fatal(err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("advance after rating selected: %v", err)
	}

	// Walk to the final rating step.
	if err := w.Skip(); err != nil {
		t.Fatal(err)
	}
	if err := w.Skip(); err != nil {
		t.Fatal(err)
	}
	w.SetTomorrowAnchor("inbox zero")
	if err := w.Next(); err != nil {
		t.Fatal(err)
	}

	if err := w.Next(); !errors.Is(err, ErrStepIncomplete) {
		t.Errorf("advance without after rating: err = %v, want ErrStepIncomplete", err)
	}
}

func TestWizard_AnchorStepBlocksBlankText(t *testing.T) {
	w := New(time.Now())
	if err := w.SetLoadBefore(5); err != nil {
		t.Fatal(err)
	}
	if err := w.Next(); err != nil {
		t.Fatal(err)
	}
	if err := w.Skip(); err != nil {
		t.Fatal(err)
	}
	if err := w.Skip(); err != nil {
		t.Fatal(err)
	}

	if w.Step() != StepTomorrowAnchor {
		t.Fatalf("step = %v, want StepTomorrowAnchor", w.Step())
	}
	w.SetTomorrowAnchor("   ")
	if err := w.Next(); !errors.Is(err, ErrStepIncomplete) {
		t.Errorf("advance with blank anchor: err = %v, want ErrStepIncomplete", err)
	}

	w.SetTomorrowAnchor("call the bank")
	if err := w.Next(); err != nil {
		t.Errorf("advance with anchor text: %v", err)
	}
}

func TestWizard_OnlyTextStepsSkippable(t *testing.T) {
	w := New(time.Now())
	if err := w.Skip(); !errors.Is(err, ErrStepNotSkippable) {
		t.Errorf("skip on rating step: err = %v, want ErrStepNotSkippable", err)
	}
}

func TestWizard_InvalidRatingRejected(t *testing.T) {
	w := New(time.Now())
	for _, r := range []int{0, 6, -1} {
		if err := w.SetLoadBefore(r); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("SetLoadBefore(%d) = %v, want ErrInvalidRating", r, err)
		}
	}
}

func TestWizard_FinishRequiresCompletion(t *testing.T) {
	w := New(time.Now())
	if _, err := w.Finish("user-1", time.Now()); !errors.Is(err, ErrRitualIncomplete) {
		t.Errorf("Finish mid-ritual: err = %v, want ErrRitualIncomplete", err)
	}
}
