// Package mailer sends the morning digest: last night's load drop, today's
// anchor, and the current streak, delivered to every opted-in profile. The
// external scheduler decides when a batch runs.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trynightnotes/nightnotes/internal/store"
	"github.com/trynightnotes/nightnotes/internal/types"
)

// Sender delivers one composed email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Digest runs morning digest batches.
type Digest struct {
	store  store.Store
	sender Sender
}

// NewDigest creates a digest runner over the given store and sender.
func NewDigest(s store.Store, sender Sender) *Digest {
	return &Digest{store: s, sender: sender}
}

// SendMorning emails every opted-in profile whose latest session completed
// within the last day. A profile with no recent session is skipped, and a
// per-profile send failure skips that profile rather than aborting the batch.
func (d *Digest) SendMorning(ctx context.Context, now time.Time) (*types.DigestResult, error) {
	profiles, err := d.store.ListMorningEmailProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	result := &types.DigestResult{Sent: []string{}}
	cutoff := now.AddDate(0, 0, -1)

	for _, profile := range profiles {
		session, err := d.store.LatestSession(ctx, profile.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load latest session: %w", err)
		}
		if session.CompletedAt == nil || session.CompletedAt.Before(cutoff) {
			// Nothing from last night; no digest.
			continue
		}

		streak, err := d.store.GetStreak(ctx, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("load streak: %w", err)
		}

		subject, html := compose(session, streak.CurrentStreak)
		if err := d.sender.Send(ctx, profile.Email, subject, html); err != nil {
			slog.Warn("morning digest send failed",
				"user_id", profile.ID,
				"error", err,
			)
			continue
		}
		result.Sent = append(result.Sent, profile.Email)
	}

	return result, nil
}

// compose builds the digest subject and body from last night's session.
func compose(session *types.Session, currentStreak int) (subject, html string) {
	delta := 0
	if session.LoadDelta != nil {
		delta = *session.LoadDelta
	}

	subject = fmt.Sprintf("−%d last night", delta)
	if session.TomorrowAnchor != "" {
		subject += fmt.Sprintf(" · %s", session.TomorrowAnchor)
	}

	anchorBlock := ""
	if session.TomorrowAnchor != "" {
		anchorBlock = fmt.Sprintf(`<p class="label">Today's anchor</p><p class="anchor">%s</p>`, session.TomorrowAnchor)
	}
	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
<p class="brand">Night Notes</p>
<p class="delta">−%d</p>
<p class="loads">%d → %d last night</p>
%s<p class="streak"><strong>%d</strong> night streak</p>
</body>
</html>`, delta, session.LoadBefore, session.LoadAfter, anchorBlock, currentStreak)

	return subject, html
}
