// Package reflection implements the dream reflection proxy: one piece of user
// text in, one piece of generated prose out. It holds no state between calls.
package reflection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trynightnotes/nightnotes/internal/llm"
	"github.com/trynightnotes/nightnotes/internal/types"
)

// ErrEmptyDream is returned when the dream text is missing or whitespace-only.
// The upstream service is never called in that case.
var ErrEmptyDream = errors.New("dream text is required")

// ErrInvalidMood is returned when the mood tag is not one of the accepted set.
var ErrInvalidMood = errors.New("unrecognized mood tag")

// maxReflectionTokens bounds the generated reflection (2-4 short paragraphs).
const maxReflectionTokens = 600

// systemPrompt fixes the tone and content contract for every reflection: no
// predictions, no fear-based readings, flowing prose, one closing question.
const systemPrompt = `You are a gentle, thoughtful dream reflection assistant called Night Notes. Your role is to help people explore the possible emotional or symbolic meaning of their dreams in a grounded, reassuring way.

Core principles:
- Focus on emotions, transitions, and unresolved feelings
- Never predict the future or make definitive claims
- Avoid fear-based interpretations (no death, disaster, doom)
- Use phrases like "often relates to", "may reflect", "consider whether"
- Keep responses warm, calm, and introspective
- Write 2-4 short paragraphs maximum
- Always end with a single open-ended reflection question
- No medical or psychological diagnosis
- Never use bullet points or numbered lists — write in flowing prose
- Write as though you are a thoughtful, warm friend — not a therapist or fortune teller

Respond in a warm, human tone as if you're a thoughtful friend helping someone understand their inner world.`

// Reflector forwards dream text to the text-generation service.
type Reflector struct {
	client llm.Client
}

// NewReflector creates a reflection proxy over the given client.
func NewReflector(client llm.Client) *Reflector {
	return &Reflector{client: client}
}

// Reflect validates the request, composes the prompt, and returns the
// generated reflection verbatim. A single upstream call is made; any upstream
// failure surfaces immediately to the caller.
func (r *Reflector) Reflect(ctx context.Context, req types.ReflectRequest) (string, error) {
	dream := strings.TrimSpace(req.Dream)
	if dream == "" {
		return "", ErrEmptyDream
	}

	mood := strings.TrimSpace(req.Mood)
	if mood != "" && !validMood(mood) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMood, mood)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dream: %s", dream)
	if mood != "" {
		fmt.Fprintf(&sb, "\n\nMood upon waking: %s", mood)
	}
	sb.WriteString("\n\nProvide a gentle, reflective interpretation of this dream.")

	return r.client.Complete(ctx, systemPrompt, sb.String(), maxReflectionTokens)
}

func validMood(mood string) bool {
	for _, m := range types.Moods {
		if types.Mood(mood) == m {
			return true
		}
	}
	return false
}
