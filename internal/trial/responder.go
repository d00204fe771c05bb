package trial

import (
	"context"
	"errors"
	"log/slog"
)

// Responder produces the AI payload for a recognized question.
type Responder interface {
	Respond(ctx context.Context, e Entry, normalized string) (Payload, error)
}

// FrozenResponder serves payloads from a precomputed ResponseBook.
type FrozenResponder struct {
	Book ResponseBook
}

// Respond returns the canned payload or ErrNoPrecomputedResponse.
func (f FrozenResponder) Respond(_ context.Context, e Entry, normalized string) (Payload, error) {
	p, ok := f.Book[normalized]
	if !ok {
		return Payload{}, ErrNoPrecomputedResponse
	}
	return p, nil
}

// LiveFallback serves frozen payloads first and asks Live only for questions
// that have none. A nil Live keeps the frozen-only behavior.
type LiveFallback struct {
	Frozen FrozenResponder
	Live   Responder
}

// Respond implements Responder.
func (l LiveFallback) Respond(ctx context.Context, e Entry, normalized string) (Payload, error) {
	p, err := l.Frozen.Respond(ctx, e, normalized)
	if err == nil || !errors.Is(err, ErrNoPrecomputedResponse) || l.Live == nil {
		return p, err
	}
	slog.Info("no frozen payload, asking live responder", "question_id", e.ID)
	return l.Live.Respond(ctx, e, normalized)
}
