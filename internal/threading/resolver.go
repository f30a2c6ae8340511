// Package threading decides which stored conversation an incoming message
// belongs to.
package threading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/threadmail/internal/models"
	"github.com/welldanyogia/threadmail/internal/repository"
)

// DefaultSubjectWindow bounds how old a thread may be for a subject match
const DefaultSubjectWindow = 30 * 24 * time.Hour

// Tier names reported in a Resolution
const (
	TierDirectReply      = "direct_reply"
	TierReferenceChain   = "reference_chain"
	TierSubjectHeuristic = "subject_heuristic"
)

// Candidate holds the header fields used to place a message in a thread
type Candidate struct {
	MessageID  string
	InReplyTo  string
	References []string // oldest first
	Subject    string
}

// Strategy looks for an existing thread for c. ok is false when the
// strategy has no opinion; an error aborts resolution.
type Strategy func(ctx context.Context, c Candidate) (threadID string, ok bool, err error)

// Tier is a named strategy
type Tier struct {
	Name  string
	Match Strategy
}

// Resolution is the outcome of Resolve. Matched is false when the caller
// must start a new thread.
type Resolution struct {
	ThreadID string
	Matched  bool
	Tier     string
}

// MessageLookup finds the thread that owns a stored message
type MessageLookup interface {
	ThreadIDByMessageID(ctx context.Context, messageID string) (string, error)
}

// SubjectLookup finds the most recently active thread with a subject
type SubjectLookup interface {
	FindRecentBySubject(ctx context.Context, subject string, since time.Time) (*models.Thread, error)
}

// Resolver tries its tiers in order; the first match wins
type Resolver struct {
	tiers []Tier
}

// NewResolver creates a resolver over the given tiers
func NewResolver(tiers ...Tier) *Resolver {
	return &Resolver{tiers: tiers}
}

// NewDefaultResolver wires the header tiers followed by the subject fallback
func NewDefaultResolver(messages MessageLookup, threads SubjectLookup, window time.Duration) *Resolver {
	return NewResolver(
		Tier{Name: TierDirectReply, Match: DirectReply(messages)},
		Tier{Name: TierReferenceChain, Match: ReferenceChain(messages)},
		Tier{Name: TierSubjectHeuristic, Match: SubjectHeuristic(threads, window, time.Now)},
	)
}

// Resolve returns the thread c belongs to, or an unmatched Resolution
func (r *Resolver) Resolve(ctx context.Context, c Candidate) (Resolution, error) {
	for _, tier := range r.tiers {
		threadID, ok, err := tier.Match(ctx, c)
		if err != nil {
			return Resolution{}, fmt.Errorf("%s: %w", tier.Name, err)
		}
		if ok {
			return Resolution{ThreadID: threadID, Matched: true, Tier: tier.Name}, nil
		}
	}
	return Resolution{}, nil
}

// DirectReply matches the thread of the message named by In-Reply-To
func DirectReply(messages MessageLookup) Strategy {
	return func(ctx context.Context, c Candidate) (string, bool, error) {
		if c.InReplyTo == "" {
			return "", false, nil
		}
		return lookupThread(ctx, messages, c.InReplyTo)
	}
}

// ReferenceChain walks References from newest to oldest and matches the
// first stored message
func ReferenceChain(messages MessageLookup) Strategy {
	return func(ctx context.Context, c Candidate) (string, bool, error) {
		for i := len(c.References) - 1; i >= 0; i-- {
			threadID, ok, err := lookupThread(ctx, messages, c.References[i])
			if err != nil || ok {
				return threadID, ok, err
			}
		}
		return "", false, nil
	}
}

// SubjectHeuristic matches a thread whose stored subject equals the
// normalized subject of c and that was active within window of now.
// Unrelated conversations with the same subject inside the window merge.
func SubjectHeuristic(threads SubjectLookup, window time.Duration, now func() time.Time) Strategy {
	return func(ctx context.Context, c Candidate) (string, bool, error) {
		subject := NormalizeSubject(c.Subject)
		if subject == "" {
			return "", false, nil
		}

		thread, err := threads.FindRecentBySubject(ctx, subject, now().Add(-window))
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return thread.ID, true, nil
	}
}

func lookupThread(ctx context.Context, messages MessageLookup, messageID string) (string, bool, error) {
	threadID, err := messages.ThreadIDByMessageID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return threadID, true, nil
}
