// Package ai implements the external AI collaborator ports: proof
// verification (including chat-style re-verification), completion
// summarization, start-code extraction from images, and the schedule
// reordering oracle.
package ai

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// VerificationResult is the outcome of a proof verification call.
type VerificationResult struct {
	Completed bool   `json:"completed"`
	Feedback  string `json:"feedback"`
}

// ChatMessage represents a message in a re-verification conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Verifier judges whether a proof payload demonstrates goal completion.
type Verifier interface {
	// Verify judges a fresh proof submission against the goal description.
	Verify(ctx context.Context, goalDescription, proof string) (*VerificationResult, error)

	// VerifyFollowUp continues a re-verification conversation with the
	// full message history and returns the same result shape.
	VerifyFollowUp(ctx context.Context, goalDescription string, history []ChatMessage) (*VerificationResult, error)
}

// Summarizer produces short history labels for completed goals. Callers
// must tolerate failure by falling back to a truncated literal.
type Summarizer interface {
	Summarize(ctx context.Context, goalDescription string) (string, error)
}

// ErrNoCodeFound is returned when an image holds no recognizable start code.
var ErrNoCodeFound = errors.New("no valid code found in image")

// CodeExtractor reads a start code out of a captured image.
type CodeExtractor interface {
	ExtractCode(ctx context.Context, imageBase64 string) (string, error)
}

// OrderCandidate is one pending goal offered to the schedule oracle, in
// the caller's schedule order.
type OrderCandidate struct {
	GoalID      uuid.UUID
	Description string
}

// ScheduleOracle suggests a reordering of a day's pending goals.
type ScheduleOracle interface {
	SuggestOrder(ctx context.Context, candidates []OrderCandidate) ([]uuid.UUID, error)
}
