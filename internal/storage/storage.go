package storage

import (
	"context"

	"github.com/slok/pagesmith/internal/model"
)

// ConversationRepository is the interface for per-task conversation history.
//
// Implementations must serialize Reset/Get/Append per task ID: two concurrent
// rounds for the same task must not interleave history mutations. Different
// task IDs must not contend with each other.
type ConversationRepository interface {
	// Reset clears or initializes a task's history to empty. Used only for
	// round 1.
	Reset(ctx context.Context, taskID string) error
	// Get returns a task's current history. Returns model.ErrNotFound when
	// no entry exists for the task.
	Get(ctx context.Context, taskID string) ([]model.Message, error)
	// Append extends a task's history preserving order. Returns
	// model.ErrNotFound when no entry exists for the task.
	Append(ctx context.Context, taskID string, messages []model.Message) error
}
