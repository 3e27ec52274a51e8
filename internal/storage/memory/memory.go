package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
	// MutationHold widens the per-task critical section. Used only by tests
	// to surface interleaving between concurrent rounds.
	MutationHold time.Duration
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.ConversationRepository.
// History lives for the process's lifetime only.
type Repository struct {
	conversations map[string][]model.Message
	mu            sync.Mutex
	taskMus       map[string]*sync.Mutex
	hold          time.Duration
	logger        log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		conversations: make(map[string][]model.Message),
		taskMus:       make(map[string]*sync.Mutex),
		hold:          cfg.MutationHold,
		logger:        cfg.Logger,
	}, nil
}

// taskMu returns the mutex that serializes mutations for one task ID.
func (r *Repository) taskMu(taskID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	mu, ok := r.taskMus[taskID]
	if !ok {
		mu = &sync.Mutex{}
		r.taskMus[taskID] = mu
	}
	return mu
}

// Reset initializes a task's history to empty.
func (r *Repository) Reset(ctx context.Context, taskID string) error {
	mu := r.taskMu(taskID)
	mu.Lock()
	defer mu.Unlock()

	r.mu.Lock()
	r.conversations[taskID] = []model.Message{}
	r.mu.Unlock()

	r.logger.Debugf("Reset conversation for task %s", taskID)
	return nil
}

// Get returns a copy of a task's history.
func (r *Repository) Get(ctx context.Context, taskID string) ([]model.Message, error) {
	mu := r.taskMu(taskID)
	mu.Lock()
	defer mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	messages, ok := r.conversations[taskID]
	if !ok {
		return nil, fmt.Errorf("conversation for task %s: %w", taskID, model.ErrNotFound)
	}

	// Return a copy.
	messagesCopy := make([]model.Message, len(messages))
	copy(messagesCopy, messages)
	return messagesCopy, nil
}

// Append extends a task's history preserving order.
func (r *Repository) Append(ctx context.Context, taskID string, messages []model.Message) error {
	mu := r.taskMu(taskID)
	mu.Lock()
	defer mu.Unlock()

	if r.hold > 0 {
		time.Sleep(r.hold)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conversations[taskID]
	if !ok {
		return fmt.Errorf("conversation for task %s: %w", taskID, model.ErrNotFound)
	}

	r.conversations[taskID] = append(current, messages...)
	r.logger.Debugf("Appended %d messages to conversation for task %s", len(messages), taskID)

	return nil
}
