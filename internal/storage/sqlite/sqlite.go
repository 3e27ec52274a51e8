package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
	"github.com/slok/pagesmith/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.ConversationRepository.
// Unlike the memory repository, history survives process restarts so a
// round-2 task can continue a round-1 conversation after a redeploy.
type Repository struct {
	db      *sql.DB
	mu      sync.Mutex
	taskMus map[string]*sync.Mutex
	logger  log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{
		db:      db,
		taskMus: make(map[string]*sync.Mutex),
		logger:  cfg.Logger,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (task_id, created_at) VALUES (?, ?)
		ON CONFLICT (task_id) DO NOTHING
	`, taskID, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("could not upsert conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("could not clear messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Reset conversation for task %s", taskID)
	return nil
}

// Get returns a task's history ordered by sequence.
func (r *Repository) Get(ctx context.Context, taskID string) ([]model.Message, error) {
	mu := r.taskMu(taskID)
	mu.Lock()
	defer mu.Unlock()

	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE task_id = ?`, taskID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation for task %s: %w", taskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query conversation: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content FROM messages WHERE task_id = ? ORDER BY seq ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("could not scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate messages: %w", err)
	}

	return messages, nil
}

// Append extends a task's history preserving order.
func (r *Repository) Append(ctx context.Context, taskID string, messages []model.Message) error {
	mu := r.taskMu(taskID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE task_id = ?`, taskID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("conversation for task %s: %w", taskID, model.ErrNotFound)
		}
		return fmt.Errorf("could not query conversation: %w", err)
	}

	var next int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE task_id = ?
	`, taskID).Scan(&next)
	if err != nil {
		return fmt.Errorf("could not compute next sequence: %w", err)
	}

	for i, m := range messages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (task_id, seq, role, content) VALUES (?, ?, ?, ?)
		`, taskID, next+int64(i), m.Role, m.Content)
		if err != nil {
			return fmt.Errorf("could not insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Appended %d messages to conversation for task %s", len(messages), taskID)
	return nil
}
