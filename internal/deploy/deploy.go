// Package deploy confirms that a published deployment is queryable on the
// provider side.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
)

// CommitForge is the subset of the provider client the confirmer needs.
type CommitForge interface {
	LatestCommit(ctx context.Context, repo, branch string) (string, error)
}

// ConfirmerConfig is the configuration for the confirmer.
type ConfirmerConfig struct {
	Forge CommitForge
	// Grace is how long to wait before the single commit lookup, covering
	// the provider's write and build propagation delay.
	Grace  time.Duration
	Logger log.Logger
}

func (c *ConfirmerConfig) defaults() error {
	if c.Forge == nil {
		return fmt.Errorf("forge client is required")
	}
	if c.Grace < 0 {
		return fmt.Errorf("grace delay can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "deploy.Confirmer"})
	return nil
}

// Confirmer establishes deployment readiness: it waits a fixed grace period
// for provider-side propagation, then queries the latest commit exactly once.
// There is no retry loop, a failed lookup is the caller's to handle.
type Confirmer struct {
	forge  CommitForge
	grace  time.Duration
	logger log.Logger
}

// NewConfirmer creates a new confirmer.
func NewConfirmer(cfg ConfirmerConfig) (*Confirmer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Confirmer{
		forge:  cfg.Forge,
		grace:  cfg.Grace,
		logger: cfg.Logger,
	}, nil
}

// AwaitCommit waits the grace period and resolves the deployment commit.
func (c *Confirmer) AwaitCommit(ctx context.Context, repo, branch string) (string, error) {
	if c.grace > 0 {
		c.logger.Debugf("Waiting %s before commit lookup on %s", c.grace, repo)
		timer := time.NewTimer(c.grace)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for propagation: %w: %w", ctx.Err(), model.ErrCommitLookup)
		case <-timer.C:
		}
	}

	sha, err := c.forge.LatestCommit(ctx, repo, branch)
	if err != nil {
		return "", fmt.Errorf("resolving deployment commit: %w: %w", err, model.ErrCommitLookup)
	}

	c.logger.Debugf("Deployment commit on %s is %s", repo, sha)
	return sha, nil
}
