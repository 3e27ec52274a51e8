// Package publish upserts generated files into a repository, one file at a
// time, resolving create-vs-update per file.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
)

// ContentsForge is the subset of the provider client the publisher needs.
type ContentsForge interface {
	GetFileSHA(ctx context.Context, repo, path, branch string) (string, error)
	PutFile(ctx context.Context, repo, path, branch, message, transportContent, sha string) error
}

// PublisherConfig is the configuration for the publisher.
type PublisherConfig struct {
	Forge  ContentsForge
	Branch string
	Logger log.Logger
}

func (c *PublisherConfig) defaults() error {
	if c.Forge == nil {
		return fmt.Errorf("forge client is required")
	}
	if c.Branch == "" {
		return fmt.Errorf("branch is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "publish.Publisher"})
	return nil
}

// Publisher writes file sets to repositories.
type Publisher struct {
	forge  ContentsForge
	branch string
	logger log.Logger
}

// NewPublisher creates a new publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Publisher{
		forge:  cfg.Forge,
		branch: cfg.Branch,
		logger: cfg.Logger,
	}, nil
}

// Publish upserts every file of the set into the repository, independently
// and in deterministic path order. A single file's failure does not abort
// the batch: remaining files are still attempted and the report carries the
// per-file outcomes. There is no all-or-nothing guarantee across the set.
func (p *Publisher) Publish(ctx context.Context, repo string, files model.FileSet, round model.Round) (*model.PublishReport, error) {
	if err := files.Validate(); err != nil {
		return nil, fmt.Errorf("invalid file set: %w", err)
	}

	report := &model.PublishReport{Success: true}

	for _, path := range files.Paths() {
		file := files[path]
		result := model.FilePublishResult{Path: path}

		err := p.publishFile(ctx, repo, path, file, round, &result)
		if err != nil {
			p.logger.WithValues(log.Kv{"repo": repo, "path": path}).Errorf("Could not publish file: %s", err)
			result.Error = err.Error()
			report.Success = false
		}

		report.Files = append(report.Files, result)
	}

	p.logger.WithValues(log.Kv{"repo": repo}).Infof("Published %d/%d files", len(report.Published()), len(files))
	return report, nil
}

func (p *Publisher) publishFile(ctx context.Context, repo, path string, file model.GeneratedFile, round model.Round, result *model.FilePublishResult) error {
	// The provider requires the current content identifier to overwrite an
	// existing file, so look it up first.
	sha, err := p.forge.GetFileSHA(ctx, repo, path, p.branch)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("looking up current contents: %w", err)
	}
	result.Updated = sha != ""

	err = p.forge.PutFile(ctx, repo, path, p.branch, commitMessage(path, round), file.Content.Transport(), sha)
	if err != nil {
		return fmt.Errorf("upserting contents: %w", err)
	}

	return nil
}

// commitMessage returns the audit-trail wording for one file write. Round 1
// commits read as creation, round 2 commits as revision.
func commitMessage(path string, round model.Round) string {
	if round == model.RoundRevision {
		return fmt.Sprintf("Revise %s", path)
	}
	return fmt.Sprintf("Create %s", path)
}
