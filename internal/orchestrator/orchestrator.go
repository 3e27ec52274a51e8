// Package orchestrator sequences a task through the full pipeline:
// conversation handling, generation, provisioning, publishing, hosting
// enablement, deployment confirmation and evaluation reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/slok/pagesmith/internal/conventions"
	"github.com/slok/pagesmith/internal/generation"
	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
	"github.com/slok/pagesmith/internal/prompt"
	"github.com/slok/pagesmith/internal/report"
	"github.com/slok/pagesmith/internal/storage"
)

// ProvisionForge is the subset of the provider client used for repository
// provisioning and hosting enablement.
type ProvisionForge interface {
	CreateRepo(ctx context.Context, name string) error
	RepoExists(ctx context.Context, name string) (bool, error)
	EnablePages(ctx context.Context, repo, branch string) error
}

// Publisher is the interface for upserting a file set into a repository.
type Publisher interface {
	Publish(ctx context.Context, repo string, files model.FileSet, round model.Round) (*model.PublishReport, error)
}

// Confirmer is the interface for resolving the deployment commit.
type Confirmer interface {
	AwaitCommit(ctx context.Context, repo, branch string) (string, error)
}

// Result is the outcome of one orchestration run: the deployment itself plus
// the best-effort delivery outcome of the evaluation callback. The two are
// deliberately separate, a failed callback does not fail a deployment.
type Result struct {
	Deployment model.DeploymentResult
	Reporting  report.Outcome
}

// OrchestratorConfig is the configuration for the orchestrator.
type OrchestratorConfig struct {
	Store     storage.ConversationRepository
	Generator generation.Generator
	Forge     ProvisionForge
	Publisher Publisher
	Confirmer Confirmer
	Reporter  report.Reporter
	// Owner is the provider account repositories live under.
	Owner string
	// Branch is the branch sites are published and served from.
	Branch string
	Logger log.Logger
}

func (c *OrchestratorConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("conversation store is required")
	}
	if c.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if c.Forge == nil {
		return fmt.Errorf("forge client is required")
	}
	if c.Publisher == nil {
		return fmt.Errorf("publisher is required")
	}
	if c.Confirmer == nil {
		return fmt.Errorf("confirmer is required")
	}
	if c.Reporter == nil {
		return fmt.Errorf("reporter is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Branch == "" {
		c.Branch = conventions.DefaultBranch
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "orchestrator.Orchestrator"})
	return nil
}

// Orchestrator runs tasks end to end.
type Orchestrator struct {
	store     storage.ConversationRepository
	generator generation.Generator
	forge     ProvisionForge
	publisher Publisher
	confirmer Confirmer
	reporter  report.Reporter
	owner     string
	branch    string
	logger    log.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Orchestrator{
		store:     cfg.Store,
		generator: cfg.Generator,
		forge:     cfg.Forge,
		publisher: cfg.Publisher,
		confirmer: cfg.Confirmer,
		reporter:  cfg.Reporter,
		owner:     cfg.Owner,
		branch:    cfg.Branch,
		logger:    cfg.Logger,
	}, nil
}

// Run executes one orchestration run for a task.
//
// Round 1 creates the repository and enables hosting, round 2 revises an
// existing one and requires the round-1 conversation history to be present.
// Fatal failures (generation, provisioning, verification) stop the pipeline.
// Degradations (partial publish, commit lookup failure) are accumulated into
// the result instead. The evaluation callback is always attempted, even for
// failed runs: reporting a failed deployment beats reporting nothing.
// Nothing is retried, a retry is a new invocation with the same task ID.
func (o *Orchestrator) Run(ctx context.Context, task model.Task) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	logger := o.logger.WithValues(log.Kv{
		"task":  task.ID,
		"round": int(task.Round),
		"run":   ulid.Make().String(),
	})
	repoName := conventions.RepoName(task.ID)

	// Conversation history. Round 1 always starts from empty, round 2
	// without a stored round 1 is a caller error and aborts before any
	// generation call is made.
	var history []model.Message
	if task.Round == model.RoundInitial {
		if err := o.store.Reset(ctx, task.ID); err != nil {
			return o.fail(ctx, logger, task, repoName, fmt.Errorf("resetting conversation: %w", err))
		}
	} else {
		var err error
		history, err = o.store.Get(ctx, task.ID)
		if err != nil {
			return o.fail(ctx, logger, task, repoName, fmt.Errorf("loading conversation: %w", err))
		}
	}

	// Generation.
	logger.Infof("Generating site content")
	promptText := prompt.Compose(task.Brief, task.Round, task.Checks, task.Attachments)
	generated, err := o.generator.Generate(ctx, promptText, history)
	if err != nil {
		return o.fail(ctx, logger, task, repoName, fmt.Errorf("generating content: %w", err))
	}
	if generated.Summary != "" {
		logger.Debugf("Collaborator summary: %s", generated.Summary)
	}

	if err := o.store.Append(ctx, task.ID, generated.Messages); err != nil {
		return o.fail(ctx, logger, task, repoName, fmt.Errorf("appending conversation: %w", err))
	}

	// Inline attachments become binary repository files next to the
	// generated ones. A malformed attachment degrades the run, it does not
	// abort it.
	var issues []string
	attachmentIssues := materializeAttachments(logger, task.Attachments, generated.Files)
	issues = append(issues, attachmentIssues...)

	// Provisioning (round 1 only): creation is not idempotent and a second
	// creation for the same repository is a provider error.
	if task.Round == model.RoundInitial {
		logger.Infof("Creating repository %s/%s", o.owner, repoName)
		if err := o.forge.CreateRepo(ctx, repoName); err != nil {
			return o.fail(ctx, logger, task, repoName, err)
		}
	}

	// Verification gates publishing on both rounds: creation can be
	// eventually consistent and round 2 requires the repository to already
	// be there.
	exists, err := o.forge.RepoExists(ctx, repoName)
	if err != nil {
		return o.fail(ctx, logger, task, repoName, fmt.Errorf("verifying repository: %w", err))
	}
	if !exists {
		return o.fail(ctx, logger, task, repoName, fmt.Errorf("repository %q: %w", repoName, model.ErrNotFound))
	}

	// Publishing. Partial failure is degradation, not abortion.
	logger.Infof("Publishing %d files to %s/%s", len(generated.Files), o.owner, repoName)
	pubReport, err := o.publisher.Publish(ctx, repoName, generated.Files, task.Round)
	if err != nil {
		return o.fail(ctx, logger, task, repoName, fmt.Errorf("publishing files: %w", err))
	}
	if !pubReport.Success {
		issues = append(issues, publishIssues(pubReport)...)
	}

	// Hosting enablement (round 1 only), after the first publish.
	if task.Round == model.RoundInitial {
		if err := o.forge.EnablePages(ctx, repoName, o.branch); err != nil {
			return o.fail(ctx, logger, task, repoName, fmt.Errorf("enabling hosting: %w", err))
		}
	}

	// Confirmation. A missing commit degrades the run and leaves the SHA
	// empty, re-running is the caller's call.
	commitSHA, err := o.confirmer.AwaitCommit(ctx, repoName, o.branch)
	if err != nil {
		logger.Warningf("Could not confirm deployment commit: %s", err)
		issues = append(issues, err.Error())
	}

	result := model.DeploymentResult{
		TaskID:       task.ID,
		Round:        task.Round,
		Email:        task.Email,
		Nonce:        task.Nonce,
		RepoURL:      conventions.RepoURL(o.owner, repoName),
		PagesURL:     conventions.PagesURL(o.owner, repoName),
		CommitSHA:    commitSHA,
		FilesCreated: pubReport.Published(),
		Status:       model.DeploymentStatusSuccess,
		ErrorDetail:  strings.Join(issues, "; "),
	}
	if len(issues) > 0 {
		result.Status = model.DeploymentStatusError
	}

	outcome := o.report(ctx, logger, task, result)

	logger.Infof("Run finished with status %q", result.Status)
	return &Result{Deployment: result, Reporting: outcome}, nil
}

// fail terminates a run: it builds the error-shaped result, attempts a
// best-effort evaluation report and returns the original error.
func (o *Orchestrator) fail(ctx context.Context, logger log.Logger, task model.Task, repoName string, runErr error) (*Result, error) {
	logger.Errorf("Run failed: %s", runErr)

	result := model.DeploymentResult{
		TaskID:       task.ID,
		Round:        task.Round,
		Email:        task.Email,
		Nonce:        task.Nonce,
		RepoURL:      conventions.RepoURL(o.owner, repoName),
		PagesURL:     conventions.PagesURL(o.owner, repoName),
		FilesCreated: []string{},
		Status:       model.DeploymentStatusError,
		ErrorDetail:  runErr.Error(),
	}

	outcome := o.report(ctx, logger, task, result)

	return &Result{Deployment: result, Reporting: outcome}, runErr
}

func (o *Orchestrator) report(ctx context.Context, logger log.Logger, task model.Task, result model.DeploymentResult) report.Outcome {
	if task.EvaluationURL == "" {
		return report.Outcome{}
	}

	outcome := o.reporter.Report(ctx, task.EvaluationURL, result)
	if !outcome.Delivered {
		logger.Warningf("Evaluation report not delivered: %s", outcome.Error)
	}
	return outcome
}

// materializeAttachments decodes inline data-URL attachments into binary
// files of the set. Returns the issues found, one per unusable attachment.
func materializeAttachments(logger log.Logger, attachments []model.Attachment, files model.FileSet) []string {
	var issues []string
	for _, a := range attachments {
		if !a.Inline() {
			continue
		}

		mediaType, payload, err := a.Decode()
		if err != nil {
			issues = append(issues, err.Error())
			continue
		}

		err = files.Add(model.GeneratedFile{Name: a.Name, Content: model.BinaryContent(payload)})
		if err != nil {
			if errors.Is(err, model.ErrAlreadyExists) {
				// The collaborator already produced this path, its version wins.
				logger.Debugf("Attachment %q already generated, keeping generated version", a.Name)
				continue
			}
			issues = append(issues, fmt.Sprintf("attachment %q: %s", a.Name, err))
			continue
		}

		logger.Debugf("Materialized attachment %q (%s, %d bytes)", a.Name, mediaType, len(payload))
	}
	return issues
}

func publishIssues(r *model.PublishReport) []string {
	var issues []string
	for _, f := range r.Files {
		if f.Error != "" {
			issues = append(issues, fmt.Sprintf("publish %s: %s", f.Path, f.Error))
		}
	}
	return issues
}
