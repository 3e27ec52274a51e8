package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/pagesmith/internal/config"
	"github.com/slok/pagesmith/internal/conventions"
	"github.com/slok/pagesmith/internal/deploy"
	"github.com/slok/pagesmith/internal/forge"
	"github.com/slok/pagesmith/internal/generation"
	"github.com/slok/pagesmith/internal/orchestrator"
	"github.com/slok/pagesmith/internal/publish"
	"github.com/slok/pagesmith/internal/report"
	"github.com/slok/pagesmith/internal/server"
	"github.com/slok/pagesmith/internal/storage"
	"github.com/slok/pagesmith/internal/storage/memory"
	"github.com/slok/pagesmith/internal/storage/sqlite"
)

// ServeCommand runs the task orchestration HTTP service.
type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr      string
	configPath      string
	owner           string
	branch          string
	generationURL   string
	generationModel string
	confirmGrace    time.Duration

	dispatchSecret   string
	githubToken      string
	generationAPIKey string
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Run the task orchestration HTTP service.")
	c.Cmd.Flag("listen", "HTTP listen address.").Default(":8080").StringVar(&c.listenAddr)
	c.Cmd.Flag("config", "Path to an optional YAML configuration file (overrides flags).").StringVar(&c.configPath)
	c.Cmd.Flag("owner", "Provider account that owns the created repositories.").Envar("PAGESMITH_OWNER").StringVar(&c.owner)
	c.Cmd.Flag("branch", "Branch sites are published and served from.").Default(conventions.DefaultBranch).StringVar(&c.branch)
	c.Cmd.Flag("generation-url", "Generation collaborator base URL.").Envar("PAGESMITH_GENERATION_URL").StringVar(&c.generationURL)
	c.Cmd.Flag("generation-model", "Generation collaborator model.").Envar("PAGESMITH_GENERATION_MODEL").StringVar(&c.generationModel)
	c.Cmd.Flag("confirm-grace", "Propagation grace delay before the deployment commit lookup.").Default(conventions.DefaultConfirmGrace.String()).DurationVar(&c.confirmGrace)

	// Secrets are required process-wide configuration: their absence fails
	// here at startup, never mid-pipeline.
	c.Cmd.Flag("dispatch-secret", "Shared secret inbound task requests must present.").Envar("PAGESMITH_DISPATCH_SECRET").Required().StringVar(&c.dispatchSecret)
	c.Cmd.Flag("github-token", "Bearer credential for the repository provider API.").Envar("PAGESMITH_GITHUB_TOKEN").Required().StringVar(&c.githubToken)
	c.Cmd.Flag("generation-api-key", "Bearer credential for the generation collaborator.").Envar("PAGESMITH_GENERATION_API_KEY").Required().StringVar(&c.generationAPIKey)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.serviceConfig()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	// Conversation store: in-memory by default, SQLite with --persist so
	// round-2 continuity survives restarts.
	var store storage.ConversationRepository
	if c.rootCmd.Persist {
		sqliteStore, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: c.rootCmd.DBPath,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create SQLite store: %w", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	} else {
		memStore, err := memory.NewRepository(memory.RepositoryConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create memory store: %w", err)
		}
		store = memStore
	}

	forgeClient, err := forge.NewClient(forge.ClientConfig{
		Owner:      cfg.Owner,
		Token:      c.githubToken,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create forge client: %w", err)
	}

	generator, err := generation.NewClient(generation.ClientConfig{
		BaseURL:    cfg.GenerationURL,
		APIKey:     c.generationAPIKey,
		Model:      cfg.GenerationModel,
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create generation client: %w", err)
	}

	publisher, err := publish.NewPublisher(publish.PublisherConfig{
		Forge:  forgeClient,
		Branch: cfg.Branch,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create publisher: %w", err)
	}

	confirmer, err := deploy.NewConfirmer(deploy.ConfirmerConfig{
		Forge:  forgeClient,
		Grace:  cfg.ConfirmGrace,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create confirmer: %w", err)
	}

	reporter, err := report.NewHTTPReporter(report.HTTPReporterConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create reporter: %w", err)
	}

	orch, err := orchestrator.NewOrchestrator(orchestrator.OrchestratorConfig{
		Store:     store,
		Generator: generator,
		Forge:     forgeClient,
		Publisher: publisher,
		Confirmer: confirmer,
		Reporter:  reporter,
		Owner:     cfg.Owner,
		Branch:    cfg.Branch,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create orchestrator: %w", err)
	}

	handler, err := server.New(server.Config{
		Runner:         orch,
		DispatchSecret: c.dispatchSecret,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create HTTP handler: %w", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("HTTP server listening on %s", cfg.ListenAddr)
				err := httpServer.ListenAndServe()
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			},
		)
	}

	// Context cancellation (from parent signal handling).
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				<-ctx.Done()
				return ctx.Err()
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// serviceConfig merges the flag-based configuration with the optional
// configuration file. The file, when given, wins.
func (c ServeCommand) serviceConfig() (config.Config, error) {
	if c.configPath != "" {
		repo := config.NewYAMLRepository(os.DirFS(filepath.Dir(c.configPath)))
		return repo.GetConfig(filepath.Base(c.configPath))
	}

	if c.owner == "" {
		return config.Config{}, fmt.Errorf("owner is required (flag or config file)")
	}
	if c.generationURL == "" {
		return config.Config{}, fmt.Errorf("generation URL is required (flag or config file)")
	}

	return config.Config{
		ListenAddr:      c.listenAddr,
		Owner:           c.owner,
		Branch:          c.branch,
		GenerationURL:   c.generationURL,
		GenerationModel: c.generationModel,
		ConfirmGrace:    c.confirmGrace,
	}, nil
}
