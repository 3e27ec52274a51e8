// Package report delivers the final deployment summary to the caller's
// evaluation callback.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
)

const defaultTimeout = 30 * time.Second

// Outcome is the best-effort result of one callback delivery. A failed
// delivery is data, not an error: the deployment itself may have succeeded
// even when the callback did not.
type Outcome struct {
	Delivered  bool
	StatusCode int
	// Body is the callback's response body as opaque text, it is not
	// guaranteed to be JSON.
	Body  string
	Error string
}

// Reporter is the interface the pipeline needs to deliver results.
type Reporter interface {
	Report(ctx context.Context, callbackURL string, result model.DeploymentResult) Outcome
}

// HTTPReporterConfig is the configuration for the HTTP reporter.
type HTTPReporterConfig struct {
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *HTTPReporterConfig) defaults() error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "report.HTTPReporter"})
	return nil
}

// HTTPReporter posts deployment results as JSON to callback URLs.
type HTTPReporter struct {
	httpClient *http.Client
	logger     log.Logger
}

// NewHTTPReporter creates a new HTTP reporter.
func NewHTTPReporter(cfg HTTPReporterConfig) (*HTTPReporter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &HTTPReporter{
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types (private, for the evaluation callback) ---

type resultJSON struct {
	Task         string   `json:"task"`
	Round        int      `json:"round"`
	Email        string   `json:"email,omitempty"`
	Nonce        string   `json:"nonce,omitempty"`
	RepoURL      string   `json:"repo_url"`
	PagesURL     string   `json:"pages_url"`
	CommitSHA    string   `json:"commit_sha"`
	FilesCreated []string `json:"files_created"`
	Status       string   `json:"status"`
	ErrorDetail  string   `json:"error_detail,omitempty"`
}

// Report posts the deployment result to the callback URL. Network failures
// and non-2xx responses are captured in the outcome, never raised.
func (r *HTTPReporter) Report(ctx context.Context, callbackURL string, result model.DeploymentResult) Outcome {
	body := resultJSON{
		Task:         result.TaskID,
		Round:        int(result.Round),
		Email:        result.Email,
		Nonce:        result.Nonce,
		RepoURL:      result.RepoURL,
		PagesURL:     result.PagesURL,
		CommitSHA:    result.CommitSHA,
		FilesCreated: result.FilesCreated,
		Status:       string(result.Status),
		ErrorDetail:  result.ErrorDetail,
	}
	if body.FilesCreated == nil {
		body.FilesCreated = []string{}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Outcome{Error: fmt.Sprintf("could not marshal payload: %s", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(data))
	if err != nil {
		return Outcome{Error: fmt.Sprintf("could not create request: %s", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warningf("Evaluation callback to %s failed: %s", callbackURL, err)
		return Outcome{Error: fmt.Sprintf("could not execute request: %s", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	outcome := Outcome{
		Delivered:  resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
	if !outcome.Delivered {
		outcome.Error = fmt.Sprintf("callback returned HTTP %d", resp.StatusCode)
		r.logger.Warningf("Evaluation callback to %s returned HTTP %d", callbackURL, resp.StatusCode)
	} else {
		r.logger.Debugf("Evaluation callback delivered to %s", callbackURL)
	}

	return outcome
}
