// Package forge implements the source-hosting provider client: repository
// CRUD, content upload, Pages enablement and commit lookup over the GitHub
// REST API.
package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
)

const defaultAPIBaseURL = "https://api.github.com"

// ClientConfig configures the GitHub client.
type ClientConfig struct {
	// Owner is the account that owns every repository this service creates.
	Owner string
	// Token is the bearer credential for the API.
	Token string
	// HTTPClient is the HTTP client for requests.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "forge.GitHub"})
	return nil
}

// Client is a GitHub REST API client scoped to a single owner account.
type Client struct {
	owner      string
	token      string
	httpClient *http.Client
	logger     log.Logger

	// Base URL (overridable for testing).
	apiBaseURL string
}

// NewClient creates a new GitHub client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{
		owner:      cfg.Owner,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		apiBaseURL: defaultAPIBaseURL,
	}, nil
}

// NewClientWithBaseURL creates a client with a custom API base URL (for testing).
func NewClientWithBaseURL(cfg ClientConfig, apiBaseURL string) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	c.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	return c, nil
}

// Owner returns the account every repository is created under.
func (c *Client) Owner() string { return c.owner }

// --- JSON wire types (private, for the GitHub API) ---

type createRepoJSON struct {
	Name     string `json:"name"`
	Private  bool   `json:"private"`
	AutoInit bool   `json:"auto_init"`
}

type contentsGetJSON struct {
	SHA string `json:"sha"`
}

type contentsPutJSON struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type enablePagesJSON struct {
	Source pagesSourceJSON `json:"source"`
}

type pagesSourceJSON struct {
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

type commitJSON struct {
	SHA string `json:"sha"`
}

// CreateRepo creates a public, auto-initialized repository under the owner
// account. Creating an existing repository is an error, the provider does
// not treat creation as idempotent and neither do we.
func (c *Client) CreateRepo(ctx context.Context, name string) error {
	body := createRepoJSON{Name: name, Private: false, AutoInit: true}

	status, data, err := c.do(ctx, http.MethodPost, "/user/repos", body)
	if err != nil {
		return fmt.Errorf("creating repository %q: %w: %w", name, err, model.ErrRepositoryCreate)
	}
	switch status {
	case http.StatusCreated:
		c.logger.Debugf("Created repository %s/%s", c.owner, name)
		return nil
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("repository %q: %w: %w", name, model.ErrAlreadyExists, model.ErrRepositoryCreate)
	default:
		return fmt.Errorf("creating repository %q: HTTP %d (%s): %w", name, status, truncate(data), model.ErrRepositoryCreate)
	}
}

// RepoExists checks provider-side whether a repository exists.
func (c *Client) RepoExists(ctx context.Context, name string) (bool, error) {
	status, data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", c.owner, name), nil)
	if err != nil {
		return false, fmt.Errorf("getting repository %q: %w", name, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("getting repository %q: HTTP %d (%s)", name, status, truncate(data))
	}
}

// GetFileSHA returns the current content identifier of a file in the
// repository, required by the provider to overwrite it safely. Returns
// model.ErrNotFound when the file does not exist.
func (c *Client) GetFileSHA(ctx context.Context, repo, path, branch string) (string, error) {
	p := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", c.owner, repo, escapePath(path), url.QueryEscape(branch))
	status, data, err := c.do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return "", fmt.Errorf("getting contents of %q: %w", path, err)
	}
	switch status {
	case http.StatusOK:
		var contents contentsGetJSON
		if err := json.Unmarshal(data, &contents); err != nil {
			return "", fmt.Errorf("parsing contents of %q: %w", path, err)
		}
		if contents.SHA == "" {
			return "", fmt.Errorf("contents of %q missing sha: %w", path, model.ErrNotValid)
		}
		return contents.SHA, nil
	case http.StatusNotFound:
		return "", fmt.Errorf("file %q: %w", path, model.ErrNotFound)
	default:
		return "", fmt.Errorf("getting contents of %q: HTTP %d (%s)", path, status, truncate(data))
	}
}

// PutFile writes a file to the repository. An empty sha creates the file, a
// non-empty sha updates the existing one.
func (c *Client) PutFile(ctx context.Context, repo, path, branch, message, transportContent, sha string) error {
	body := contentsPutJSON{
		Message: message,
		Content: transportContent,
		Branch:  branch,
		SHA:     sha,
	}

	p := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, escapePath(path))
	status, data, err := c.do(ctx, http.MethodPut, p, body)
	if err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("writing %q: HTTP %d (%s)", path, status, truncate(data))
	}

	return nil
}

// EnablePages enables static-site serving from the root of the given branch.
// An already-enabled site is not an error, the end state is what matters.
func (c *Client) EnablePages(ctx context.Context, repo, branch string) error {
	body := enablePagesJSON{Source: pagesSourceJSON{Branch: branch, Path: "/"}}

	p := fmt.Sprintf("/repos/%s/%s/pages", c.owner, repo)
	status, data, err := c.do(ctx, http.MethodPost, p, body)
	if err != nil {
		return fmt.Errorf("enabling pages on %q: %w", repo, err)
	}
	if status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("enabling pages on %q: HTTP %d (%s)", repo, status, truncate(data))
	}

	c.logger.Debugf("Pages enabled on %s/%s (%s)", c.owner, repo, branch)
	return nil
}

// LatestCommit returns the SHA of the newest commit on a branch.
func (c *Client) LatestCommit(ctx context.Context, repo, branch string) (string, error) {
	p := fmt.Sprintf("/repos/%s/%s/commits/%s", c.owner, repo, url.PathEscape(branch))
	status, data, err := c.do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return "", fmt.Errorf("getting latest commit of %q: %w", repo, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("getting latest commit of %q: HTTP %d (%s)", repo, status, truncate(data))
	}

	var commit commitJSON
	if err := json.Unmarshal(data, &commit); err != nil {
		return "", fmt.Errorf("parsing latest commit of %q: %w", repo, err)
	}
	if commit.SHA == "" {
		return "", fmt.Errorf("latest commit of %q missing sha: %w", repo, model.ErrNotValid)
	}

	return commit.SHA, nil
}

// --- Internal helpers ---

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, data, nil
}

// escapePath escapes a repository file path segment by segment, keeping the
// separators so nested directories work.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func truncate(data []byte) string {
	const max = 200
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
