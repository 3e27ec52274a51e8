// Package generation talks to the external code-generation collaborator.
// The collaborator is a black box: prompt and prior history in, a summary,
// the updated history and a set of generated files out.
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/slok/pagesmith/internal/log"
	"github.com/slok/pagesmith/internal/model"
)

// systemInstruction tells the collaborator what a deployable static site is.
// Condensed contract: exactly the four mandated files plus any assets, pure
// client-side code, works by opening index.html in a browser.
const systemInstruction = `You are an expert web developer creating complete, production-ready static websites for GitHub Pages.

MANDATORY OUTPUT, generate exactly these files:
1. index.html with a complete, semantic HTML5 structure
2. styles.css with modern, mobile-first responsive CSS
3. script.js with vanilla JavaScript implementing all required functionality
4. README.md with summary, setup, usage, code explanation and license

TECHNICAL REQUIREMENTS:
- Pure HTML/CSS/JavaScript only, no frameworks and no backend
- Use localStorage for data persistence
- Include error handling and input validation
- Everything must work by opening index.html directly in a browser

FORBIDDEN: server-side code, package.json, requirements.txt, databases, build steps, external APIs requiring keys.`

// Result is the normalized output of one generation call.
type Result struct {
	// Summary is the collaborator's free-text description of what it built.
	Summary string
	// Messages is the collaborator messages produced by this call (not the
	// full history), ready to be appended to the conversation store.
	Messages []model.Message
	// Files is the generated file set.
	Files model.FileSet
}

// Generator is the interface the pipeline needs from the collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []model.Message) (*Result, error)
}

// ClientConfig configures the generation HTTP client.
type ClientConfig struct {
	// BaseURL is the collaborator service base URL.
	BaseURL string
	// APIKey is the bearer credential for the collaborator service.
	APIKey string
	// Model selects the collaborator model.
	Model string
	// HTTPClient is the HTTP client for requests.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "generation.Client"})
	return nil
}

// Client implements Generator over the collaborator's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a new generation client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types (private, for the collaborator API) ---

type generateRequestJSON struct {
	Model    string        `json:"model,omitempty"`
	System   string        `json:"system"`
	Prompt   string        `json:"prompt"`
	Messages []messageJSON `json:"messages"`
}

type generateResponseJSON struct {
	Summary  string        `json:"summary"`
	Messages []messageJSON `json:"messages"`
	Files    []fileJSON    `json:"files"`
}

type messageJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fileJSON struct {
	Name     string `json:"name"`
	Dir      string `json:"dir,omitempty"`
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"` // "" (text) or "base64".
}

// Generate runs one generation call against the collaborator.
//
// Any transport failure, non-2xx response or malformed body is surfaced as
// model.ErrGeneration so the run aborts before anything is provisioned.
func (c *Client) Generate(ctx context.Context, prompt string, history []model.Message) (*Result, error) {
	reqBody := generateRequestJSON{
		Model:    c.model,
		System:   systemInstruction,
		Prompt:   prompt,
		Messages: make([]messageJSON, 0, len(history)),
	}
	for _, m := range history {
		reqBody.Messages = append(reqBody.Messages, messageJSON{Role: m.Role, Content: m.Content})
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	url := c.baseURL + "/v1/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w: %w", err, model.ErrGeneration)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w: %w", err, model.ErrGeneration)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("collaborator returned HTTP %d: %w", resp.StatusCode, model.ErrGeneration)
	}

	var respBody generateResponseJSON
	if err := json.Unmarshal(body, &respBody); err != nil {
		return nil, fmt.Errorf("parsing response: %w: %w", err, model.ErrGeneration)
	}

	return respBody.toResult()
}

// toResult validates the wire response shape and normalizes it into a Result.
// The provider response is never trusted to be well formed.
func (r *generateResponseJSON) toResult() (*Result, error) {
	if len(r.Files) == 0 {
		return nil, fmt.Errorf("collaborator returned no files: %w", model.ErrGeneration)
	}
	if len(r.Messages) == 0 {
		return nil, fmt.Errorf("collaborator returned no messages: %w", model.ErrGeneration)
	}

	files := model.FileSet{}
	for _, f := range r.Files {
		var content model.FileContent
		switch f.Encoding {
		case "":
			content = model.TextContent(f.Content)
		case "base64":
			decoded, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				return nil, fmt.Errorf("file %q has invalid base64 content: %w", f.Name, model.ErrGeneration)
			}
			content = model.BinaryContent(decoded)
		default:
			return nil, fmt.Errorf("file %q has unknown encoding %q: %w", f.Name, f.Encoding, model.ErrGeneration)
		}

		err := files.Add(model.GeneratedFile{Name: f.Name, Dir: f.Dir, Content: content})
		if err != nil {
			return nil, fmt.Errorf("invalid generated file: %w: %w", err, model.ErrGeneration)
		}
	}

	messages := make([]model.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == "" {
			return nil, fmt.Errorf("message with empty role: %w", model.ErrGeneration)
		}
		messages = append(messages, model.Message{Role: m.Role, Content: m.Content})
	}

	return &Result{
		Summary:  r.Summary,
		Messages: messages,
		Files:    files,
	}, nil
}
