package conventions

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultBranch is the branch Pages serves from.
	DefaultBranch = "main"
	// DefaultConfirmGrace is the propagation delay waited before the
	// deployment commit lookup.
	DefaultConfirmGrace = 30 * time.Second
	// DefaultDataDir is the default pagesmith data directory name (relative to home).
	DefaultDataDir = ".pagesmith"
	// DBFile is the SQLite database filename inside the data directory.
	DBFile = "pagesmith.db"

	// Mandated site files the collaborator must produce.

	// IndexFile is the site entry point.
	IndexFile = "index.html"
	// StylesFile is the site stylesheet.
	StylesFile = "styles.css"
	// ScriptFile is the site client-side script.
	ScriptFile = "script.js"
	// ReadmeFile is the repository README.
	ReadmeFile = "README.md"

	// maxTaskIDLen caps derived task IDs so repository names stay within
	// the provider's 100 character limit with room to spare.
	maxTaskIDLen = 60
)

var (
	nonSlugRegexp  = regexp.MustCompile(`[^a-z0-9]+`)
	dashRunsRegexp = regexp.MustCompile(`-{2,}`)
)

// TaskID derives the deterministic task identifier from a task brief: a
// lowercase slug so retries of the same brief land on the same repository
// and conversation history.
func TaskID(brief string) string {
	id := strings.ToLower(strings.TrimSpace(brief))
	id = nonSlugRegexp.ReplaceAllString(id, "-")
	id = dashRunsRegexp.ReplaceAllString(id, "-")
	id = strings.Trim(id, "-")
	if len(id) > maxTaskIDLen {
		id = strings.Trim(id[:maxTaskIDLen], "-")
	}
	return id
}

// RepoName returns the repository name for a task.
func RepoName(taskID string) string {
	return taskID
}

// RepoURL returns the web URL of a repository.
func RepoURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, repo)
}

// PagesURL returns the public Pages URL of a repository. It is computed,
// not read back from the provider, so it is valid before the first build
// finishes propagating.
func PagesURL(owner, repo string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", strings.ToLower(owner), repo)
}
