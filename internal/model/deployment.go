package model

// FilePublishResult is the outcome of upserting a single file.
type FilePublishResult struct {
	Path    string
	Updated bool // true when the write replaced an existing file.
	Error   string
}

// PublishReport aggregates per-file publish outcomes. There is no
// all-or-nothing guarantee across a file set, a partial publish is a valid,
// reportable outcome.
type PublishReport struct {
	Success bool
	Files   []FilePublishResult
}

// Published returns the paths that were written successfully.
func (r PublishReport) Published() []string {
	paths := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		if f.Error == "" {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// DeploymentStatus represents the terminal state of an orchestration run.
type DeploymentStatus string

const (
	DeploymentStatusSuccess DeploymentStatus = "success"
	DeploymentStatusError   DeploymentStatus = "error"
)

// DeploymentResult is the terminal artifact of one orchestration run. It is
// posted to the evaluation callback and returned to the orchestrator's caller.
type DeploymentResult struct {
	TaskID       string
	Round        Round
	Email        string
	Nonce        string
	RepoURL      string
	PagesURL     string
	CommitSHA    string
	FilesCreated []string
	Status       DeploymentStatus
	ErrorDetail  string
}
