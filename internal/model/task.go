package model

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// Round identifies which pass over a task is running.
type Round int

const (
	// RoundInitial is the first pass: the repository is created and the
	// initial site content is generated and published.
	RoundInitial Round = 1
	// RoundRevision is the second pass: the existing repository is revised
	// using the conversation history from the first pass.
	RoundRevision Round = 2
)

// Task is one unit of work: a request to build (round 1) or revise (round 2)
// a static website. Immutable once received.
type Task struct {
	ID            string
	Round         Round
	Brief         string
	Checks        []string
	Attachments   []Attachment
	Email         string
	Nonce         string
	EvaluationURL string
}

// Validate checks the task is usable.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if t.Round != RoundInitial && t.Round != RoundRevision {
		return fmt.Errorf("round must be 1 or 2, got %d: %w", t.Round, ErrNotValid)
	}
	if strings.TrimSpace(t.Brief) == "" {
		return fmt.Errorf("task brief is required: %w", ErrNotValid)
	}
	return nil
}

// Attachment is a named resource handed in with a task, either an inline
// base64 data URL or an externally linked resource.
type Attachment struct {
	Name string
	URL  string
}

var dataURLRegexp = regexp.MustCompile(`^data:([^;,]+);base64,(.+)$`)

// Inline reports whether the attachment payload is carried inline as a
// base64 data URL.
func (a Attachment) Inline() bool {
	return dataURLRegexp.MatchString(a.URL)
}

// Decode returns the media type and decoded payload of an inline attachment.
func (a Attachment) Decode() (mediaType string, payload []byte, err error) {
	m := dataURLRegexp.FindStringSubmatch(a.URL)
	if m == nil {
		return "", nil, fmt.Errorf("attachment %q is not a base64 data URL: %w", a.Name, ErrNotValid)
	}

	payload, err = base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, fmt.Errorf("attachment %q has invalid base64 payload: %w", a.Name, ErrNotValid)
	}

	return m[1], payload, nil
}
