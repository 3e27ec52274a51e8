package model

import (
	"encoding/base64"
	"fmt"
	"path"
	"sort"
)

// FileContent is the payload of a generated file. It is a closed variant:
// text produced by the collaborator or binary decoded from an attachment.
type FileContent interface {
	// Transport encodes the payload for the hosting provider's contents API.
	Transport() string
}

// TextContent is UTF-8 text file content.
type TextContent string

// Transport satisfies FileContent.
func (c TextContent) Transport() string {
	return base64.StdEncoding.EncodeToString([]byte(c))
}

// BinaryContent is raw binary file content.
type BinaryContent []byte

// Transport satisfies FileContent.
func (c BinaryContent) Transport() string {
	return base64.StdEncoding.EncodeToString(c)
}

// GeneratedFile is one file produced for the target repository.
type GeneratedFile struct {
	Name    string
	Dir     string
	Content FileContent
}

// Path returns the repository path of the file.
func (f GeneratedFile) Path() string {
	if f.Dir == "" || f.Dir == "." {
		return f.Name
	}
	return path.Join(f.Dir, f.Name)
}

// Validate checks the file is publishable.
func (f GeneratedFile) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("file name is required: %w", ErrNotValid)
	}
	if f.Content == nil {
		return fmt.Errorf("file %q has no content: %w", f.Name, ErrNotValid)
	}
	return nil
}

// FileSet is the set of files produced by one generation call, keyed by
// repository path.
type FileSet map[string]GeneratedFile

// Add inserts a file keyed by its path.
func (s FileSet) Add(f GeneratedFile) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p := f.Path()
	if _, ok := s[p]; ok {
		return fmt.Errorf("file %q: %w", p, ErrAlreadyExists)
	}
	s[p] = f
	return nil
}

// Paths returns the sorted repository paths of the set.
func (s FileSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Validate checks the set can proceed to publishing.
func (s FileSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("generation produced no files: %w", ErrNotValid)
	}
	for _, f := range s {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}
