package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrUnauthorized is returned when a request credential does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrGeneration is returned when the generation collaborator fails or
	// returns an unusable result.
	ErrGeneration = errors.New("generation failed")
	// ErrRepositoryCreate is returned when repository creation fails.
	ErrRepositoryCreate = errors.New("repository creation failed")
	// ErrCommitLookup is returned when the deployment commit cannot be
	// resolved after the grace delay.
	ErrCommitLookup = errors.New("commit lookup failed")
)
